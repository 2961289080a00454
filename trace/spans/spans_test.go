package spans

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Pro7ech/hetrace/trace"
)

type ciphertext []byte

func (ct ciphertext) Kind() trace.Kind {
	return trace.KindCiphertext
}

func (ct ciphertext) MarshalBinary() ([]byte, error) {
	return ct, nil
}

func newBackend(t *testing.T) (*Backend, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })
	return New(tp.Tracer("hetrace")), rec
}

func attributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSpans(t *testing.T) {

	t.Run("Nesting", func(t *testing.T) {

		b, rec := newBackend(t)
		s := trace.NewSession(b)

		outer := s.Start("Evaluator.MulRelinNew", ciphertext{1}, ciphertext{2})
		inner := s.Start("Evaluator.Relinearize", ciphertext{3})
		inner.RegisterOutput(ciphertext{4}, "output")
		inner.Close()
		outer.RegisterOutput(ciphertext{4}, "output")
		outer.Close()

		ended := rec.Ended()
		require.Len(t, ended, 2)

		child, parent := ended[0], ended[1]
		require.Equal(t, "Evaluator.Relinearize", child.Name())
		require.Equal(t, "Evaluator.MulRelinNew", parent.Name())
		require.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
		require.False(t, parent.Parent().IsValid())

		attrs := attributes(parent)
		require.Equal(t, int64(0), attrs[keyLevel].AsInt64())
		require.Equal(t, []string{"input0 ciphertext_1 : ciphertext", "input1 ciphertext_2 : ciphertext"}, attrs[keyInputs].AsStringSlice())
		require.Equal(t, []string{"output ciphertext_4 : ciphertext"}, attrs[keyOutputs].AsStringSlice())
		require.Equal(t, int64(1), attributes(child)[keyLevel].AsInt64())
	})

	t.Run("Context", func(t *testing.T) {

		b, _ := newBackend(t)
		s := trace.NewSession(b)

		require.Equal(t, b.root, b.Context())

		sc := s.Start("Encoder.Encode")
		require.NotEqual(t, b.root, b.Context())
		sc.Close()

		require.Equal(t, b.root, b.Context())
	})

	t.Run("Movement", func(t *testing.T) {

		b, rec := newBackend(t)
		s := trace.NewSession(b)

		dm := s.DataMovement("CopyNew")
		dm.Alias(ciphertext{1}, ciphertext{1})
		dm.Close()

		ended := rec.Ended()
		require.Len(t, ended, 1)
		require.True(t, attributes(ended[0])[keyMovement].AsBool())
	})

	t.Run("Order", func(t *testing.T) {

		b, rec := newBackend(t)

		outer := &trace.Record{Function: "outer"}
		outer.ID[0] = 1
		inner := &trace.Record{Function: "inner", Level: 1}
		inner.ID[0] = 2

		b.Begin(outer)
		b.Begin(inner)

		err := b.End(outer)
		require.True(t, errors.Is(err, ErrOrder))
		require.NoError(t, b.End(inner))
		require.Error(t, b.End(inner))

		ended := rec.Ended()
		require.Len(t, ended, 2)
		require.Equal(t, codes.Error, ended[0].Status().Code)
	})
}
