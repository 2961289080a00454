package redislog

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Pro7ech/hetrace/trace"
)

type list struct {
	values map[string][]string
	err    error
	// failures is the number of pushes failing before l accepts values.
	failures int
}

func (l *list) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if l.err != nil {
		return redis.NewIntResult(0, l.err)
	}
	if l.failures > 0 {
		l.failures--
		return redis.NewIntResult(0, fmt.Errorf("i/o timeout"))
	}
	if l.values == nil {
		l.values = map[string][]string{}
	}
	for _, v := range values {
		l.values[key] = append(l.values[key], v.(string))
	}
	return redis.NewIntResult(int64(len(l.values[key])), nil)
}

type ciphertext []byte

func (ct ciphertext) Kind() trace.Kind {
	return trace.KindCiphertext
}

func (ct ciphertext) MarshalBinary() ([]byte, error) {
	return ct, nil
}

func TestWriter(t *testing.T) {

	t.Run("Lines", func(t *testing.T) {

		l := &list{}
		w := New(context.Background(), l, "")
		require.Equal(t, DefaultKey, w.Key())

		n, err := w.Write([]byte("first\nsec"))
		require.NoError(t, err)
		require.Equal(t, 9, n)
		require.Equal(t, []string{"first"}, l.values[DefaultKey])

		_, err = w.Write([]byte("ond\nthird"))
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second"}, l.values[DefaultKey])

		require.NoError(t, w.Close())
		require.Equal(t, []string{"first", "second", "third"}, l.values[DefaultKey])

		require.NoError(t, w.Flush())
		require.Len(t, l.values[DefaultKey], 3)
	})

	t.Run("Error", func(t *testing.T) {
		w := New(context.Background(), &list{err: fmt.Errorf("connection refused")}, "traces")
		_, err := w.Write([]byte("line\n"))
		require.ErrorContains(t, err, "traces")
	})

	t.Run("Retry", func(t *testing.T) {

		l := &list{failures: 1}
		w := New(context.Background(), l, "traces")

		n, err := w.Write([]byte("first\nsec"))
		require.Error(t, err)
		require.Equal(t, 9, n)
		require.Empty(t, l.values["traces"])

		n, err = w.Write([]byte("ond\n"))
		require.NoError(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, []string{"first", "second"}, l.values["traces"])

		l.failures = 1
		_, err = w.Write([]byte("third"))
		require.NoError(t, err)
		require.Error(t, w.Flush())
		require.NoError(t, w.Flush())
		require.Equal(t, []string{"first", "second", "third"}, l.values["traces"])
	})

	t.Run("Text", func(t *testing.T) {

		l := &list{}
		s := trace.NewSession(trace.NewText(New(context.Background(), l, "traces")))

		outer := s.Start("Evaluator.AddNew", ciphertext{1}, ciphertext{2})
		inner := s.Start("Evaluator.Add")
		inner.Close()
		outer.RegisterOutput(ciphertext{3}, "output")
		outer.Close()

		require.Equal(t, []string{
			"\tEvaluator.Add inputs=[] outputs=[]",
			"Evaluator.AddNew inputs=[input0 ciphertext_1 : ciphertext, input1 ciphertext_2 : ciphertext] outputs=[output ciphertext_3 : ciphertext]",
		}, l.values["traces"])
	})
}
