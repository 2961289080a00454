// Package spans implements a trace backend exporting scopes as
// OpenTelemetry spans, nested like the scopes they stand for.
package spans

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Pro7ech/hetrace/trace"
)

// ErrOrder is returned when a scope is closed while a scope opened after
// it is still open.
var ErrOrder = errors.New("spans: scope closed out of order")

const (
	keyID       = attribute.Key("hetrace.id")
	keyLevel    = attribute.Key("hetrace.level")
	keyMovement = attribute.Key("hetrace.movement")
	keyInputs   = attribute.Key("hetrace.inputs")
	keyOutputs  = attribute.Key("hetrace.outputs")
)

type open struct {
	id   uuid.UUID
	ctx  context.Context
	span oteltrace.Span
}

// Backend is a [trace.Backend] starting one span per scope.
// Backend is safe for concurrent use, but scopes must be closed in the
// reverse order they were opened.
type Backend struct {
	mu     sync.Mutex
	tracer oteltrace.Tracer
	root   context.Context
	stack  []open
}

// Option configures a [Backend].
type Option func(b *Backend)

// WithContext sets the parent context of top level spans,
// context.Background() by default.
func WithContext(ctx context.Context) Option {
	return func(b *Backend) {
		b.root = ctx
	}
}

// New returns a new [Backend] creating spans with tracer.
func New(tracer oteltrace.Tracer, opts ...Option) *Backend {
	b := &Backend{
		tracer: tracer,
		root:   context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Context returns the context of the innermost open span, so that host
// code can parent its own spans to the current scope.
func (b *Backend) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.stack); n > 0 {
		return b.stack[n-1].ctx
	}
	return b.root
}

// Begin starts the span of rec as a child of the innermost open span.
func (b *Backend) Begin(rec *trace.Record) {

	b.mu.Lock()
	defer b.mu.Unlock()

	parent := b.root
	if n := len(b.stack); n > 0 {
		parent = b.stack[n-1].ctx
	}

	ctx, span := b.tracer.Start(parent, rec.Function,
		oteltrace.WithTimestamp(rec.Start),
		oteltrace.WithAttributes(
			keyID.String(rec.ID.String()),
			keyLevel.Int(rec.Level),
			keyMovement.Bool(rec.Movement),
		))

	b.stack = append(b.stack, open{id: rec.ID, ctx: ctx, span: span})
}

func (b *Backend) Capture(*trace.Record, trace.Role, *trace.Entry, []trace.Object) (err error) {
	return
}

// End sets the inputs and outputs of rec on its span and ends it.
// Returns an error wrapping [ErrOrder] if rec is not the innermost open
// scope; its span is ended regardless.
func (b *Backend) End(rec *trace.Record) (err error) {

	b.mu.Lock()
	defer b.mu.Unlock()

	i := len(b.stack) - 1
	for i >= 0 && b.stack[i].id != rec.ID {
		i--
	}

	if i < 0 {
		return fmt.Errorf("spans: %s: no open span", rec.Function)
	}

	span := b.stack[i].span

	span.SetAttributes(
		keyInputs.StringSlice(entries(rec.Inputs)),
		keyOutputs.StringSlice(entries(rec.Outputs)),
	)

	if i != len(b.stack)-1 {
		err = fmt.Errorf("%w: %s at level %d", ErrOrder, rec.Function, rec.Level)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End(oteltrace.WithTimestamp(rec.Start.Add(rec.Duration)))

	b.stack = append(b.stack[:i], b.stack[i+1:]...)

	return
}

func entries(es []trace.Entry) (s []string) {
	s = make([]string, len(es))
	for i := range es {
		s[i] = es[i].String()
	}
	return
}
