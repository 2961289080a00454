package trace

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tracer is the entry point held by a host context.
type Tracer interface {
	// Start opens a scope for function and registers inputs as
	// "input0", "input1", ...
	Start(function string, inputs ...any) Scope
	// DataMovement opens a scope tracking copies and assignments of
	// object storage outside of function scopes.
	DataMovement(label string) DataTracer
}

// Scope traces one call. Scopes must be closed exactly once, in the
// reverse order they were opened, typically with defer.
type Scope interface {
	RegisterInput(v any, name string, mutable bool)
	// RegisterInputs panics if vs and names have different lengths.
	RegisterInputs(vs []any, names []string, mutable bool)
	// RegisterOutput returns v unchanged.
	RegisterOutput(v any, name string) any
	RegisterOutputs(vs []any, names []string)
	Close()
}

// DataTracer traces the aliasing of object storage.
type DataTracer interface {
	// Alias gives dest the identity of src.
	Alias(dest, src any)
	Close()
}

// Output registers v as an output of s and returns it with its static type.
func Output[T any](s Scope, v T, name string) T {
	s.RegisterOutput(v, name)
	return v
}

// Session is the [Tracer] of one host context. It owns the identity
// registry shared by all its scopes and forwards records to a [Backend].
//
// Registration is safe for concurrent use as long as the backend is;
// the text and IR backends are single writer.
type Session struct {
	id          uuid.UUID
	backend     Backend
	registry    *Registry
	format      Formatter
	classifiers []Classifier
	policy      IdentityPolicy
	logger      zerolog.Logger
	metrics     *Metrics
	strict      bool
	level       atomic.Int64
}

// Option configures a [Session].
type Option func(s *Session)

// WithClassifier adds a [Classifier] consulted for values that do not
// implement [Object]. Classifiers are consulted in order.
func WithClassifier(c Classifier) Option {
	return func(s *Session) {
		s.classifiers = append(s.classifiers, c)
	}
}

// WithIdentityPolicy sets the [IdentityPolicy], [ContentHash] by default.
func WithIdentityPolicy(p IdentityPolicy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithTruncate sets the vector truncation threshold, [DefaultTruncate] by default.
func WithTruncate(n int) Option {
	return func(s *Session) {
		s.format.Truncate = n
	}
}

// WithLogger sets the logger, disabled by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics updated on every scope.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithStrict makes backend failures on scope close panic instead
// of being logged.
func WithStrict(strict bool) Option {
	return func(s *Session) {
		s.strict = strict
	}
}

// WithRegistry shares an existing [Registry] instead of allocating one.
func WithRegistry(r *Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

// NewSession returns a new [Session] writing to backend.
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		id:      uuid.New(),
		backend: backend,
		format:  Formatter{Truncate: DefaultTruncate},
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = NewRegistry()
	}

	s.logger = s.logger.With().Str("session", s.id.String()).Logger()

	return s
}

// New returns a [Session] if tracing is compiled in and [Null] otherwise.
func New(backend Backend, opts ...Option) Tracer {
	if !Enabled {
		return Null
	}
	return NewSession(backend, opts...)
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string {
	return s.id.String()
}

// Level returns the current nesting level, the number of open scopes.
func (s *Session) Level() int {
	return int(s.level.Load())
}

// Registry returns the identity registry of the session.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Formatter returns the value formatter of the session.
func (s *Session) Formatter() Formatter {
	return s.format
}

// Start opens a new [Scope].
func (s *Session) Start(function string, inputs ...any) Scope {

	sc := &scope{
		s: s,
		rec: Record{
			ID:       uuid.New(),
			Function: function,
			Level:    int(s.level.Add(1)) - 1,
			Start:    time.Now(),
		},
	}

	s.backend.Begin(&sc.rec)

	for i := range inputs {
		sc.RegisterInput(inputs[i], "input"+strconv.Itoa(i), false)
	}

	return sc
}

// DataMovement opens a new [DataTracer].
func (s *Session) DataMovement(label string) DataTracer {

	m := &movement{
		s: s,
		rec: Record{
			ID:       uuid.New(),
			Function: label,
			Level:    s.Level(),
			Movement: true,
			Start:    time.Now(),
		},
	}

	s.backend.Begin(&m.rec)

	return m
}

// classify returns the object v stands for, if any.
func (s *Session) classify(v any) (Object, bool) {
	if obj, ok := v.(Object); ok {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, false
		}
		return obj, true
	}
	for _, c := range s.classifiers {
		if obj, ok := c(v); ok {
			return obj, true
		}
	}
	return nil, false
}

// identify resolves the identity of obj following the identity policy.
func (s *Session) identify(obj Object) (ref Ref) {

	tag := obj.Kind().String()

	d, err := Digest(obj)
	if err != nil {
		panic(fmt.Errorf("trace: cannot serialize %s: %w", tag, err))
	}

	if t, ok := obj.(Tagger); ok && s.policy == MetadataTag {
		if sym := t.TraceTag(); sym != "" {
			if known, ok := s.registry.Lookup(sym); ok {
				ref = s.registry.Bind(d, known)
			}
		}
		if ref.Symbol == "" {
			ref = s.registry.ResolveDigest(d, obj.Kind(), tag)
			t.SetTraceTag(ref.Symbol)
		}
	} else {
		ref = s.registry.ResolveDigest(d, obj.Kind(), tag)
	}

	if sh, ok := obj.(Shaped); ok {
		ref.NumRNS = sh.NumRNS()
		ref.Order = sh.Order()
	}

	s.metrics.object(obj.Kind())

	return
}

// entries builds the entries registered for v. Key pairs and slices of
// objects expand to several entries.
func (s *Session) entries(v any, name string, mutable bool) (entries []Entry, objs [][]Object) {

	if p, ok := v.(Pair); ok {
		pub, priv := p.Pair()
		e0, o0 := s.entries(pub, name+"_public", mutable)
		e1, o1 := s.entries(priv, name+"_private", mutable)
		return append(e0, e1...), append(o0, o1...)
	}

	if obj, ok := s.classify(v); ok {
		e, o := s.objectEntry(obj, name, mutable)
		return []Entry{e}, [][]Object{o}
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.Len() > 0 {
		if _, ok := s.classify(rv.Index(0).Interface()); ok {
			for i := 0; i < rv.Len(); i++ {
				ei, oi := s.entries(rv.Index(i).Interface(), name+"["+strconv.Itoa(i)+"]", mutable)
				entries = append(entries, ei...)
				objs = append(objs, oi...)
			}
			return
		}
	}

	value := s.format.Format(v)

	return []Entry{{Name: name, Type: value.Type, Value: value, Mutable: mutable}}, [][]Object{nil}
}

func (s *Session) objectEntry(obj Object, name string, mutable bool) (e Entry, objs []Object) {

	e = Entry{
		Name:    name,
		Type:    obj.Kind().String(),
		Refs:    []Ref{s.identify(obj)},
		Mutable: mutable,
	}

	objs = []Object{obj}

	if m, ok := obj.(Members); ok {

		members := m.Members()

		keys := make([]uint64, 0, len(members))
		for k := range members {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		var elems []string
		for i, k := range keys {
			ref := s.identify(members[k])
			e.Refs = append(e.Refs, ref)
			e.Keys = append(e.Keys, k)
			objs = append(objs, members[k])
			if s.format.Truncate <= 0 || i < s.format.Truncate {
				elems = append(elems, strconv.FormatUint(k, 10)+": "+ref.Symbol)
			}
		}

		e.Value = Value{
			Type: e.Type,
			Text: joinTruncated(elems, len(keys)-len(elems), "{", "}"),
			Len:  len(keys),
		}
	}

	return
}

// finish hands a closed record to the backend.
func (s *Session) finish(rec *Record) {

	if err := s.backend.End(rec); err != nil {

		s.metrics.backendError()

		if s.strict {
			panic(fmt.Errorf("trace: %s: %w", rec.Function, err))
		}

		s.logger.Warn().Err(err).Str("function", rec.Function).Msg("trace backend failed")
	}

	s.metrics.scope(rec)

	s.logger.Debug().
		Str("function", rec.Function).
		Int("level", rec.Level).
		Int("inputs", len(rec.Inputs)).
		Int("outputs", len(rec.Outputs)).
		Dur("duration", rec.Duration).
		Msg("scope closed")
}
