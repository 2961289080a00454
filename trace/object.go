package trace

// Object is a cryptographic object whose identity can be traced.
// The binary serialization is only used to derive a content digest.
type Object interface {
	Kind() Kind
	MarshalBinary() (p []byte, err error)
}

// Shaped is implemented by objects backed by RNS polynomials.
// NumRNS is the number of RNS limbs and Order the number of polynomials.
type Shaped interface {
	NumRNS() int
	Order() int
}

// PolyData is implemented by objects exposing their raw coefficients,
// indexed as [polynomial][limb][coefficient].
type PolyData interface {
	Polys() [][][]uint64
	IsNTT() bool
}

// Tagger is implemented by objects able to carry a small piece of
// tracer metadata, the symbol of the identity they were last given.
type Tagger interface {
	TraceTag() string
	SetTraceTag(tag string)
}

// Members is implemented by evaluation-key maps.
type Members interface {
	Members() map[uint64]Object
}

// Pair is implemented by key pairs. Both halves are registered as separate
// entries, the public key first.
type Pair interface {
	Pair() (public, private any)
}

// Classifier maps a host value onto an [Object].
// It returns false if the value is not a cryptographic object it knows.
type Classifier func(v any) (obj Object, ok bool)
