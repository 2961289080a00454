package trace

import (
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Ref is the identity of a traced object.
type Ref struct {
	Symbol  string
	Type    string
	Kind    Kind
	Ordinal int
	Digest  [blake2b.Size256]byte

	// NumRNS and Order are filled from [Shaped] objects.
	NumRNS int
	Order  int
}

// Register returns the SSA register name of the identity, e.g. "%ct3".
func (r Ref) Register() string {
	prefix := r.Kind.Prefix()
	if r.Type != r.Kind.String() {
		prefix = r.Type
	}
	return "%" + prefix + strconv.Itoa(r.Ordinal)
}

// Digest returns the BLAKE2b-256 digest of the binary serialization of obj.
func Digest(obj Object) (d [blake2b.Size256]byte, err error) {
	var p []byte
	if p, err = obj.MarshalBinary(); err != nil {
		return
	}
	return blake2b.Sum256(p), nil
}

// Registry maps content digests onto symbolic names of the form
// "{type}_{ordinal}", with one monotonic counter per type tag.
// A Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	names    map[[blake2b.Size256]byte]Ref
	symbols  map[string]Ref
	counters map[string]int
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		names:    map[[blake2b.Size256]byte]Ref{},
		symbols:  map[string]Ref{},
		counters: map[string]int{},
	}
}

// Resolve returns the identity of obj, allocating a new symbol for typeTag
// if its content was never seen before. Panics if obj cannot be serialized.
func (r *Registry) Resolve(obj Object, typeTag string) Ref {
	d, err := Digest(obj)
	if err != nil {
		panic(fmt.Errorf("trace: cannot serialize %s: %w", typeTag, err))
	}
	return r.ResolveDigest(d, obj.Kind(), typeTag)
}

// ResolveDigest is as [Registry.Resolve] for a precomputed digest.
func (r *Registry) ResolveDigest(d [blake2b.Size256]byte, kind Kind, typeTag string) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.names[d]; ok {
		return ref
	}

	r.counters[typeTag]++

	ref := Ref{
		Symbol:  typeTag + "_" + strconv.Itoa(r.counters[typeTag]),
		Type:    typeTag,
		Kind:    kind,
		Ordinal: r.counters[typeTag],
		Digest:  d,
	}

	r.names[d] = ref
	r.symbols[ref.Symbol] = ref
	return ref
}

// Bind maps the digest d onto the existing identity ref, without consuming
// an ordinal, and returns ref with its digest set to d.
func (r *Registry) Bind(d [blake2b.Size256]byte, ref Ref) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref.Digest = d
	r.names[d] = ref
	return ref
}

// Find returns the identity currently bound to the digest d.
func (r *Registry) Find(d [blake2b.Size256]byte) (ref Ref, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok = r.names[d]
	return
}

// Lookup returns the identity named symbol.
func (r *Registry) Lookup(symbol string) (ref Ref, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok = r.symbols[symbol]
	return
}

// Count returns the number of symbols allocated for typeTag.
func (r *Registry) Count(typeTag string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[typeTag]
}

// Len returns the number of distinct symbols.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.symbols)
}

// Reset forgets every identity and restarts all counters.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.names)
	clear(r.symbols)
	clear(r.counters)
}
