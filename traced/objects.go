// Package traced adapts lattigo CKKS objects and operations to the trace
// package: it classifies ciphertexts, plaintexts and keys as traced objects
// and wraps the encoder, encryptor, decryptor, evaluator and key generator
// so that each call opens a scope.
package traced

import (
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/Pro7ech/hetrace/trace"
)

// Objects classifies lattigo objects and stores the trace tags they carry.
//
// Tags are kept in a table keyed by the object pointer, which keeps tagged
// objects reachable until [Objects.Reset] is called.
type Objects struct {
	mu   sync.Mutex
	tags map[any]string
}

// NewObjects returns an empty [Objects] table.
func NewObjects() *Objects {
	return &Objects{tags: map[any]string{}}
}

// Option returns the session option registering o as a classifier.
func (o *Objects) Option() trace.Option {
	return trace.WithClassifier(o.Classify)
}

// Classify implements [trace.Classifier] for *rlwe.Ciphertext,
// *rlwe.Plaintext, *rlwe.PublicKey, *rlwe.SecretKey,
// *rlwe.RelinearizationKey, *rlwe.GaloisKey and *rlwe.MemEvaluationKeySet.
func (o *Objects) Classify(v any) (obj trace.Object, ok bool) {
	switch v := v.(type) {
	case *rlwe.Ciphertext:
		if v != nil {
			return &ciphertext{v, o}, true
		}
	case *rlwe.Plaintext:
		if v != nil {
			return &plaintext{v, o}, true
		}
	case *rlwe.PublicKey:
		if v != nil {
			return &key[*rlwe.PublicKey]{v, trace.KindPublicKey}, true
		}
	case *rlwe.SecretKey:
		if v != nil {
			return &key[*rlwe.SecretKey]{v, trace.KindPrivateKey}, true
		}
	case *rlwe.RelinearizationKey:
		if v != nil {
			return &key[*rlwe.RelinearizationKey]{v, trace.KindEvalKey}, true
		}
	case *rlwe.GaloisKey:
		if v != nil {
			return &key[*rlwe.GaloisKey]{v, trace.KindEvalKey}, true
		}
	case *rlwe.MemEvaluationKeySet:
		if v != nil {
			return &keySet{v}, true
		}
	}
	return nil, false
}

// Len returns the number of tagged objects.
func (o *Objects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tags)
}

// Reset forgets all tags.
func (o *Objects) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	clear(o.tags)
}

func (o *Objects) tag(ptr any) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tags[ptr]
}

func (o *Objects) setTag(ptr any, tag string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tags[ptr] = tag
}

// KeyPair is a public/secret key pair registered as two entries,
// "{name}_public" and "{name}_private".
type KeyPair struct {
	Public *rlwe.PublicKey
	Secret *rlwe.SecretKey
}

// Pair implements [trace.Pair].
func (kp KeyPair) Pair() (public, private any) {
	return kp.Public, kp.Secret
}

type ciphertext struct {
	*rlwe.Ciphertext
	objects *Objects
}

func (ct *ciphertext) Kind() trace.Kind {
	return trace.KindCiphertext
}

func (ct *ciphertext) NumRNS() int {
	return ct.Level() + 1
}

func (ct *ciphertext) Order() int {
	return ct.Degree() + 1
}

func (ct *ciphertext) Polys() [][][]uint64 {
	return coefficients(ct.Value...)
}

func (ct *ciphertext) IsNTT() bool {
	return ct.MetaData != nil && ct.MetaData.IsNTT
}

func (ct *ciphertext) TraceTag() string {
	return ct.objects.tag(ct.Ciphertext)
}

func (ct *ciphertext) SetTraceTag(tag string) {
	ct.objects.setTag(ct.Ciphertext, tag)
}

type plaintext struct {
	*rlwe.Plaintext
	objects *Objects
}

func (pt *plaintext) Kind() trace.Kind {
	return trace.KindPlaintext
}

func (pt *plaintext) NumRNS() int {
	return pt.Level() + 1
}

func (pt *plaintext) Order() int {
	return 1
}

func (pt *plaintext) Polys() [][][]uint64 {
	return coefficients(pt.Value)
}

func (pt *plaintext) IsNTT() bool {
	return pt.MetaData != nil && pt.MetaData.IsNTT
}

func (pt *plaintext) TraceTag() string {
	return pt.objects.tag(pt.Plaintext)
}

func (pt *plaintext) SetTraceTag(tag string) {
	pt.objects.setTag(pt.Plaintext, tag)
}

type marshaler interface {
	MarshalBinary() ([]byte, error)
}

// key is any key whose identity is its serialization.
type key[T marshaler] struct {
	value T
	kind  trace.Kind
}

func (k *key[T]) Kind() trace.Kind {
	return k.kind
}

func (k *key[T]) MarshalBinary() ([]byte, error) {
	return k.value.MarshalBinary()
}

// keySet is an evaluation-key set whose members are its relinearization
// key, at index 0, and its Galois keys, indexed by Galois element.
type keySet struct {
	*rlwe.MemEvaluationKeySet
}

func (ks *keySet) Kind() trace.Kind {
	return trace.KindEvalKeyMap
}

func (ks *keySet) Members() map[uint64]trace.Object {
	members := map[uint64]trace.Object{}
	if ks.RelinearizationKey != nil {
		members[0] = &key[*rlwe.RelinearizationKey]{ks.RelinearizationKey, trace.KindEvalKey}
	}
	for galEl, gk := range ks.GaloisKeys {
		members[galEl] = &key[*rlwe.GaloisKey]{gk, trace.KindEvalKey}
	}
	return members
}

func coefficients(polys ...ring.Poly) (coeffs [][][]uint64) {
	coeffs = make([][][]uint64, len(polys))
	for i := range polys {
		coeffs[i] = polys[i].Coeffs
	}
	return
}
