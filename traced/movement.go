package traced

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/Pro7ech/hetrace/trace"
	"github.com/Pro7ech/hetrace/trace/heracles"
)

// CopyNew returns a deep copy of ct sharing its identity.
func CopyNew(tracer trace.Tracer, ct *rlwe.Ciphertext) (out *rlwe.Ciphertext) {
	out = ct.CopyNew()
	dm := tracer.DataMovement("Ciphertext.CopyNew")
	defer dm.Close()
	dm.Alias(out, ct)
	return
}

// Copy copies src on dst, which takes the identity of src.
func Copy(tracer trace.Tracer, dst, src *rlwe.Ciphertext) {
	dst.Copy(src)
	dm := tracer.DataMovement("Ciphertext.Copy")
	defer dm.Close()
	dm.Alias(dst, src)
}

// HeraclesParameters describes params for the HERACLES backend, with the
// NTT roots of unity of the rings of params.
func HeraclesParameters(params ckks.Parameters) heracles.Parameters {
	return heracles.Parameters{
		Scheme:       heracles.SchemeCKKS,
		N:            params.N(),
		Q:            params.Q(),
		P:            params.P(),
		DefaultScale: params.DefaultScale().Float64(),
		Psi:          append(roots(params.RingQ()), roots(params.RingP())...),
	}
}

// roots returns psi = g^((q-1)/NthRoot) for each modulus q of r,
// g being the primitive root the ring was instantiated with.
func roots(r *ring.Ring) (psi []uint64) {
	if r == nil {
		return
	}
	for _, s := range r.SubRings {
		psi = append(psi, ring.ModExp(s.PrimitiveRoot, (s.Modulus-1)/s.NthRoot, s.Modulus))
	}
	return
}
