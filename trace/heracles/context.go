package heracles

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/tuneinsight/lattigo/v6/ring"
)

// ErrUnsupportedScheme is returned for schemes whose context is not modelled.
var ErrUnsupportedScheme = errors.New("heracles: unsupported scheme")

// Parameters is the description of the host cryptographic parameters.
type Parameters struct {
	Scheme Scheme
	// N is the ring dimension.
	N int
	// Q and P are the ciphertext and auxiliary RNS moduli.
	Q []uint64
	P []uint64
	// DefaultScale is the CKKS scaling factor at the maximum level.
	DefaultScale float64
	// Psi are the primitive 2N-th roots of unity the host NTT uses,
	// one per modulus of Q then P. If empty, they are derived with
	// [RootOfUnity].
	Psi []uint64
}

// Validate checks that the context of p can be described.
func (p Parameters) Validate() (err error) {

	if p.Scheme != SchemeCKKS {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheme, p.Scheme)
	}

	if p.N <= 0 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("heracles: invalid ring dimension %d: must be a power of two", p.N)
	}

	if len(p.Q) == 0 {
		return fmt.Errorf("heracles: invalid parameters: empty modulus Q")
	}

	if p.DefaultScale <= 0 {
		return fmt.Errorf("heracles: invalid default scale %v", p.DefaultScale)
	}

	if len(p.Psi) != 0 && len(p.Psi) != len(p.Q)+len(p.P) {
		return fmt.Errorf("heracles: invalid parameters: %d roots of unity for %d moduli", len(p.Psi), len(p.Q)+len(p.P))
	}

	return
}

// NewContext derives the [FHEContext] of p.
func NewContext(p Parameters) (c *FHEContext, err error) {

	if err = p.Validate(); err != nil {
		return
	}

	moduli := append(append([]uint64{}, p.Q...), p.P...)

	psi := append([]uint64{}, p.Psi...)
	if len(psi) == 0 {
		psi = make([]uint64, len(moduli))
		for i, q := range moduli {
			if psi[i], err = RootOfUnity(2*uint64(p.N), q); err != nil {
				return nil, err
			}
		}
	}

	alpha := len(p.P)
	dnum := 1
	if alpha > 0 {
		dnum = (len(p.Q) + alpha - 1) / alpha
	}

	sf, sfBig := ScalingFactors(p.DefaultScale, p.Q)

	return &FHEContext{
		Scheme:    p.Scheme,
		N:         uint32(p.N),
		KeyRNSNum: uint32(len(moduli)),
		Alpha:     uint32(alpha),
		DigitSize: uint32(dnum),
		Q:         moduli,
		Psi:       psi,
		QSize:     uint32(len(p.Q)),
		CKKSInfo: &CKKSInfo{
			ScalingFactorReal:    sf,
			ScalingFactorRealBig: sfBig,
		},
	}, nil
}

// ScalingFactors returns the CKKS scaling factor at each level, from the
// maximum level down, assuming each multiplication is followed by a rescale:
// s[0] is the default scale and s[i+1] = s[i]^2 / q[L-i]. The big scaling
// factors are the squares s[i]^2, defined for all but the last level.
func ScalingFactors(scale float64, q []uint64) (sf, sfBig []float64) {

	sf = make([]float64, len(q))
	sfBig = make([]float64, 0, len(q))

	s := new(big.Float).SetFloat64(scale)
	for i := range q {

		sf[i], _ = s.Float64()

		sq := new(big.Float).Mul(s, s)

		if i < len(q)-1 {
			f, _ := sq.Float64()
			sfBig = append(sfBig, f)
		}

		s = sq.Quo(sq, new(big.Float).SetUint64(q[len(q)-1-i]))
	}

	return
}

// RootOfUnity returns the primitive m-th root of unity g^((q-1)/m) modulo
// the prime q, where g is the smallest generator of Z_q^*. This is the
// root lattigo derives for its NTT when m is the ring NthRoot.
func RootOfUnity(m, q uint64) (psi uint64, err error) {

	if m == 0 || m&(m-1) != 0 || q < 3 || (q-1)%m != 0 {
		return 0, fmt.Errorf("heracles: no primitive %d-th root of unity modulo %d", m, q)
	}

	var g uint64
	if g, _, err = ring.PrimitiveRoot(q, nil); err != nil {
		return 0, fmt.Errorf("heracles: modulus %d: %w", q, err)
	}

	return ring.ModExp(g, (q-1)/m, q), nil
}
