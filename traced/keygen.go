package traced

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/Pro7ech/hetrace/trace"
)

// KeyGenerator is an [rlwe.KeyGenerator] tracing key generation.
type KeyGenerator struct {
	*rlwe.KeyGenerator
	tracer trace.Tracer
}

// NewKeyGenerator returns a traced key generator.
func NewKeyGenerator(params ckks.Parameters, tracer trace.Tracer) *KeyGenerator {
	return &KeyGenerator{
		KeyGenerator: rlwe.NewKeyGenerator(params),
		tracer:       tracer,
	}
}

// GenSecretKeyNew generates a secret key.
func (kgen *KeyGenerator) GenSecretKeyNew() (sk *rlwe.SecretKey) {
	sc := kgen.tracer.Start("KeyGenerator.GenSecretKeyNew")
	defer sc.Close()
	return trace.Output(sc, kgen.KeyGenerator.GenSecretKeyNew(), "output")
}

// GenPublicKeyNew generates a public key for sk, registered as input.
func (kgen *KeyGenerator) GenPublicKeyNew(sk *rlwe.SecretKey) (pk *rlwe.PublicKey) {
	sc := kgen.tracer.Start("KeyGenerator.GenPublicKeyNew", sk)
	defer sc.Close()
	return trace.Output(sc, kgen.KeyGenerator.GenPublicKeyNew(sk), "output")
}

// GenKeyPairNew generates a key pair, registered as the two outputs
// "output_public" and "output_private".
func (kgen *KeyGenerator) GenKeyPairNew() (sk *rlwe.SecretKey, pk *rlwe.PublicKey) {
	sc := kgen.tracer.Start("KeyGenerator.GenKeyPairNew")
	defer sc.Close()
	sk, pk = kgen.KeyGenerator.GenKeyPairNew()
	sc.RegisterOutput(KeyPair{Public: pk, Secret: sk}, "output")
	return
}

// GenRelinearizationKeyNew generates the relinearization key of sk.
func (kgen *KeyGenerator) GenRelinearizationKeyNew(sk *rlwe.SecretKey) (rlk *rlwe.RelinearizationKey) {
	sc := kgen.tracer.Start("KeyGenerator.GenRelinearizationKeyNew", sk)
	defer sc.Close()
	return trace.Output(sc, kgen.KeyGenerator.GenRelinearizationKeyNew(sk), "output")
}

// GenGaloisKeysNew generates one key per Galois element, registered as
// the outputs "output[0]", "output[1]", ...
func (kgen *KeyGenerator) GenGaloisKeysNew(galEls []uint64, sk *rlwe.SecretKey) (gks []*rlwe.GaloisKey) {
	sc := kgen.tracer.Start("KeyGenerator.GenGaloisKeysNew", galEls, sk)
	defer sc.Close()
	return trace.Output(sc, kgen.KeyGenerator.GenGaloisKeysNew(galEls, sk), "output")
}
