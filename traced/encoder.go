package traced

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/Pro7ech/hetrace/trace"
)

// Encoder is a [ckks.Encoder] tracing encodings and decodings.
type Encoder struct {
	*ckks.Encoder
	params ckks.Parameters
	tracer trace.Tracer
}

// NewEncoder returns a traced encoder.
func NewEncoder(params ckks.Parameters, tracer trace.Tracer) *Encoder {
	return &Encoder{
		Encoder: ckks.NewEncoder(params),
		params:  params,
		tracer:  tracer,
	}
}

// Encode encodes values on pt. The values are registered as an input
// and pt as the output.
func (e *Encoder) Encode(values any, pt *rlwe.Plaintext) (err error) {
	sc := e.tracer.Start("Encoder.Encode", values)
	defer sc.Close()
	if err = e.Encoder.Encode(values, pt); err != nil {
		return
	}
	sc.RegisterOutput(pt, "output")
	return
}

// EncodeNew encodes values on a new plaintext at the given level
// with the default scale.
func (e *Encoder) EncodeNew(values any, level int) (pt *rlwe.Plaintext, err error) {
	sc := e.tracer.Start("Encoder.EncodeNew", values, level)
	defer sc.Close()
	pt = ckks.NewPlaintext(e.params, level)
	if err = e.Encoder.Encode(values, pt); err != nil {
		return nil, err
	}
	return trace.Output(sc, pt, "output"), nil
}

// Decode decodes pt on values.
func (e *Encoder) Decode(pt *rlwe.Plaintext, values any) (err error) {
	sc := e.tracer.Start("Encoder.Decode", pt)
	defer sc.Close()
	if err = e.Encoder.Decode(pt, values); err != nil {
		return
	}
	sc.RegisterOutput(values, "output")
	return
}

// Encryptor is an [rlwe.Encryptor] tracing encryptions.
type Encryptor struct {
	*rlwe.Encryptor
	tracer trace.Tracer
}

// NewEncryptor returns a traced public-key encryptor.
func NewEncryptor(params ckks.Parameters, pk *rlwe.PublicKey, tracer trace.Tracer) *Encryptor {
	return &Encryptor{
		Encryptor: rlwe.NewEncryptor(params, pk),
		tracer:    tracer,
	}
}

// EncryptNew encrypts pt on a new ciphertext.
func (e *Encryptor) EncryptNew(pt *rlwe.Plaintext) (ct *rlwe.Ciphertext, err error) {
	sc := e.tracer.Start("Encryptor.EncryptNew", pt)
	defer sc.Close()
	if ct, err = e.Encryptor.EncryptNew(pt); err != nil {
		return
	}
	return trace.Output(sc, ct, "output"), nil
}

// Encrypt encrypts pt on ct. pt is registered as the input and ct as
// the output.
func (e *Encryptor) Encrypt(pt *rlwe.Plaintext, ct *rlwe.Ciphertext) (err error) {
	sc := e.tracer.Start("Encryptor.Encrypt", pt)
	defer sc.Close()
	if err = e.Encryptor.Encrypt(pt, ct); err != nil {
		return
	}
	sc.RegisterOutput(ct, "output")
	return
}

// Decryptor is an [rlwe.Decryptor] tracing decryptions.
type Decryptor struct {
	*rlwe.Decryptor
	tracer trace.Tracer
}

// NewDecryptor returns a traced decryptor.
func NewDecryptor(params ckks.Parameters, sk *rlwe.SecretKey, tracer trace.Tracer) *Decryptor {
	return &Decryptor{
		Decryptor: rlwe.NewDecryptor(params, sk),
		tracer:    tracer,
	}
}

// DecryptNew decrypts ct on a new plaintext.
func (d *Decryptor) DecryptNew(ct *rlwe.Ciphertext) (pt *rlwe.Plaintext) {
	sc := d.tracer.Start("Decryptor.DecryptNew", ct)
	defer sc.Close()
	return trace.Output(sc, d.Decryptor.DecryptNew(ct), "output")
}

// Decrypt decrypts ct on pt.
func (d *Decryptor) Decrypt(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) {
	sc := d.tracer.Start("Decryptor.Decrypt", ct)
	defer sc.Close()
	d.Decryptor.Decrypt(ct, pt)
	sc.RegisterOutput(pt, "output")
}
