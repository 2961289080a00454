package traced

import (
	"bytes"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/Pro7ech/hetrace/trace"
	"github.com/Pro7ech/hetrace/trace/heracles"
)

func testParameters(t *testing.T) ckks.Parameters {
	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            10,
		LogQ:            []int{45, 35},
		LogP:            []int{45},
		LogDefaultScale: 35,
	})
	require.NoError(t, err)
	return params
}

// lines returns the non empty lines of buf.
func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestObjects(t *testing.T) {

	params := testParameters(t)
	objs := NewObjects()

	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk, kgen.GenGaloisKeysNew([]uint64{params.GaloisElementForRotation(1)}, sk)...)
	ct := ckks.NewCiphertext(params, 1, params.MaxLevel())
	pt := ckks.NewPlaintext(params, 0)

	for _, tc := range []struct {
		v    any
		kind trace.Kind
	}{
		{ct, trace.KindCiphertext},
		{pt, trace.KindPlaintext},
		{pk, trace.KindPublicKey},
		{sk, trace.KindPrivateKey},
		{rlk, trace.KindEvalKey},
		{evk, trace.KindEvalKeyMap},
	} {
		obj, ok := objs.Classify(tc.v)
		require.True(t, ok)
		require.Equal(t, tc.kind, obj.Kind())
		_, err := obj.MarshalBinary()
		require.NoError(t, err)
	}

	t.Run("Unknown", func(t *testing.T) {
		_, ok := objs.Classify(params)
		require.False(t, ok)
		_, ok = objs.Classify((*rlwe.Ciphertext)(nil))
		require.False(t, ok)
	})

	t.Run("Shape", func(t *testing.T) {
		obj, _ := objs.Classify(ct)
		require.Equal(t, params.MaxLevel()+1, obj.(trace.Shaped).NumRNS())
		require.Equal(t, 2, obj.(trace.Shaped).Order())
		polys := obj.(trace.PolyData).Polys()
		require.Len(t, polys, 2)
		require.Len(t, polys[0], params.MaxLevel()+1)
		require.Len(t, polys[0][0], params.N())

		obj, _ = objs.Classify(pt)
		require.Equal(t, 1, obj.(trace.Shaped).NumRNS())
		require.Len(t, obj.(trace.PolyData).Polys(), 1)
	})

	t.Run("Members", func(t *testing.T) {
		obj, _ := objs.Classify(evk)
		members := obj.(trace.Members).Members()
		require.Len(t, members, 2)
		require.Contains(t, members, uint64(0))
		require.Contains(t, members, params.GaloisElementForRotation(1))
	})

	t.Run("Tags", func(t *testing.T) {
		obj, _ := objs.Classify(ct)
		obj.(trace.Tagger).SetTraceTag("ciphertext_7")
		again, _ := objs.Classify(ct)
		require.Equal(t, "ciphertext_7", again.(trace.Tagger).TraceTag())
		require.Equal(t, 1, objs.Len())
		objs.Reset()
		require.Equal(t, "", again.(trace.Tagger).TraceTag())
	})

	t.Run("HeraclesParameters", func(t *testing.T) {
		p := HeraclesParameters(params)
		require.Equal(t, heracles.SchemeCKKS, p.Scheme)
		require.Equal(t, 1024, p.N)
		require.Empty(t, cmp.Diff(params.Q(), p.Q))
		require.Empty(t, cmp.Diff(params.P(), p.P))
		require.Equal(t, math.Exp2(35), p.DefaultScale)
		require.Len(t, p.Psi, len(p.Q)+len(p.P))
		require.NoError(t, p.Validate())

		ctx, err := heracles.NewContext(p)
		require.NoError(t, err)
		require.Equal(t, p.Psi, ctx.Psi)

		subRings := append(append([]*ring.SubRing{}, params.RingQ().SubRings...), params.RingP().SubRings...)
		for i, s := range subRings {
			psi, err := heracles.RootOfUnity(s.NthRoot, s.Modulus)
			require.NoError(t, err)
			require.Equal(t, p.Psi[i], psi)
		}
	})

	t.Run("HeraclesParameters/NTT", func(t *testing.T) {

		p := HeraclesParameters(params)

		// The NTT of X evaluates it at the odd powers of psi.
		rQ := params.RingQ()
		poly := rQ.NewPoly()
		for i := range poly.Coeffs {
			poly.Coeffs[i][1] = 1
		}
		rQ.NTT(poly, poly)

		for i, s := range rQ.SubRings {
			want := map[uint64]bool{}
			for j := 0; j < params.N(); j++ {
				want[ring.ModExp(p.Psi[i], uint64(2*j+1), s.Modulus)] = true
			}
			got := map[uint64]bool{}
			for _, c := range poly.Coeffs[i] {
				got[c] = true
			}
			require.Equal(t, want, got, s.Modulus)
		}
	})
}

func TestCircuit(t *testing.T) {

	params := testParameters(t)
	objs := NewObjects()

	hb, err := heracles.NewBackend(HeraclesParameters(params))
	require.NoError(t, err)

	var buf bytes.Buffer
	s := trace.NewSession(trace.Tee(trace.NewText(&buf), hb), objs.Option())

	kgen := NewKeyGenerator(params, s)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	gks := kgen.GenGaloisKeysNew([]uint64{params.GaloisElementForRotation(1)}, sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk, gks...)

	ecd := NewEncoder(params, s)
	enc := NewEncryptor(params, pk, s)
	dec := NewDecryptor(params, sk, s)
	eval := NewEvaluator(params, evk, s)

	slots := params.MaxSlots()
	values := make([]float64, slots)
	for i := range values {
		values[i] = float64(i) / float64(slots)
	}

	pt, err := ecd.EncodeNew(values, params.MaxLevel())
	require.NoError(t, err)

	ct, err := enc.EncryptNew(pt)
	require.NoError(t, err)

	sq, err := eval.MulRelinNew(ct, ct)
	require.NoError(t, err)
	require.NoError(t, eval.Rescale(sq, sq))

	rot, err := eval.RotateNew(sq, 1)
	require.NoError(t, err)

	res, err := eval.AddNew(rot, 0.5)
	require.NoError(t, err)

	got := make([]float64, slots)
	require.NoError(t, ecd.Decode(dec.DecryptNew(res), got))

	for i := range got {
		x := values[(i+1)%slots]
		require.InDelta(t, x*x+0.5, got[i], 1e-3)
	}

	t.Run("Text", func(t *testing.T) {
		ls := lines(&buf)
		require.Len(t, ls, 11)
		require.Equal(t, "KeyGenerator.GenKeyPairNew inputs=[] outputs=[output_public public_key_1 : public_key, output_private private_key_1 : private_key]", ls[0])
		require.Equal(t, "Encryptor.EncryptNew inputs=[input0 plaintext_1 : plaintext] outputs=[output ciphertext_1 : ciphertext]", ls[4])
		require.True(t, strings.HasPrefix(ls[5], "Evaluator.MulRelinNew inputs=[input0 ciphertext_1 : ciphertext, input1 ciphertext_1 : ciphertext, evk eval_key_map_1 : eval_key_map {0: eval_key_1, "))
		require.Equal(t, "Evaluator.Rescale inputs=[input0 ciphertext_2 : ciphertext] outputs=[output ciphertext_3 : ciphertext]", ls[6])
	})

	t.Run("Heracles", func(t *testing.T) {

		tr := hb.Trace()
		require.Equal(t, uint32(1024), tr.N)

		ops := make([]string, len(tr.Instructions))
		for i, ins := range tr.Instructions {
			ops[i] = ins.Op
		}

		require.Equal(t, []string{
			"keygen", "keygen_relin", "keygen_galois",
			"encode", "encrypt", "mul", "rescale", "rot", "add",
			"decrypt", "decode",
		}, ops)

		mul := tr.Instructions[5]
		require.Equal(t, []heracles.OperandObject{
			{SymbolName: "ciphertext_1", NumRNS: 2, Order: 2},
			{SymbolName: "ciphertext_1", NumRNS: 2, Order: 2},
		}, mul.Args.Srcs)
		require.Equal(t, heracles.Parameter{Value: "2", Type: heracles.TypeUint64}, mul.Args.Params["evk_size"])

		require.Equal(t, heracles.Parameter{Value: "1", Type: heracles.TypeInt64}, tr.Instructions[7].Args.Params["input1"])
		require.Equal(t, heracles.Parameter{Value: "0.5", Type: heracles.TypeDouble}, tr.Instructions[8].Args.Params["input1"])

		tv, err := hb.TestVector()
		require.NoError(t, err)
		require.Equal(t, []string{
			"ciphertext_1", "ciphertext_2", "ciphertext_3", "ciphertext_4", "ciphertext_5",
			"plaintext_1", "plaintext_2",
		}, tv.Symbols())

		rescaled := tv.Data["ciphertext_3"]
		require.Len(t, rescaled.Polys, 2)
		require.Len(t, rescaled.Polys[0].Limbs, 1)
		require.Len(t, rescaled.Polys[0].Limbs[0], 1024)
		require.True(t, rescaled.Polys[0].NTT)
	})
}

func TestIdentityPolicy(t *testing.T) {

	params := testParameters(t)

	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()

	run := func(policy trace.IdentityPolicy) []string {

		var buf bytes.Buffer
		objs := NewObjects()
		s := trace.NewSession(trace.NewText(&buf), objs.Option(), trace.WithIdentityPolicy(policy))

		ecd := NewEncoder(params, s)
		enc := NewEncryptor(params, pk, s)
		eval := NewEvaluator(params, nil, s)

		pt, err := ecd.EncodeNew([]float64{1, 2, 3}, params.MaxLevel())
		require.NoError(t, err)

		ct, err := enc.EncryptNew(pt)
		require.NoError(t, err)

		cp := CopyNew(s, ct)
		require.NoError(t, eval.Add(cp, 1.0, cp))

		dst := ckks.NewCiphertext(params, 1, params.MaxLevel())
		Copy(s, dst, cp)

		_ = NewDecryptor(params, sk, s).DecryptNew(dst)

		return lines(&buf)
	}

	t.Run("ContentHash", func(t *testing.T) {
		ls := run(trace.ContentHash)
		require.Equal(t, "Ciphertext.CopyNew outputs=[dest ciphertext_1 : ciphertext] <- inputs=[src ciphertext_1 : ciphertext]", ls[2])
		require.Equal(t, "Evaluator.Add inputs=[input0 ciphertext_1 : ciphertext, input1 1 : float64] outputs=[output ciphertext_2 : ciphertext]", ls[3])
		require.Equal(t, "Ciphertext.Copy outputs=[dest ciphertext_2 : ciphertext] <- inputs=[src ciphertext_2 : ciphertext]", ls[4])
		require.Equal(t, "Decryptor.DecryptNew inputs=[input0 ciphertext_2 : ciphertext] outputs=[output plaintext_2 : plaintext]", ls[5])
	})

	t.Run("MetadataTag", func(t *testing.T) {
		ls := run(trace.MetadataTag)
		require.Equal(t, "Evaluator.Add inputs=[input0 ciphertext_1 : ciphertext, input1 1 : float64] outputs=[output ciphertext_1 : ciphertext]", ls[3])
		require.Equal(t, "Decryptor.DecryptNew inputs=[input0 ciphertext_1 : ciphertext] outputs=[output plaintext_2 : plaintext]", ls[5])
	})
}

func TestHeraclesValues(t *testing.T) {

	params := testParameters(t)

	kgen := rlwe.NewKeyGenerator(params)
	_, pk := kgen.GenKeyPairNew()

	newSession := func(t *testing.T, policy trace.IdentityPolicy) (*heracles.Backend, *bytes.Buffer, *trace.Session) {
		hb, err := heracles.NewBackend(HeraclesParameters(params))
		require.NoError(t, err)
		buf := &bytes.Buffer{}
		objs := NewObjects()
		return hb, buf, trace.NewSession(trace.Tee(trace.NewText(buf), hb), objs.Option(), trace.WithIdentityPolicy(policy))
	}

	t.Run("BigFloat", func(t *testing.T) {

		hb, buf, s := newSession(t, trace.ContentHash)

		values := []*big.Float{big.NewFloat(1), big.NewFloat(2)}

		_, err := NewEncoder(params, s).EncodeNew(values, params.MaxLevel())
		require.NoError(t, err)

		require.NotContains(t, buf.String(), "untraced")
		require.True(t, strings.HasPrefix(buf.String(), "Encoder.EncodeNew inputs=[input0 [1 (2^"), buf.String())

		ins := hb.Trace().Instructions[0]
		require.Equal(t, heracles.Parameter{Value: "2", Type: heracles.TypeUint64}, ins.Args.Params["input0"])
	})

	t.Run("InPlace/MetadataTag", func(t *testing.T) {

		hb, _, s := newSession(t, trace.MetadataTag)

		pt, err := NewEncoder(params, s).EncodeNew([]float64{1, 2, 3}, params.MaxLevel())
		require.NoError(t, err)

		ct, err := NewEncryptor(params, pk, s).EncryptNew(pt)
		require.NoError(t, err)

		before := ct.Value[0].Coeffs[0][0]
		require.NoError(t, NewEvaluator(params, nil, s).Add(ct, 1.0, ct))
		after := ct.Value[0].Coeffs[0][0]
		require.NotEqual(t, before, after)

		add := hb.Trace().Instructions[2]
		require.Equal(t, "ciphertext_1", add.Args.Srcs[0].SymbolName)
		require.Equal(t, "ciphertext_1_v2", add.Args.Dests[0].SymbolName)

		tv, err := hb.TestVector()
		require.NoError(t, err)
		require.Equal(t, before, tv.Data["ciphertext_1"].Polys[0].Limbs[0][0])
		require.Equal(t, after, tv.Data["ciphertext_1_v2"].Polys[0].Limbs[0][0])
	})
}
