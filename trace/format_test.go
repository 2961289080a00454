package trace

import (
	"math/big"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatter(t *testing.T) {

	f := Formatter{Truncate: DefaultTruncate}

	for _, n := range []int{0, DefaultTruncate, DefaultTruncate + 1, 2*DefaultTruncate + 5} {
		t.Run("Truncate/Len="+strconv.Itoa(n), func(t *testing.T) {

			v := make([]float64, n)
			for i := range v {
				v[i] = float64(i)
			}

			out := f.Format(v)
			require.Equal(t, "[]float64", out.Type)
			require.Equal(t, n, out.Len)

			body := strings.TrimSuffix(strings.TrimPrefix(out.Text, "["), "]")

			var elems []string
			if body != "" {
				elems = strings.Split(body, ", ")
			}

			if n > DefaultTruncate {
				require.Len(t, elems, DefaultTruncate+1)
				require.Equal(t, "...("+strconv.Itoa(n-DefaultTruncate)+" more)", elems[DefaultTruncate])
			} else {
				require.Len(t, elems, n)
				require.NotContains(t, out.Text, "more")
			}
		})
	}

	t.Run("Truncate/Disabled", func(t *testing.T) {
		out := Formatter{}.Format(make([]int64, 40))
		require.NotContains(t, out.Text, "more")
		require.Equal(t, 40, strings.Count(out.Text, "0"))
	})

	t.Run("Scalars", func(t *testing.T) {
		require.Equal(t, Value{Type: "int64", Text: "-3", Len: -1, Raw: int64(-3)}, f.Format(int64(-3)))
		require.Equal(t, "0.25", f.Format(0.25).Text)
		require.Equal(t, "float64", f.Format(0.25).Type)
		require.Equal(t, "true", f.Format(true).Text)
		require.Equal(t, `"rot"`, f.Format("rot").Text)
		require.Equal(t, "uint32", f.Format(uint32(7)).Type)
	})

	t.Run("Complex", func(t *testing.T) {
		require.Equal(t, "(1.5+2i)", f.Format(complex(1.5, 2)).Text)
		require.Equal(t, "(1.5-2i)", f.Format(complex(1.5, -2)).Text)
		require.Equal(t, "complex128", f.Format(complex(1.5, -2)).Type)
		require.Equal(t, "[(1+0i), (0-1i)]", f.Format([]complex128{1, -1i}).Text)
	})

	t.Run("Vectors", func(t *testing.T) {
		require.Equal(t, "[1, 2, 3]", f.Format([]uint64{1, 2, 3}).Text)
		require.Equal(t, "[true, false]", f.Format([]bool{true, false}).Text)
		require.Equal(t, "[]bool", f.Format([]bool{true, false}).Type)
		require.Equal(t, "[1, 2, ...(1 more)]", FormatVector([]int8{1, 2, 3}, 2))
	})

	t.Run("Map", func(t *testing.T) {
		out := f.Format(map[int]float64{3: 0.5, 1: 2})
		require.Equal(t, "{1: 2, 3: 0.5}", out.Text)
		require.Equal(t, 2, out.Len)
	})

	t.Run("Enum", func(t *testing.T) {
		require.Equal(t, "output(1)", f.Format(RoleOutput).Text)
		require.Equal(t, "trace.Role", f.Format(RoleOutput).Type)
	})

	t.Run("BigFloat", func(t *testing.T) {
		x := new(big.Float).SetMantExp(big.NewFloat(1), 40)
		require.Contains(t, f.Format(x).Text, "(2^40.000)")
		require.Equal(t, "12345678901234567890", f.Format(new(big.Int).SetUint64(12345678901234567890)).Text)
	})

	t.Run("BigVectors", func(t *testing.T) {

		out := f.Format([]*big.Float{big.NewFloat(1), big.NewFloat(2)})
		require.False(t, out.Opaque)
		require.Equal(t, "[]*big.Float", out.Type)
		require.Equal(t, 2, out.Len)
		require.Equal(t, "[1 (2^0.000), 2 (2^1.000)]", out.Text)

		out = f.Format(&[2]*big.Float{big.NewFloat(1), big.NewFloat(-2)})
		require.False(t, out.Opaque)
		require.Equal(t, "*[2]*big.Float", out.Type)
		require.Equal(t, 2, out.Len)
		require.True(t, strings.HasSuffix(out.Text, ", -2]"), out.Text)

		out = f.Format([]*big.Int{big.NewInt(3), nil})
		require.False(t, out.Opaque)
		require.Equal(t, "[3, <nil>]", out.Text)
	})

	t.Run("NestedVectors", func(t *testing.T) {
		out := f.Format([][]float64{{1}, {2, 3}})
		require.False(t, out.Opaque)
		require.Equal(t, "[[1], [2, 3]]", out.Text)
		require.Equal(t, 2, out.Len)
	})

	t.Run("Stringer", func(t *testing.T) {
		out := f.Format(big.NewRat(1, 3))
		require.False(t, out.Opaque)
		require.Equal(t, "1/3", out.Text)
	})

	t.Run("Opaque", func(t *testing.T) {

		type params struct{ logN int }

		out := f.Format(&params{logN: 10})
		require.True(t, out.Opaque)
		require.True(t, strings.HasPrefix(out.Text, "<*trace.params @0x"), out.Text)

		out = f.Format(params{})
		require.True(t, out.Opaque)
		require.Equal(t, "<trace.params>", out.Text)

		out = f.Format(nil)
		require.True(t, out.Opaque)

		var p *params
		require.Equal(t, "<*trace.params nil>", f.Format(p).Text)
	})
}

func TestMnemonic(t *testing.T) {
	for _, tc := range []struct {
		function, mnemonic string
	}{
		{"AddNew", "add"},
		{"Evaluator.MulRelinNew", "mul"},
		{"MulNew", "mul_no_relin"},
		{"Evaluator.MulNoRelinNew", "mul_no_relin"},
		{"EvalMultNoRelin", "mul_no_relin"},
		{"EvalMult", "mul"},
		{"EvalAtIndex", "rot"},
		{"RotateNew", "rot"},
		{"Rescale", "rescale"},
		{"Encrypt", "encrypt"},
		{"InnerSum", "inner_sum"},
		{"EvalFastRotationExt", "fast_rotation_ext"},
		{"Evaluate", "evaluate"},
		{"New", "new"},
	} {
		t.Run(tc.function, func(t *testing.T) {
			require.Equal(t, tc.mnemonic, Mnemonic(tc.function))
		})
	}
}
