package trace

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ALTree/bigfloat"
	"golang.org/x/exp/constraints"
)

// DefaultTruncate is the default maximum number of rendered vector elements.
const DefaultTruncate = 16

// Value is the rendering of a non-object argument.
type Value struct {
	// Type is the Go type of the value, e.g. "[]float64".
	Type string
	Text string
	// Len is the number of elements of vectors and maps, -1 for scalars.
	Len int
	// Opaque is true if the value has no dedicated rendering
	// and is not fully traced.
	Opaque bool
	Raw    any
}

// Formatter renders values. Vectors longer than Truncate are truncated;
// a non-positive Truncate disables truncation.
type Formatter struct {
	Truncate int
}

// Format renders v.
func (f Formatter) Format(v any) Value {

	switch v := v.(type) {
	case nil:
		return Value{Type: "nil", Text: "<nil>", Len: -1, Opaque: true}
	case []float64:
		return Value{Type: "[]float64", Text: FormatVector(v, f.Truncate), Len: len(v), Raw: v}
	case []complex128:
		return Value{Type: "[]complex128", Text: FormatVector(v, f.Truncate), Len: len(v), Raw: v}
	case []int64:
		return Value{Type: "[]int64", Text: FormatVector(v, f.Truncate), Len: len(v), Raw: v}
	case []uint64:
		return Value{Type: "[]uint64", Text: FormatVector(v, f.Truncate), Len: len(v), Raw: v}
	case []int:
		return Value{Type: "[]int", Text: FormatVector(v, f.Truncate), Len: len(v), Raw: v}
	case *big.Float:
		return Value{Type: "*big.Float", Text: formatBigFloat(v), Len: -1, Raw: v}
	case *big.Int:
		return Value{Type: "*big.Int", Text: v.String(), Len: -1, Raw: v}
	}

	rv := reflect.ValueOf(v)
	typ := rv.Type().String()

	if s, ok := v.(fmt.Stringer); ok && isInteger(rv.Kind()) {
		return Value{Type: typ, Text: fmt.Sprintf("%s(%d)", s.String(), integer(rv)), Len: -1, Raw: v}
	}

	if text, ok := formatScalar(rv); ok {
		return Value{Type: typ, Text: text, Len: -1, Raw: v}
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if text, ok := f.formatSlice(rv); ok {
			return Value{Type: typ, Text: text, Len: rv.Len(), Raw: v}
		}
	case reflect.Map:
		if text, ok := f.formatMap(rv); ok {
			return Value{Type: typ, Text: text, Len: rv.Len(), Raw: v}
		}
	case reflect.Pointer:
		// e.g. *bignum.Complex
		if !rv.IsNil() && rv.Elem().Kind() == reflect.Array {
			if text, ok := f.formatSlice(rv.Elem()); ok {
				return Value{Type: typ, Text: text, Len: rv.Elem().Len(), Raw: v}
			}
		}
	}

	if text, ok := formatStringer(rv); ok {
		return Value{Type: typ, Text: text, Len: -1, Raw: v}
	}

	if rv.Kind() == reflect.Pointer || rv.Kind() == reflect.UnsafePointer {
		if rv.IsNil() {
			return Value{Type: typ, Text: fmt.Sprintf("<%s nil>", typ), Len: -1, Opaque: true, Raw: v}
		}
		return Value{Type: typ, Text: fmt.Sprintf("<%s @%#x>", typ, rv.Pointer()), Len: -1, Opaque: true, Raw: v}
	}

	return Value{Type: typ, Text: "<" + typ + ">", Len: -1, Opaque: true, Raw: v}
}

// FormatVector renders at most truncate elements of v followed by
// ", ...(k more)" if k elements were left out.
func FormatVector[T constraints.Integer | constraints.Float | constraints.Complex](v []T, truncate int) string {
	n := len(v)
	if truncate > 0 && n > truncate {
		n = truncate
	}
	elems := make([]string, n)
	for i := range elems {
		elems[i] = formatNumber(v[i])
	}
	return joinTruncated(elems, len(v)-n, "[", "]")
}

func formatNumber[T constraints.Integer | constraints.Float | constraints.Complex](x T) string {
	switch x := any(x).(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case complex128:
		return strconv.FormatComplex(x, 'g', -1, 128)
	case complex64:
		return strconv.FormatComplex(complex128(x), 'g', -1, 64)
	}
	return fmt.Sprint(x)
}

func joinTruncated(elems []string, more int, open, close string) string {
	var b strings.Builder
	b.WriteString(open)
	b.WriteString(strings.Join(elems, ", "))
	if more > 0 {
		if len(elems) > 0 {
			b.WriteString(", ")
		}
		b.WriteString("...(")
		b.WriteString(strconv.Itoa(more))
		b.WriteString(" more)")
	}
	b.WriteString(close)
	return b.String()
}

func formatScalar(rv reflect.Value) (string, bool) {
	switch rv.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	case reflect.Complex64:
		return strconv.FormatComplex(rv.Complex(), 'g', -1, 64), true
	case reflect.Complex128:
		return strconv.FormatComplex(rv.Complex(), 'g', -1, 128), true
	case reflect.String:
		return strconv.Quote(rv.String()), true
	}
	return "", false
}

func (f Formatter) formatSlice(rv reflect.Value) (string, bool) {
	n := rv.Len()
	if f.Truncate > 0 && n > f.Truncate {
		n = f.Truncate
	}
	elems := make([]string, n)
	for i := range elems {
		text, ok := f.formatElement(rv.Index(i))
		if !ok {
			return "", false
		}
		elems[i] = text
	}
	return joinTruncated(elems, rv.Len()-n, "[", "]"), true
}

// formatElement renders a vector element: a scalar, an arbitrary precision
// number, a [fmt.Stringer] or a nested vector.
func (f Formatter) formatElement(rv reflect.Value) (string, bool) {

	if text, ok := formatScalar(rv); ok {
		return text, true
	}

	if text, ok := formatStringer(rv); ok {
		return text, true
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return f.formatSlice(rv)
	case reflect.Pointer:
		if !rv.IsNil() && rv.Elem().Kind() == reflect.Array {
			return f.formatSlice(rv.Elem())
		}
	}

	return "", false
}

// formatStringer renders *big.Float, *big.Int and non-nil [fmt.Stringer].
func formatStringer(rv reflect.Value) (string, bool) {

	if !rv.IsValid() || !rv.CanInterface() {
		return "", false
	}

	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return "<nil>", rv.Type().Implements(stringer)
	}

	switch x := rv.Interface().(type) {
	case *big.Float:
		return formatBigFloat(x), true
	case *big.Int:
		return x.String(), true
	case fmt.Stringer:
		return x.String(), true
	}

	return "", false
}

var stringer = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

func (f Formatter) formatMap(rv reflect.Value) (string, bool) {

	keys := rv.MapKeys()

	if len(keys) > 0 && !isInteger(keys[0].Kind()) {
		return "", false
	}

	sort.Slice(keys, func(i, j int) bool {
		return integer(keys[i]) < integer(keys[j])
	})

	n := len(keys)
	if f.Truncate > 0 && n > f.Truncate {
		n = f.Truncate
	}

	elems := make([]string, n)
	for i := range elems {
		v := f.Format(rv.MapIndex(keys[i]).Interface())
		elems[i] = strconv.FormatInt(integer(keys[i]), 10) + ": " + v.Text
	}

	return joinTruncated(elems, len(keys)-n, "{", "}"), true
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func integer(rv reflect.Value) int64 {
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(rv.Uint())
	}
	return rv.Int()
}

// formatBigFloat renders x with its base 2 logarithm, e.g. "1.099511628e+12 (2^40.000)".
func formatBigFloat(x *big.Float) string {
	if x == nil {
		return "<nil>"
	}
	text := x.Text('g', 10)
	if x.Sign() <= 0 {
		return text
	}
	prec := x.Prec()
	if prec < 64 {
		prec = 64
	}
	ln2 := bigfloat.Log(new(big.Float).SetPrec(prec).SetInt64(2))
	log2, _ := new(big.Float).Quo(bigfloat.Log(new(big.Float).SetPrec(prec).Set(x)), ln2).Float64()
	return fmt.Sprintf("%s (2^%s)", text, strconv.FormatFloat(log2, 'f', 3, 64))
}
