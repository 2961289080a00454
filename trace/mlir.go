package trace

import (
	"io"
	"math/big"
	"reflect"
	"strings"
)

// DefaultNamespace is the dialect namespace of [MLIR] when none is given.
const DefaultNamespace = "lattigo"

// MLIR is a [Backend] writing one SSA-like pseudo instruction per closed scope:
//
//	%ct3 = lattigo.add %ct1, %ct2 : (!lwe.ct, !lwe.ct) -> !lwe.ct
//
// MLIR is not safe for concurrent use.
type MLIR struct {
	w         io.Writer
	namespace string
}

// NewMLIR returns an [MLIR] backend writing to w.
func NewMLIR(w io.Writer, namespace string) *MLIR {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &MLIR{w: w, namespace: namespace}
}

func (m *MLIR) Begin(*Record) {}

func (m *MLIR) Capture(*Record, Role, *Entry, []Object) (err error) {
	return
}

// End writes the instruction of rec.
func (m *MLIR) End(rec *Record) (err error) {
	_, err = io.WriteString(m.w, m.Line(rec)+"\n")
	return
}

// Line renders rec without the trailing newline. Data movements render as
// a comment.
func (m *MLIR) Line(rec *Record) string {

	var b strings.Builder

	b.WriteString(strings.Repeat("  ", rec.Level))

	if rec.Movement {
		b.WriteString("// ")
		b.WriteString(rec.Function)
		b.WriteString(": ")
		b.WriteString(strings.Join(operands(rec.Outputs, true), ", "))
		b.WriteString(" <- ")
		b.WriteString(strings.Join(operands(rec.Inputs, false), ", "))
		return b.String()
	}

	dests := operands(rec.Outputs, true)

	if len(dests) > 0 {
		b.WriteString(strings.Join(dests, ", "))
		b.WriteString(" = ")
	}

	b.WriteString(m.namespace)
	b.WriteByte('.')
	b.WriteString(Mnemonic(rec.Function))

	if srcs := operands(rec.Inputs, false); len(srcs) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(srcs, ", "))
	}

	b.WriteString(" : (")
	b.WriteString(strings.Join(irTypes(rec.Inputs), ", "))
	b.WriteString(") -> ")

	switch types := irTypes(rec.Outputs); len(types) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(types[0])
	default:
		b.WriteString("(" + strings.Join(types, ", ") + ")")
	}

	return b.String()
}

// operands renders objects as registers and values as literals,
// or as registers named after the entry for destinations.
func operands(entries []Entry, dest bool) (ops []string) {
	ops = make([]string, len(entries))
	for i, e := range entries {
		switch {
		case e.IsObject():
			ops[i] = e.Ref().Register()
		case dest || e.Value.Opaque:
			ops[i] = "%" + e.Name
		default:
			ops[i] = e.Value.Text
		}
	}
	return
}

func irTypes(entries []Entry) (types []string) {
	types = make([]string, len(entries))
	for i, e := range entries {
		if e.IsObject() {
			types[i] = e.Ref().Kind.IRType()
		} else {
			types[i] = irValueType(e.Value.Raw)
		}
	}
	return
}

func irValueType(v any) string {

	switch v.(type) {
	case nil:
		return "!openfhe.opaque"
	case *big.Float:
		return "!openfhe.bigfloat"
	case *big.Int:
		return "!openfhe.bigint"
	}

	return irKindType(reflect.TypeOf(v))
}

func irKindType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "i1"
	case reflect.Int8:
		return "i8"
	case reflect.Int16:
		return "i16"
	case reflect.Int32:
		return "i32"
	case reflect.Int, reflect.Int64:
		return "i64"
	case reflect.Uint8:
		return "ui8"
	case reflect.Uint16:
		return "ui16"
	case reflect.Uint32:
		return "ui32"
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return "ui64"
	case reflect.Float32:
		return "f32"
	case reflect.Float64:
		return "f64"
	case reflect.Complex64, reflect.Complex128:
		return "!openfhe.complex"
	case reflect.String:
		return "!openfhe.str"
	case reflect.Slice, reflect.Array:
		return "tensor<?x" + irKindType(t.Elem()) + ">"
	case reflect.Map:
		return "!openfhe.map"
	}
	return "!openfhe.opaque"
}
