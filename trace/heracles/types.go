package heracles

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Scheme is the HERACLES scheme identifier.
type Scheme int32

const (
	SchemeBGV = Scheme(iota)
	SchemeCKKS
	SchemeBFV
)

func (s Scheme) String() string {
	switch s {
	case SchemeBGV:
		return "BGV"
	case SchemeCKKS:
		return "CKKS"
	case SchemeBFV:
		return "BFV"
	default:
		return fmt.Sprintf("Scheme(%d)", int32(s))
	}
}

// ValueType is the type of an instruction [Parameter].
type ValueType int32

const (
	TypeDouble = ValueType(iota)
	TypeFloat
	TypeInt32
	TypeInt64
	TypeUint32
	TypeUint64
	TypeString
)

// OperandObject is a source or destination of an [Instruction].
type OperandObject struct {
	SymbolName string
	NumRNS     uint32
	Order      uint32
}

// Parameter is a scalar argument of an [Instruction], rendered as text.
type Parameter struct {
	Value string
	Type  ValueType
}

// OperandArgs are the arguments of an [Instruction].
type OperandArgs struct {
	Srcs   []OperandObject
	Dests  []OperandObject
	Params map[string]Parameter
}

// Instruction is the record of one traced operation.
type Instruction struct {
	Op             string
	EvalOpName     string
	PlaintextIndex uint32
	Args           OperandArgs
}

// Trace is the instruction trace document.
type Trace struct {
	Scheme       Scheme
	N            uint32
	KeyRNSNum    uint32
	QSize        uint32
	DNum         uint32
	Alpha        uint32
	Instructions []Instruction
}

// CKKSInfo are the CKKS specific parameters of an [FHEContext].
type CKKSInfo struct {
	ScalingFactorReal    []float64
	ScalingFactorRealBig []float64
}

// FHEContext is the cryptographic context document.
type FHEContext struct {
	Scheme    Scheme
	N         uint32
	KeyRNSNum uint32
	Alpha     uint32
	DigitSize uint32
	Q         []uint64
	Psi       []uint64
	QSize     uint32
	CKKSInfo  *CKKSInfo
}

// DCRTPoly is one polynomial in double-CRT form, one coefficient slice per RNS limb.
type DCRTPoly struct {
	Limbs [][]uint64
	NTT   bool
}

// Data is the raw content of one traced object.
type Data struct {
	Polys []DCRTPoly
}

// TestVector maps symbols onto their raw data.
type TestVector struct {
	Data map[string]*Data
}

// Symbols returns the sorted symbols of the test vector.
func (tv *TestVector) Symbols() (symbols []string) {
	for sym := range tv.Data {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return
}

// DataTrace combines the context and the test vector.
type DataTrace struct {
	Context    *FHEContext
	TestVector *TestVector
}

type codec interface {
	descriptor() protoreflect.MessageDescriptor
	encode(m protoreflect.Message)
	decode(m protoreflect.Message) (err error)
}

func marshalBinary(c codec) (p []byte, err error) {
	m := dynamicpb.NewMessage(c.descriptor())
	c.encode(m)
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func unmarshalBinary(c codec, p []byte) (err error) {
	m := dynamicpb.NewMessage(c.descriptor())
	if err = proto.Unmarshal(p, m); err != nil {
		return
	}
	return c.decode(m)
}

func marshalJSON(c codec) (p []byte, err error) {
	m := dynamicpb.NewMessage(c.descriptor())
	c.encode(m)
	return protojson.MarshalOptions{UseProtoNames: true, Multiline: true, Indent: "  "}.Marshal(m)
}

func unmarshalJSON(c codec, p []byte) (err error) {
	m := dynamicpb.NewMessage(c.descriptor())
	if err = protojson.Unmarshal(p, m); err != nil {
		return
	}
	return c.decode(m)
}

// MarshalBinary encodes the trace in the HERACLES binary format.
func (t *Trace) MarshalBinary() (p []byte, err error) { return marshalBinary(t) }

// UnmarshalBinary decodes a trace in the HERACLES binary format.
func (t *Trace) UnmarshalBinary(p []byte) (err error) { return unmarshalBinary(t, p) }

// MarshalJSON encodes the trace in the HERACLES JSON format.
func (t *Trace) MarshalJSON() (p []byte, err error) { return marshalJSON(t) }

// UnmarshalJSON decodes a trace in the HERACLES JSON format.
func (t *Trace) UnmarshalJSON(p []byte) (err error) { return unmarshalJSON(t, p) }

func (c *FHEContext) MarshalBinary() (p []byte, err error) { return marshalBinary(c) }

func (c *FHEContext) UnmarshalBinary(p []byte) (err error) { return unmarshalBinary(c, p) }

func (c *FHEContext) MarshalJSON() (p []byte, err error) { return marshalJSON(c) }

func (c *FHEContext) UnmarshalJSON(p []byte) (err error) { return unmarshalJSON(c, p) }

func (tv *TestVector) MarshalBinary() (p []byte, err error) { return marshalBinary(tv) }

func (tv *TestVector) UnmarshalBinary(p []byte) (err error) { return unmarshalBinary(tv, p) }

func (tv *TestVector) MarshalJSON() (p []byte, err error) { return marshalJSON(tv) }

func (tv *TestVector) UnmarshalJSON(p []byte) (err error) { return unmarshalJSON(tv, p) }

func (dt *DataTrace) MarshalBinary() (p []byte, err error) { return marshalBinary(dt) }

func (dt *DataTrace) UnmarshalBinary(p []byte) (err error) { return unmarshalBinary(dt, p) }

func (t *Trace) descriptor() protoreflect.MessageDescriptor { return schema.trace }

func (c *FHEContext) descriptor() protoreflect.MessageDescriptor { return schema.fheContext }

func (tv *TestVector) descriptor() protoreflect.MessageDescriptor { return schema.testVector }

func (dt *DataTrace) descriptor() protoreflect.MessageDescriptor { return schema.dataTrace }

func (t *Trace) encode(m protoreflect.Message) {
	set(m, "scheme", protoreflect.ValueOfEnum(protoreflect.EnumNumber(t.Scheme)))
	set(m, "n", protoreflect.ValueOfUint32(t.N))
	set(m, "key_rns_num", protoreflect.ValueOfUint32(t.KeyRNSNum))
	set(m, "q_size", protoreflect.ValueOfUint32(t.QSize))
	set(m, "dnum", protoreflect.ValueOfUint32(t.DNum))
	set(m, "alpha", protoreflect.ValueOfUint32(t.Alpha))
	for i := range t.Instructions {
		t.Instructions[i].encode(appendMessage(m, "instructions"))
	}
}

func (t *Trace) decode(m protoreflect.Message) (err error) {
	t.Scheme = Scheme(get(m, "scheme").Enum())
	t.N = uint32(get(m, "n").Uint())
	t.KeyRNSNum = uint32(get(m, "key_rns_num").Uint())
	t.QSize = uint32(get(m, "q_size").Uint())
	t.DNum = uint32(get(m, "dnum").Uint())
	t.Alpha = uint32(get(m, "alpha").Uint())
	l := get(m, "instructions").List()
	t.Instructions = make([]Instruction, l.Len())
	for i := range t.Instructions {
		t.Instructions[i].decode(l.Get(i).Message())
	}
	return
}

func (ins *Instruction) encode(m protoreflect.Message) {
	set(m, "op", protoreflect.ValueOfString(ins.Op))
	set(m, "evalop_name", protoreflect.ValueOfString(ins.EvalOpName))
	set(m, "plaintext_index", protoreflect.ValueOfUint32(ins.PlaintextIndex))

	args := m.Mutable(field(m, "args")).Message()

	for _, op := range ins.Args.Srcs {
		op.encode(appendMessage(args, "srcs"))
	}

	for _, op := range ins.Args.Dests {
		op.encode(appendMessage(args, "dests"))
	}

	params := args.Mutable(field(args, "params")).Map()
	for name, p := range ins.Args.Params {
		v := params.NewValue()
		set(v.Message(), "value", protoreflect.ValueOfString(p.Value))
		set(v.Message(), "type", protoreflect.ValueOfEnum(protoreflect.EnumNumber(p.Type)))
		params.Set(protoreflect.ValueOfString(name).MapKey(), v)
	}
}

func (ins *Instruction) decode(m protoreflect.Message) {
	ins.Op = get(m, "op").String()
	ins.EvalOpName = get(m, "evalop_name").String()
	ins.PlaintextIndex = uint32(get(m, "plaintext_index").Uint())

	args := get(m, "args").Message()

	ins.Args.Srcs = decodeOperands(get(args, "srcs").List())
	ins.Args.Dests = decodeOperands(get(args, "dests").List())

	params := get(args, "params").Map()
	if params.Len() > 0 {
		ins.Args.Params = make(map[string]Parameter, params.Len())
	}
	params.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		ins.Args.Params[k.String()] = Parameter{
			Value: get(v.Message(), "value").String(),
			Type:  ValueType(get(v.Message(), "type").Enum()),
		}
		return true
	})
}

func (op OperandObject) encode(m protoreflect.Message) {
	set(m, "symbol_name", protoreflect.ValueOfString(op.SymbolName))
	set(m, "num_rns", protoreflect.ValueOfUint32(op.NumRNS))
	set(m, "order", protoreflect.ValueOfUint32(op.Order))
}

func decodeOperands(l protoreflect.List) (ops []OperandObject) {
	for i := 0; i < l.Len(); i++ {
		m := l.Get(i).Message()
		ops = append(ops, OperandObject{
			SymbolName: get(m, "symbol_name").String(),
			NumRNS:     uint32(get(m, "num_rns").Uint()),
			Order:      uint32(get(m, "order").Uint()),
		})
	}
	return
}

func (c *FHEContext) encode(m protoreflect.Message) {
	set(m, "scheme", protoreflect.ValueOfEnum(protoreflect.EnumNumber(c.Scheme)))
	set(m, "n", protoreflect.ValueOfUint32(c.N))
	set(m, "key_rns_num", protoreflect.ValueOfUint32(c.KeyRNSNum))
	set(m, "alpha", protoreflect.ValueOfUint32(c.Alpha))
	set(m, "digit_size", protoreflect.ValueOfUint32(c.DigitSize))
	appendUint64(m, "q_i", c.Q)
	appendUint64(m, "psi", c.Psi)
	set(m, "q_size", protoreflect.ValueOfUint32(c.QSize))

	if c.CKKSInfo != nil {
		set(m, "has_ckks_info", protoreflect.ValueOfBool(true))
		info := m.Mutable(field(m, "ckks_info")).Message()
		appendFloat64(info, "scaling_factor_real", c.CKKSInfo.ScalingFactorReal)
		appendFloat64(info, "scaling_factor_real_big", c.CKKSInfo.ScalingFactorRealBig)
	}
}

func (c *FHEContext) decode(m protoreflect.Message) (err error) {
	c.Scheme = Scheme(get(m, "scheme").Enum())
	c.N = uint32(get(m, "n").Uint())
	c.KeyRNSNum = uint32(get(m, "key_rns_num").Uint())
	c.Alpha = uint32(get(m, "alpha").Uint())
	c.DigitSize = uint32(get(m, "digit_size").Uint())
	c.Q = listUint64(get(m, "q_i").List())
	c.Psi = listUint64(get(m, "psi").List())
	c.QSize = uint32(get(m, "q_size").Uint())

	if get(m, "has_ckks_info").Bool() {
		info := get(m, "ckks_info").Message()
		c.CKKSInfo = &CKKSInfo{
			ScalingFactorReal:    listFloat64(get(info, "scaling_factor_real").List()),
			ScalingFactorRealBig: listFloat64(get(info, "scaling_factor_real_big").List()),
		}
	}

	return
}

func (d *Data) encode(m protoreflect.Message) {
	for _, poly := range d.Polys {
		pm := appendMessage(m, "dcrtpolys")
		for _, limb := range poly.Limbs {
			appendUint64(appendMessage(pm, "rns_polys"), "coeffs", limb)
		}
		set(pm, "in_ntt_form", protoreflect.ValueOfBool(poly.NTT))
	}
}

func (d *Data) decode(m protoreflect.Message) {
	polys := get(m, "dcrtpolys").List()
	d.Polys = make([]DCRTPoly, polys.Len())
	for i := range d.Polys {
		pm := polys.Get(i).Message()
		limbs := get(pm, "rns_polys").List()
		d.Polys[i].NTT = get(pm, "in_ntt_form").Bool()
		d.Polys[i].Limbs = make([][]uint64, limbs.Len())
		for j := range d.Polys[i].Limbs {
			d.Polys[i].Limbs[j] = listUint64(get(limbs.Get(j).Message(), "coeffs").List())
		}
	}
}

func (tv *TestVector) encode(m protoreflect.Message) {
	mp := m.Mutable(field(m, "sym_data_map")).Map()
	for _, sym := range tv.Symbols() {
		v := mp.NewValue()
		tv.Data[sym].encode(v.Message())
		mp.Set(protoreflect.ValueOfString(sym).MapKey(), v)
	}
}

func (tv *TestVector) decode(m protoreflect.Message) (err error) {
	mp := get(m, "sym_data_map").Map()
	tv.Data = make(map[string]*Data, mp.Len())
	mp.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		d := &Data{}
		d.decode(v.Message())
		tv.Data[k.String()] = d
		return true
	})
	return
}

func (dt *DataTrace) encode(m protoreflect.Message) {
	if dt.Context != nil {
		dt.Context.encode(m.Mutable(field(m, "context")).Message())
	}
	if dt.TestVector != nil {
		dt.TestVector.encode(m.Mutable(field(m, "test_vector")).Message())
	}
}

func (dt *DataTrace) decode(m protoreflect.Message) (err error) {
	dt.Context = &FHEContext{}
	if err = dt.Context.decode(get(m, "context").Message()); err != nil {
		return
	}
	dt.TestVector = &TestVector{}
	return dt.TestVector.decode(get(m, "test_vector").Message())
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Errorf("heracles: %s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

func set(m protoreflect.Message, name protoreflect.Name, v protoreflect.Value) {
	m.Set(field(m, name), v)
}

func get(m protoreflect.Message, name protoreflect.Name) protoreflect.Value {
	return m.Get(field(m, name))
}

func appendMessage(m protoreflect.Message, name protoreflect.Name) protoreflect.Message {
	l := m.Mutable(field(m, name)).List()
	v := l.NewElement()
	l.Append(v)
	return v.Message()
}

func appendUint64(m protoreflect.Message, name protoreflect.Name, values []uint64) {
	if len(values) == 0 {
		return
	}
	l := m.Mutable(field(m, name)).List()
	for _, v := range values {
		l.Append(protoreflect.ValueOfUint64(v))
	}
}

func appendFloat64(m protoreflect.Message, name protoreflect.Name, values []float64) {
	if len(values) == 0 {
		return
	}
	l := m.Mutable(field(m, name)).List()
	for _, v := range values {
		l.Append(protoreflect.ValueOfFloat64(v))
	}
}

func listUint64(l protoreflect.List) (values []uint64) {
	for i := 0; i < l.Len(); i++ {
		values = append(values, l.Get(i).Uint())
	}
	return
}

func listFloat64(l protoreflect.List) (values []float64) {
	for i := 0; i < l.Len(); i++ {
		values = append(values, l.Get(i).Float())
	}
	return
}
