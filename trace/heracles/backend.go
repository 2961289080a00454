// Package heracles implements a trace backend recording HERACLES protobuf
// traces: an instruction trace, the cryptographic context and a test vector
// holding the raw data of every traced ciphertext and plaintext.
package heracles

import (
	"fmt"
	"math/big"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Pro7ech/hetrace/trace"
	"github.com/Pro7ech/hetrace/utils/concurrency"
)

// Backend is a [trace.Backend] recording HERACLES traces.
//
// Recording only keeps instructions and copies of raw coefficients.
// The protobuf documents are derived on first access and cached until the
// next instruction is recorded. Backend is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	params  Parameters
	context *FHEContext
	workers int

	open         map[uuid.UUID]*pending
	instructions []Instruction
	pool         map[string]trace.PolyData
	// versions maps a symbol onto the name of its latest version,
	// revisions counts its updates.
	versions  map[string]string
	revisions map[string]int

	trace      *Trace
	testVector *TestVector
}

// Option configures a [Backend].
type Option func(b *Backend)

// WithWorkers sets the number of goroutines converting test vector data,
// runtime.NumCPU() by default.
func WithWorkers(n int) Option {
	return func(b *Backend) {
		b.workers = n
	}
}

// NewBackend returns a new [Backend] for the parameters p.
// Returns an error wrapping [ErrUnsupportedScheme] if the scheme of p is not CKKS.
func NewBackend(p Parameters, opts ...Option) (b *Backend, err error) {

	var ctx *FHEContext
	if ctx, err = NewContext(p); err != nil {
		return
	}

	b = &Backend{
		params:  p,
		context: ctx,
		workers: runtime.NumCPU(),
		open:    map[uuid.UUID]*pending{},
		pool:    map[string]trace.PolyData{},

		versions:  map[string]string{},
		revisions: map[string]int{},
	}

	for _, opt := range opts {
		opt(b)
	}

	return
}

// Begin starts the instruction of rec.
func (b *Backend) Begin(rec *trace.Record) {

	if rec.Movement {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.open[rec.ID] = &pending{
		Instruction: Instruction{
			Op:         trace.Mnemonic(rec.Function),
			EvalOpName: rec.Function,
		},
	}
}

// pending is an instruction whose scope is still open.
type pending struct {
	Instruction
	plaintext bool
}

// Capture adds e to the instruction of rec. Ciphertexts, plaintexts and raw
// elements become operands, evaluation-key maps become a size parameter and
// other keys are skipped. Values become parameters; opaque values are
// rejected with [trace.ErrUnsupported].
//
// An output keeping the symbol of an object whose data changed, as with
// in-place operations under [trace.MetadataTag], is recorded as the new
// version "{symbol}_v{n}"; later instructions refer to the latest version.
func (b *Backend) Capture(rec *trace.Record, role trace.Role, e *trace.Entry, objs []trace.Object) (err error) {

	b.mu.Lock()
	defer b.mu.Unlock()

	ins, ok := b.open[rec.ID]
	if !ok {
		return
	}

	if !e.IsObject() {
		if role == trace.RoleOutput {
			return
		}
		return ins.addParameters(e.Name, e.Value)
	}

	ref := e.Ref()

	switch ref.Kind {
	case trace.KindCiphertext, trace.KindPlaintext, trace.KindElement:
	case trace.KindEvalKeyMap:
		if role == trace.RoleInput {
			ins.setParameter(e.Name+"_size", Parameter{Value: strconv.Itoa(len(e.Keys)), Type: TypeUint64})
		}
		return
	default:
		return
	}

	name := ref.Symbol
	if v, ok := b.versions[ref.Symbol]; ok {
		name = v
	}

	pd, data := objs[0].(trace.PolyData)

	// A symbol kept through an in-place update gets a new version so
	// that its test vector data matches every instruction using it.
	if data && role == trace.RoleOutput {
		if old, seen := b.pool[name]; seen && !equalData(old, pd) {
			b.revisions[ref.Symbol]++
			name = ref.Symbol + "_v" + strconv.Itoa(b.revisions[ref.Symbol]+1)
			b.versions[ref.Symbol] = name
		}
	}

	op := OperandObject{
		SymbolName: name,
		NumRNS:     uint32(ref.NumRNS),
		Order:      uint32(ref.Order),
	}

	if ref.Kind == trace.KindPlaintext && op.Order == 0 {
		op.Order = 1
	}

	if role == trace.RoleInput {
		if ref.Kind == trace.KindPlaintext && !ins.plaintext {
			ins.PlaintextIndex = uint32(len(ins.Args.Srcs))
			ins.plaintext = true
		}
		ins.Args.Srcs = append(ins.Args.Srcs, op)
	} else {
		ins.Args.Dests = append(ins.Args.Dests, op)
	}

	if data {
		if _, seen := b.pool[name]; !seen {
			b.pool[name] = snapshot(pd)
		}
	}

	return
}

// End appends the instruction of rec to the trace.
func (b *Backend) End(rec *trace.Record) (err error) {

	b.mu.Lock()
	defer b.mu.Unlock()

	ins, ok := b.open[rec.ID]
	if !ok {
		return
	}

	delete(b.open, rec.ID)

	b.instructions = append(b.instructions, ins.Instruction)
	b.trace = nil
	b.testVector = nil

	return
}

// Len returns the number of recorded instructions.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.instructions)
}

// Parameters returns the parameters the backend was created with.
func (b *Backend) Parameters() Parameters {
	return b.params
}

// Context returns the cryptographic context document.
func (b *Backend) Context() *FHEContext {
	return b.context
}

// Trace returns the instruction trace document.
func (b *Backend) Trace() *Trace {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.traceLocked()
}

func (b *Backend) traceLocked() *Trace {
	if b.trace == nil {
		b.trace = &Trace{
			Scheme:       b.context.Scheme,
			N:            b.context.N,
			KeyRNSNum:    b.context.KeyRNSNum,
			QSize:        b.context.QSize,
			DNum:         b.context.DigitSize,
			Alpha:        b.context.Alpha,
			Instructions: append([]Instruction{}, b.instructions...),
		}
	}
	return b.trace
}

// TestVector returns the test vector document, holding the data of the
// symbols referenced by the recorded instructions only.
func (b *Backend) TestVector() (tv *TestVector, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.testVectorLocked()
}

func (b *Backend) testVectorLocked() (tv *TestVector, err error) {

	if b.testVector != nil {
		return b.testVector, nil
	}

	var symbols []string
	seen := map[string]bool{}

	for _, ins := range b.traceLocked().Instructions {
		for _, ops := range [][]OperandObject{ins.Args.Srcs, ins.Args.Dests} {
			for _, op := range ops {
				if _, ok := b.pool[op.SymbolName]; ok && !seen[op.SymbolName] {
					seen[op.SymbolName] = true
					symbols = append(symbols, op.SymbolName)
				}
			}
		}
	}

	data, err := concurrency.Map(b.workers, symbols, func(sym string) (*Data, error) {
		return convert(sym, b.pool[sym])
	})

	if err != nil {
		return nil, err
	}

	tv = &TestVector{Data: make(map[string]*Data, len(symbols))}
	for i, sym := range symbols {
		tv.Data[sym] = data[i]
	}

	b.testVector = tv

	return
}

// DataTrace returns the combined context and test vector.
func (b *Backend) DataTrace() (dt *DataTrace, err error) {
	var tv *TestVector
	if tv, err = b.TestVector(); err != nil {
		return
	}
	return &DataTrace{Context: b.context, TestVector: tv}, nil
}

func (ins *Instruction) setParameter(name string, p Parameter) {
	if ins.Args.Params == nil {
		ins.Args.Params = map[string]Parameter{}
	}
	ins.Args.Params[name] = p
}

// addParameters maps a value onto instruction parameters: vectors and maps
// become their size, complex numbers a real and an imaginary part.
func (ins *Instruction) addParameters(name string, v trace.Value) (err error) {

	if re, im, ok := bigComplex(v.Raw); ok {
		ins.setParameter(name+"_real", Parameter{Value: re.Text('g', -1), Type: TypeDouble})
		ins.setParameter(name+"_imag", Parameter{Value: im.Text('g', -1), Type: TypeDouble})
		return
	}

	if v.Raw != nil {
		if k := reflect.ValueOf(v.Raw).Kind(); k == reflect.Slice || k == reflect.Array {
			ins.setParameter(name, Parameter{Value: strconv.Itoa(reflect.ValueOf(v.Raw).Len()), Type: TypeUint64})
			return
		}
	}

	if v.Opaque {
		return fmt.Errorf("%w: %s of type %s", trace.ErrUnsupported, name, v.Type)
	}

	switch x := v.Raw.(type) {
	case *big.Float:
		ins.setParameter(name, Parameter{Value: x.Text('g', -1), Type: TypeDouble})
		return
	case *big.Int:
		ins.setParameter(name, Parameter{Value: x.String(), Type: TypeString})
		return
	}

	rv := reflect.ValueOf(v.Raw)

	switch rv.Kind() {
	case reflect.Map:
		ins.setParameter(name+"_size", Parameter{Value: strconv.Itoa(rv.Len()), Type: TypeUint64})
	case reflect.Float64:
		ins.setParameter(name, Parameter{Value: strconv.FormatFloat(rv.Float(), 'g', -1, 64), Type: TypeDouble})
	case reflect.Float32:
		ins.setParameter(name, Parameter{Value: strconv.FormatFloat(rv.Float(), 'g', -1, 32), Type: TypeFloat})
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		ins.setParameter(name+"_real", Parameter{Value: strconv.FormatFloat(real(c), 'g', -1, 64), Type: TypeDouble})
		ins.setParameter(name+"_imag", Parameter{Value: strconv.FormatFloat(imag(c), 'g', -1, 64), Type: TypeDouble})
	case reflect.Int8, reflect.Int16, reflect.Int32:
		ins.setParameter(name, Parameter{Value: strconv.FormatInt(rv.Int(), 10), Type: TypeInt32})
	case reflect.Int, reflect.Int64:
		ins.setParameter(name, Parameter{Value: strconv.FormatInt(rv.Int(), 10), Type: TypeInt64})
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		ins.setParameter(name, Parameter{Value: strconv.FormatUint(rv.Uint(), 10), Type: TypeUint32})
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		ins.setParameter(name, Parameter{Value: strconv.FormatUint(rv.Uint(), 10), Type: TypeUint64})
	case reflect.Bool:
		ins.setParameter(name, Parameter{Value: strconv.FormatBool(rv.Bool()), Type: TypeString})
	case reflect.String:
		ins.setParameter(name, Parameter{Value: rv.String(), Type: TypeString})
	default:
		ins.setParameter(name, Parameter{Value: v.Text, Type: TypeString})
	}

	return
}

var bigFloatType = reflect.TypeOf((*big.Float)(nil))

// bigComplex returns the parts of an arbitrary precision complex number,
// a [2]*big.Float or a pointer to one.
func bigComplex(raw any) (re, im *big.Float, ok bool) {

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Array || rv.Len() != 2 || rv.Type().Elem() != bigFloatType {
		return nil, nil, false
	}

	re, im = rv.Index(0).Interface().(*big.Float), rv.Index(1).Interface().(*big.Float)

	return re, im, re != nil && im != nil
}

// snapshot copies the coefficients of pd so that later in-place mutations
// of the host object do not alter the recorded data.
func snapshot(pd trace.PolyData) trace.PolyData {
	src := pd.Polys()
	polys := make([][][]uint64, len(src))
	for i := range src {
		polys[i] = make([][]uint64, len(src[i]))
		for j := range src[i] {
			polys[i][j] = append([]uint64(nil), src[i][j]...)
		}
	}
	return rawData{polys: polys, ntt: pd.IsNTT()}
}

func equalData(a, b trace.PolyData) bool {

	if a.IsNTT() != b.IsNTT() {
		return false
	}

	pa, pb := a.Polys(), b.Polys()
	if len(pa) != len(pb) {
		return false
	}

	for i := range pa {
		if len(pa[i]) != len(pb[i]) {
			return false
		}
		for j := range pa[i] {
			if !slices.Equal(pa[i][j], pb[i][j]) {
				return false
			}
		}
	}

	return true
}

type rawData struct {
	polys [][][]uint64
	ntt   bool
}

func (r rawData) Polys() [][][]uint64 {
	return r.polys
}

func (r rawData) IsNTT() bool {
	return r.ntt
}

func convert(sym string, pd trace.PolyData) (d *Data, err error) {

	polys := pd.Polys()

	d = &Data{Polys: make([]DCRTPoly, len(polys))}

	for i := range polys {
		if len(polys[i]) == 0 {
			return nil, fmt.Errorf("heracles: %s: polynomial %d has no RNS limb", sym, i)
		}
		d.Polys[i] = DCRTPoly{Limbs: polys[i], NTT: pd.IsNTT()}
	}

	return
}
