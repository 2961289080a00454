package trace

import (
	"fmt"
	"strconv"
	"time"
)

type scope struct {
	s      *Session
	rec    Record
	closed bool
}

func (sc *scope) check(op string) {
	if sc.closed {
		panic(fmt.Errorf("trace: %s on closed scope %s", op, sc.rec.Function))
	}
}

func (sc *scope) register(role Role, v any, name string, mutable bool) {

	entries, objs := sc.s.entries(v, name, mutable)

	for i := range entries {
		if err := sc.s.backend.Capture(&sc.rec, role, &entries[i], objs[i]); err != nil {
			panic(fmt.Errorf("trace: %s: cannot register %s %s: %w", sc.rec.Function, role, entries[i].Name, err))
		}
	}

	if role == RoleInput {
		sc.rec.Inputs = append(sc.rec.Inputs, entries...)
	} else {
		sc.rec.Outputs = append(sc.rec.Outputs, entries...)
	}
}

// RegisterInput registers v as an input. The mutable flag is informative only.
func (sc *scope) RegisterInput(v any, name string, mutable bool) {
	sc.check("RegisterInput")
	sc.register(RoleInput, v, name, mutable)
}

// RegisterInputs registers each vs[i] as an input named names[i].
// If names is empty, inputs are named "input0", "input1", ...
func (sc *scope) RegisterInputs(vs []any, names []string, mutable bool) {
	sc.check("RegisterInputs")
	names = argNames(sc.rec.Function, vs, names, "input")
	for i := range vs {
		sc.register(RoleInput, vs[i], names[i], mutable)
	}
}

// RegisterOutput registers v as an output and returns v unchanged.
func (sc *scope) RegisterOutput(v any, name string) any {
	sc.check("RegisterOutput")
	sc.register(RoleOutput, v, name, false)
	return v
}

// RegisterOutputs registers each vs[i] as an output named names[i].
func (sc *scope) RegisterOutputs(vs []any, names []string) {
	sc.check("RegisterOutputs")
	names = argNames(sc.rec.Function, vs, names, "output")
	for i := range vs {
		sc.register(RoleOutput, vs[i], names[i], false)
	}
}

// Close finalizes the record and hands it to the backend.
// Panics if the scope is already closed.
func (sc *scope) Close() {

	if sc.closed {
		panic(fmt.Errorf("trace: scope %s closed twice", sc.rec.Function))
	}

	sc.closed = true
	sc.rec.Duration = time.Since(sc.rec.Start)
	sc.s.level.Add(-1)
	sc.s.finish(&sc.rec)
}

func argNames(function string, vs []any, names []string, prefix string) []string {
	if len(names) == 0 {
		names = make([]string, len(vs))
		for i := range names {
			names[i] = prefix + strconv.Itoa(i)
		}
		return names
	}
	if len(vs) != len(names) {
		panic(fmt.Errorf("trace: %s: %d values registered with %d names", function, len(vs), len(names)))
	}
	return names
}

type movement struct {
	s      *Session
	rec    Record
	closed bool
}

// Alias gives dest the identity of src and records the movement.
// Panics if dest or src is not a traced object.
func (m *movement) Alias(dest, src any) {

	if m.closed {
		panic(fmt.Errorf("trace: Alias on closed data movement %s", m.rec.Function))
	}

	so, ok := m.s.classify(src)
	if !ok {
		panic(fmt.Errorf("trace: %s: cannot alias from %T: not a traced object", m.rec.Function, src))
	}

	do, ok := m.s.classify(dest)
	if !ok {
		panic(fmt.Errorf("trace: %s: cannot alias to %T: not a traced object", m.rec.Function, dest))
	}

	sref := m.s.identify(so)

	d, err := Digest(do)
	if err != nil {
		panic(fmt.Errorf("trace: cannot serialize %s: %w", do.Kind(), err))
	}

	if d != sref.Digest {
		panic(fmt.Errorf("trace: %s: dest content differs from src; Alias must follow the copy", m.rec.Function))
	}

	dref := m.s.registry.Bind(d, sref)

	if t, ok := do.(Tagger); ok && m.s.policy == MetadataTag {
		t.SetTraceTag(sref.Symbol)
	}

	if sh, ok := do.(Shaped); ok {
		dref.NumRNS = sh.NumRNS()
		dref.Order = sh.Order()
	}

	in := Entry{Name: "src", Type: so.Kind().String(), Refs: []Ref{sref}}
	out := Entry{Name: "dest", Type: do.Kind().String(), Refs: []Ref{dref}, Mutable: true}

	if err := m.s.backend.Capture(&m.rec, RoleInput, &in, []Object{so}); err != nil {
		panic(fmt.Errorf("trace: %s: cannot register src: %w", m.rec.Function, err))
	}

	if err := m.s.backend.Capture(&m.rec, RoleOutput, &out, []Object{do}); err != nil {
		panic(fmt.Errorf("trace: %s: cannot register dest: %w", m.rec.Function, err))
	}

	m.rec.Inputs = append(m.rec.Inputs, in)
	m.rec.Outputs = append(m.rec.Outputs, out)
}

// Close finalizes the movement record. Panics if already closed.
func (m *movement) Close() {
	if m.closed {
		panic(fmt.Errorf("trace: data movement %s closed twice", m.rec.Function))
	}
	m.closed = true
	m.rec.Duration = time.Since(m.rec.Start)
	m.s.finish(&m.rec)
}
