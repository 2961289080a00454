package trace

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role tells whether an entry is an input or an output of a scope.
type Role int

const (
	RoleInput = Role(iota)
	RoleOutput
)

func (r Role) String() string {
	if r == RoleOutput {
		return "output"
	}
	return "input"
}

// Entry is one registered argument of a scope.
type Entry struct {
	Name string
	// Type is the type tag of objects or the Go type of values.
	Type string
	// Refs holds the identity of objects. For evaluation-key maps, Refs[0]
	// is the map itself and Refs[1:] are its members, keyed by Keys.
	Refs    []Ref
	Keys    []uint64
	Value   Value
	Mutable bool
}

// IsObject returns true if the entry holds a traced object.
func (e Entry) IsObject() bool {
	return len(e.Refs) > 0
}

// Ref returns the identity of an object entry.
func (e Entry) Ref() Ref {
	return e.Refs[0]
}

// String renders the entry as "name id : type".
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte(' ')
	if e.IsObject() {
		b.WriteString(e.Refs[0].Symbol)
	} else {
		b.WriteString(e.Value.Text)
	}
	b.WriteString(" : ")
	b.WriteString(e.Type)
	if e.IsObject() && e.Value.Text != "" {
		b.WriteByte(' ')
		b.WriteString(e.Value.Text)
	}
	if e.Value.Opaque {
		b.WriteString(" (untraced)")
	}
	return b.String()
}

// Record is the trace of one scope. A Record is finalized when the scope
// closes and is never mutated afterwards.
type Record struct {
	ID       uuid.UUID
	Function string
	Level    int
	// Movement is true for data-movement records.
	Movement bool
	Inputs   []Entry
	Outputs  []Entry
	Start    time.Time
	Duration time.Duration
}

func formatEntries(entries []Entry) string {
	elems := make([]string, len(entries))
	for i := range entries {
		elems[i] = entries[i].String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}
