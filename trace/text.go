package trace

import (
	"io"
	"strings"
)

// Text is a [Backend] writing one human readable line per closed scope:
//
//	<tabs>Function inputs=[name id : type, ...] outputs=[...]
//
// Text is not safe for concurrent use.
type Text struct {
	w io.Writer
}

// NewText returns a [Text] backend writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (t *Text) Begin(*Record) {}

func (t *Text) Capture(*Record, Role, *Entry, []Object) (err error) {
	return
}

// End writes the line of rec.
func (t *Text) End(rec *Record) (err error) {
	_, err = io.WriteString(t.w, TextLine(rec)+"\n")
	return
}

// TextLine renders rec without the trailing newline.
// Data movements render as "<tabs>label outputs=[...] <- inputs=[...]".
func TextLine(rec *Record) string {

	var b strings.Builder

	b.WriteString(strings.Repeat("\t", rec.Level))
	b.WriteString(rec.Function)

	if rec.Movement {
		b.WriteString(" outputs=")
		b.WriteString(formatEntries(rec.Outputs))
		b.WriteString(" <- inputs=")
		b.WriteString(formatEntries(rec.Inputs))
		return b.String()
	}

	b.WriteString(" inputs=")
	b.WriteString(formatEntries(rec.Inputs))
	b.WriteString(" outputs=")
	b.WriteString(formatEntries(rec.Outputs))

	return b.String()
}
