package trace

import (
	"errors"
)

// ErrUnsupported is returned by backends that cannot trace a registered argument.
var ErrUnsupported = errors.New("not supported")

// Backend consumes the records of a [Session].
//
// Begin is called when a scope opens and End when it closes, with the
// finalized record. Capture is called on every registration while the
// registered objects are alive; objs is aligned with e.Refs and empty
// for values. An error returned by Capture is a missing capability
// and aborts the registration.
type Backend interface {
	Begin(rec *Record)
	Capture(rec *Record, role Role, e *Entry, objs []Object) (err error)
	End(rec *Record) (err error)
}

// Tee returns a [Backend] forwarding every call to all backends.
func Tee(backends ...Backend) Backend {
	return tee(backends)
}

type tee []Backend

func (t tee) Begin(rec *Record) {
	for _, b := range t {
		b.Begin(rec)
	}
}

func (t tee) Capture(rec *Record, role Role, e *Entry, objs []Object) (err error) {
	var errs []error
	for _, b := range t {
		errs = append(errs, b.Capture(rec, role, e, objs))
	}
	return errors.Join(errs...)
}

func (t tee) End(rec *Record) (err error) {
	var errs []error
	for _, b := range t {
		errs = append(errs, b.End(rec))
	}
	return errors.Join(errs...)
}
