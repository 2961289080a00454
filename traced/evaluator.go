package traced

import (
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/Pro7ech/hetrace/trace"
)

// Evaluator is a [ckks.Evaluator] tracing its homomorphic operations.
// Methods that are not redefined are forwarded untraced.
//
// The second operand of the arithmetic operations can be any operand the
// underlying evaluator accepts: a ciphertext, a plaintext, a scalar or a
// vector of scalars.
type Evaluator struct {
	*ckks.Evaluator
	tracer trace.Tracer
	keys   *rlwe.MemEvaluationKeySet
}

// NewEvaluator returns a traced evaluator. evk can be nil; it is
// registered as an input of the key-switching operations if it is a
// *rlwe.MemEvaluationKeySet.
func NewEvaluator(params ckks.Parameters, evk rlwe.EvaluationKeySet, tracer trace.Tracer) *Evaluator {
	e := &Evaluator{
		Evaluator: ckks.NewEvaluator(params, evk),
		tracer:    tracer,
	}
	if keys, ok := evk.(*rlwe.MemEvaluationKeySet); ok && keys != nil {
		e.keys = keys
	}
	return e
}

// WithKey returns a shallow copy of e evaluating with evk.
func (e *Evaluator) WithKey(evk rlwe.EvaluationKeySet) *Evaluator {
	ev := &Evaluator{
		Evaluator: e.Evaluator.WithKey(evk),
		tracer:    e.tracer,
	}
	if keys, ok := evk.(*rlwe.MemEvaluationKeySet); ok && keys != nil {
		ev.keys = keys
	}
	return ev
}

func (e *Evaluator) startWithKeys(function string, inputs ...any) trace.Scope {
	sc := e.tracer.Start(function, inputs...)
	if e.keys != nil {
		sc.RegisterInput(e.keys, "evk", false)
	}
	return sc
}

// AddNew returns op0 + op1.
func (e *Evaluator) AddNew(op0 *rlwe.Ciphertext, op1 any) (opOut *rlwe.Ciphertext, err error) {
	sc := e.tracer.Start("Evaluator.AddNew", op0, op1)
	defer sc.Close()
	if opOut, err = e.Evaluator.AddNew(op0, op1); err != nil {
		return
	}
	return trace.Output(sc, opOut, "output"), nil
}

// Add writes op0 + op1 on opOut, which can alias op0.
func (e *Evaluator) Add(op0 *rlwe.Ciphertext, op1 any, opOut *rlwe.Ciphertext) (err error) {
	sc := e.tracer.Start("Evaluator.Add", op0, op1)
	defer sc.Close()
	if err = e.Evaluator.Add(op0, op1, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}

// SubNew returns op0 - op1.
func (e *Evaluator) SubNew(op0 *rlwe.Ciphertext, op1 any) (opOut *rlwe.Ciphertext, err error) {
	sc := e.tracer.Start("Evaluator.SubNew", op0, op1)
	defer sc.Close()
	if opOut, err = e.Evaluator.SubNew(op0, op1); err != nil {
		return
	}
	return trace.Output(sc, opOut, "output"), nil
}

// Sub writes op0 - op1 on opOut.
func (e *Evaluator) Sub(op0 *rlwe.Ciphertext, op1 any, opOut *rlwe.Ciphertext) (err error) {
	sc := e.tracer.Start("Evaluator.Sub", op0, op1)
	defer sc.Close()
	if err = e.Evaluator.Sub(op0, op1, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}

// MulNew multiplies without relinearization.
func (e *Evaluator) MulNew(op0 *rlwe.Ciphertext, op1 any) (opOut *rlwe.Ciphertext, err error) {
	sc := e.tracer.Start("Evaluator.MulNew", op0, op1)
	defer sc.Close()
	if opOut, err = e.Evaluator.MulNew(op0, op1); err != nil {
		return
	}
	return trace.Output(sc, opOut, "output"), nil
}

// Mul is as [Evaluator.MulNew] on opOut.
func (e *Evaluator) Mul(op0 *rlwe.Ciphertext, op1 any, opOut *rlwe.Ciphertext) (err error) {
	sc := e.tracer.Start("Evaluator.Mul", op0, op1)
	defer sc.Close()
	if err = e.Evaluator.Mul(op0, op1, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}

// MulRelinNew multiplies and relinearizes. The evaluation keys are
// registered as an input.
func (e *Evaluator) MulRelinNew(op0 *rlwe.Ciphertext, op1 any) (opOut *rlwe.Ciphertext, err error) {
	sc := e.startWithKeys("Evaluator.MulRelinNew", op0, op1)
	defer sc.Close()
	if opOut, err = e.Evaluator.MulRelinNew(op0, op1); err != nil {
		return
	}
	return trace.Output(sc, opOut, "output"), nil
}

// MulRelin is as [Evaluator.MulRelinNew] on opOut.
func (e *Evaluator) MulRelin(op0 *rlwe.Ciphertext, op1 any, opOut *rlwe.Ciphertext) (err error) {
	sc := e.startWithKeys("Evaluator.MulRelin", op0, op1)
	defer sc.Close()
	if err = e.Evaluator.MulRelin(op0, op1, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}

// RelinearizeNew relinearizes op0 with the relinearization key of e.
func (e *Evaluator) RelinearizeNew(op0 *rlwe.Ciphertext) (opOut *rlwe.Ciphertext, err error) {
	sc := e.startWithKeys("Evaluator.RelinearizeNew", op0)
	defer sc.Close()
	if opOut, err = e.Evaluator.RelinearizeNew(op0); err != nil {
		return
	}
	return trace.Output(sc, opOut, "output"), nil
}

// Relinearize relinearizes op0 on opOut.
func (e *Evaluator) Relinearize(op0, opOut *rlwe.Ciphertext) (err error) {
	sc := e.startWithKeys("Evaluator.Relinearize", op0)
	defer sc.Close()
	if err = e.Evaluator.Relinearize(op0, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}

// Rescale divides op0 by the last moduli of its level and writes the
// result, one level lower, to opOut. op0 and opOut can be the same.
func (e *Evaluator) Rescale(op0, opOut *rlwe.Ciphertext) (err error) {
	sc := e.tracer.Start("Evaluator.Rescale", op0)
	defer sc.Close()
	if err = e.Evaluator.Rescale(op0, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}

// RotateNew rotates the slots of op0 by k positions to the left.
// The evaluation keys are registered as an input.
func (e *Evaluator) RotateNew(op0 *rlwe.Ciphertext, k int) (opOut *rlwe.Ciphertext, err error) {
	sc := e.startWithKeys("Evaluator.RotateNew", op0, k)
	defer sc.Close()
	if opOut, err = e.Evaluator.RotateNew(op0, k); err != nil {
		return
	}
	return trace.Output(sc, opOut, "output"), nil
}

// Rotate is as [Evaluator.RotateNew] on opOut.
func (e *Evaluator) Rotate(op0 *rlwe.Ciphertext, k int, opOut *rlwe.Ciphertext) (err error) {
	sc := e.startWithKeys("Evaluator.Rotate", op0, k)
	defer sc.Close()
	if err = e.Evaluator.Rotate(op0, k, opOut); err != nil {
		return
	}
	sc.RegisterOutput(opOut, "output")
	return
}
