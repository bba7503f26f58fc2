// Package isolate converts failures of external collaborators into values.
//
// Every call into something certify does not control (the scoring backend,
// a compliance evaluator, the policy engine, the report converter) goes
// through Run. Errors and panics come back as a tagged Outcome; nothing
// propagates to the caller's stack.
package isolate

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Failure describes an isolated failure.
type Failure struct {
	// Op names the operation, e.g. "evaluator fairness" or "policy eu_ai_act/bias".
	Op string

	// Cause is the returned error, or a synthesized error for a panic.
	Cause error

	// Panicked is true when the operation panicked instead of returning.
	Panicked bool

	// Stack is the goroutine stack captured at the panic, if any.
	Stack string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Panicked {
		return fmt.Sprintf("%s: panic: %v", f.Op, f.Cause)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Cause)
}

// Unwrap returns the underlying cause error.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Message returns the cause without the operation prefix.
func (f *Failure) Message() string {
	if f.Cause == nil {
		return ""
	}
	return f.Cause.Error()
}

// Outcome is the tagged result of an isolated call: either Value is set
// and Err is nil, or Err is a *Failure.
type Outcome[T any] struct {
	Value T
	Err   *Failure
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Run calls fn and captures its error or panic as a Failure named op.
func Run[T any](op string, fn func() (T, error)) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = Outcome[T]{
				Value: zero,
				Err: &Failure{
					Op:       op,
					Cause:    panicError(r),
					Panicked: true,
					Stack:    string(debug.Stack()),
				},
			}
		}
	}()

	v, err := fn()
	if err != nil {
		return Outcome[T]{Value: v, Err: &Failure{Op: op, Cause: err}}
	}
	return Outcome[T]{Value: v}
}

// Do is Run for operations without a result value.
func Do(op string, fn func() error) *Failure {
	out := Run(op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return out.Err
}

func panicError(r any) error {
	switch v := r.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}
