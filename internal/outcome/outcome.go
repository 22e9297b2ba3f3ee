// Package outcome defines the uniform result of every navigation and
// extraction step.
package outcome

import "errors"

// errUnspecified replaces a nil error handed to Fail or Partial so a failed
// outcome always carries an error.
var errUnspecified = errors.New("unspecified failure")

// Outcome is the result of a crawl step: it either succeeded with a value
// (possibly empty) or failed with an error. A failed outcome may still carry
// the data gathered before the failure; Value never exposes it.
type Outcome[T any] struct {
	value T
	err   error
}

// Ok returns a succeeded outcome.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

// Fail returns a failed outcome with no gathered data.
func Fail[T any](err error) Outcome[T] {
	if err == nil {
		err = errUnspecified
	}
	return Outcome[T]{err: err}
}

// Partial returns a failed outcome that keeps the data gathered so far.
func Partial[T any](gathered T, err error) Outcome[T] {
	if err == nil {
		err = errUnspecified
	}
	return Outcome[T]{value: gathered, err: err}
}

// Succeeded reports whether the step completed.
func (o Outcome[T]) Succeeded() bool {
	return o.err == nil
}

// Err returns the failure, or nil if the step succeeded.
func (o Outcome[T]) Err() error {
	return o.err
}

// Value returns the value of a succeeded outcome. ok is false for failures.
func (o Outcome[T]) Value() (v T, ok bool) {
	if o.err != nil {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Gathered returns whatever data the step collected, including the partial
// data of a failed outcome.
func (o Outcome[T]) Gathered() T {
	return o.value
}

// Unpack returns the gathered data and the error, for callers that prefer
// the (value, error) form.
func (o Outcome[T]) Unpack() (T, error) {
	return o.value, o.err
}

// From converts a (value, error) pair into an outcome. A non-nil error yields
// a failed outcome that discards v.
func From[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}
