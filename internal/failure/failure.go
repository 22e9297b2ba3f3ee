// Package failure defines the error taxonomy shared by the crawl engine.
//
// Every failure the engine reports belongs to one of the kinds below.
// Check with errors.Is(err, failure.ErrIdentityMismatch), or use errors.As
// with *failure.Error to read the operation and target that failed.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	// ErrCredential indicates the portal rejected the login email or password.
	// It is terminal and never retried.
	ErrCredential = errors.New("credential error")
	// ErrTimeout indicates a bounded wait exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrIdentityMismatch indicates a loaded panel shows a different target
	// than the one requested (stale or transitional panel).
	ErrIdentityMismatch = errors.New("identity mismatch")
	// ErrStructural indicates an expected UI marker or depth was not found.
	ErrStructural = errors.New("structural error")
	// ErrNotFound indicates a requested course, lab or handout is absent
	// from a listing.
	ErrNotFound = errors.New("not found")
)

// Error describes a failed crawl operation.
type Error struct {
	Kind   error  // One of the Err* kinds
	Op     string // Operation that failed, e.g. "select course"
	Target string // Navigation target, e.g. "Urban analytics -> project"
	Detail string // Human readable detail
	Err    error  // Underlying cause, if any
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Target != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Target)
		sb.WriteString(")")
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Credential returns a credential failure.
func Credential(op, detail string) error {
	return &Error{Kind: ErrCredential, Op: op, Detail: detail}
}

// IdentityMismatch returns an identity failure for a panel that shows got instead of want.
func IdentityMismatch(op, target, want, got string, cause error) error {
	return &Error{
		Kind:   ErrIdentityMismatch,
		Op:     op,
		Target: target,
		Detail: fmt.Sprintf("loaded %q does not match requested %q", got, want),
		Err:    cause,
	}
}

// Structural returns a structural failure.
func Structural(op, target, detail string, cause error) error {
	return &Error{Kind: ErrStructural, Op: op, Target: target, Detail: detail, Err: cause}
}

// NotFound returns a not-found failure for the named item.
func NotFound(op, target, what string) error {
	return &Error{Kind: ErrNotFound, Op: op, Target: target, Detail: what + " not found"}
}

// Kind reports the taxonomy kind of err, or nil if err is not a crawl failure.
func Kind(err error) error {
	for _, k := range []error{ErrCredential, ErrIdentityMismatch, ErrStructural, ErrNotFound, ErrTimeout} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
