// Package dsperr defines the closed set of error kinds the core can raise,
// so control-thread callers can branch on failure category without parsing
// error strings.
package dsperr

import "fmt"

// Kind identifies the category of a core error.
type Kind int

const (
	// Unsupported means the host lacks a required audio capability; fatal
	// at initialization.
	Unsupported Kind = iota
	// NotInitialized means the operation requires completed initialization.
	NotInitialized
	// BadIndex means the operation referenced a nonexistent track or filter.
	BadIndex
	// BadParameter means an enum field had an unknown value.
	BadParameter
	// WorkerInitTimeout means a render worker failed to come online within
	// its init deadline.
	WorkerInitTimeout
	// WorkerJobFailed means a chunk failed on a worker after exhausting retries.
	WorkerJobFailed
	// Cancelled means an offline render observed a cancellation request.
	Cancelled
	// Internal means a precondition was violated; should be unreachable.
	Internal
)

var kindNames = [...]string{
	"Unsupported",
	"NotInitialized",
	"BadIndex",
	"BadParameter",
	"WorkerInitTimeout",
	"WorkerJobFailed",
	"Cancelled",
	"Internal",
}

// String returns the name of the error kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a typed error carrying a Kind, the operation that produced it,
// and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error whose cause is a plain error carrying msg.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf("%s", msg)}
}

// Wrap constructs an *Error wrapping an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if err == nil {
		return false
	}
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}
