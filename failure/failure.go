// Package failure classifies the errors a keepbackup run can end with.
//
// Every operation error is eventually reduced to its message in the run
// summary, but the kind is kept so the log tail and tests can tell a missing
// notes file from a broken browser install.
package failure

import (
	"errors"
	"fmt"
)

// Kind names a class of run failure.
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindDependencyMissing Kind = "dependency_missing"
	KindIO                Kind = "io"
	KindVerification      Kind = "verification"
)

// Error is a classified run failure. Msg is the user-facing text; Err, when
// set, is the lower-level cause and is reachable through errors.Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports user input that cannot produce a run (no notes).
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports a referenced input file that does not exist.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// DependencyMissing reports a runtime capability that is not installed.
// The message should tell the operator how to fix it.
func DependencyMissing(format string, args ...any) error {
	return &Error{Kind: KindDependencyMissing, Msg: fmt.Sprintf(format, args...)}
}

// Verification reports a page that loaded but did not meet expectations.
func Verification(format string, args ...any) error {
	return &Error{Kind: KindVerification, Msg: fmt.Sprintf(format, args...)}
}

// IO wraps a filesystem failure with a short description of what was being
// done, e.g. IO(err, "write backup %q", path).
func IO(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
