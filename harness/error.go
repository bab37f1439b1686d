package harness

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the failures of a run.
type Kind int

const (
	// UsageError is a wrong command line: reported before any I/O.
	UsageError Kind = iota

	// IOError is a failure to read the input or to write a dump file.
	IOError

	// ParseError is a fragment that is not a valid HLO module.
	ParseError

	// LoweringError is a module the lowering pipeline rejected.
	LoweringError

	// EmitError is a failure to print the lowered module.
	EmitError
)

var kindNames = [...]string{
	UsageError:    "usage error",
	IOError:       "io error",
	ParseError:    "parse error",
	LoweringError: "lowering error",
	EmitError:     "emit error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// NoFragment is the Error.Fragment of failures not tied to a fragment.
const NoFragment = -1

// Error is returned by the Driver: it tags the underlying error with its Kind and the index of the fragment
// being processed.
type Error struct {
	Kind     Kind
	Fragment int
	Err      error
}

// Error implements the error interface, e.g. "fragment #1: parse error: line 3, column 5: expected ...".
func (e *Error) Error() string {
	if e.Fragment == NoFragment {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fragment #%d: %s: %v", e.Fragment, e.Kind, e.Err)
}

// Unwrap returns the underlying error, for errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Cause returns the underlying error, for errors.Cause.
func (e *Error) Cause() error { return e.Err }

// newError tags err, adding a stack trace if it doesn't have one.
func newError(kind Kind, fragment int, err error) error {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if _, ok := err.(stackTracer); !ok {
		err = errors.WithStack(err)
	}
	return &Error{Kind: kind, Fragment: fragment, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var harnessErr *Error
	if errors.As(err, &harnessErr) {
		return harnessErr.Kind, true
	}
	return 0, false
}
