// Package nserror defines the closed set of error kinds nscon's components
// return.
package nserror

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds nscon raises.
type Kind int

const (
	// Unknown is the zero Kind; KindOf(err) returns it for errors that were
	// never wrapped through this package.
	Unknown Kind = iota
	InvalidArgument
	NotFound
	AlreadyExists
	FailedPrecondition
	PermissionDenied
	Unavailable
	OutOfRange
	Cancelled
	Internal
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case FailedPrecondition:
		return "FailedPrecondition"
	case PermissionDenied:
		return "PermissionDenied"
	case Unavailable:
		return "Unavailable"
	case OutOfRange:
		return "OutOfRange"
	case Cancelled:
		return "Cancelled"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// kindError carries a Kind alongside a formatted message. It implements
// Unwrap so errors.As/errors.Is keep working across %w wrapping.
type kindError struct {
	kind Kind
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *kindError) Unwrap() error { return e.err }

// E constructs an error of the given kind with a formatted message.
func E(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an error of the given kind that wraps err.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the Kind carried by err, walking the Unwrap chain. Returns
// Unknown if no *kindError is found.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// Is reports whether err (or something it wraps) has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
