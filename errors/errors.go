package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies an error so callers can decide how far it propagates.
// Validation, Execution and ConfirmationDeclined recover locally and are
// fed back to the model as tool results. Endpoint and IterationCap end the
// current turn. Storage is reported without aborting an in-progress turn.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindExecution
	KindConfirmationDeclined
	KindEndpoint
	KindIterationCap
	KindStorage
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExecution:
		return "execution"
	case KindConfirmationDeclined:
		return "confirmation declined"
	case KindEndpoint:
		return "endpoint"
	case KindIterationCap:
		return "iteration cap"
	case KindStorage:
		return "storage"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...))
}

// NewKind creates a new error tagged with a Kind.
func NewKind(kind Kind, format string, a ...interface{}) error {
	return &kindError{
		kind: kind,
		err:  fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...)),
	}
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil. A wrapped error keeps
// its Kind.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err)
}

// WrapKind adds context to an existing error and tags the result with a
// Kind, overriding any kind carried by the original.
func WrapKind(err error, kind Kind, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{
		kind: kind,
		err:  fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err),
	}
}

// KindOf reports the Kind of err, walking the wrap chain. Errors without a
// tag report KindUnknown.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
