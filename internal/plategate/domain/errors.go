package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindRecognitionFailed Kind = "RECOGNITION_FAILED"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindEmptyRange        Kind = "EMPTY_RANGE"
	KindStorage           Kind = "STORAGE_ERROR"
	KindBackendTimeout    Kind = "BACKEND_TIMEOUT"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality, so errors.Is(err, ErrConflict) matches any
// conflict regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) WithError(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg, Err: e.Err}
}

func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

var (
	ErrInvalidInput = &Error{
		Kind:    KindInvalidInput,
		Message: "invalid input",
	}

	ErrRecognitionFailed = &Error{
		Kind:    KindRecognitionFailed,
		Message: "plate could not be recognized",
	}

	ErrNotFound = &Error{
		Kind:    KindNotFound,
		Message: "resource not found",
	}

	ErrConflict = &Error{
		Kind:    KindConflict,
		Message: "conflict",
	}

	ErrEmptyRange = &Error{
		Kind:    KindEmptyRange,
		Message: "no records found in the selected range",
	}

	ErrStorage = &Error{
		Kind:    KindStorage,
		Message: "storage unavailable",
	}

	ErrBackendTimeout = &Error{
		Kind:    KindBackendTimeout,
		Message: "recognition backend timed out",
	}
)

// KindOf returns the Kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
