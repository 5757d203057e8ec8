package core

import "github.com/pkg/errors"

// ErrNotFound is the generic not found error. Packages declare their own with NewNotFoundError.
var ErrNotFound = NewNotFoundError("not found")

type notFound struct {
	message string
}

// NewNotFoundError returns a sentinel error that IsNotFound recognizes.
func NewNotFoundError(msg string) error {
	return &notFound{message: msg}
}

func (nf notFound) Error() string {
	return nf.message
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// IsNotFound reports whether the cause of err is a not found error.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*notFound)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
