package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredParam is returned when a parameter is absent, has no
	// default and is not allowed to stay empty.
	ErrMissingRequiredParam = errors.New("missing required param")

	// ErrTypeConflict is returned when a document value has the wrong kind.
	ErrTypeConflict = errors.New("type conflict")

	// ErrOutOfRange is returned when a numeric value falls outside its
	// declared bounds, or when fields are inconsistent with each other.
	ErrOutOfRange = errors.New("out of range")

	// ErrArithmeticOverflow is returned when a numeric value cannot be
	// represented by the parameter's type.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrConcurrentLoad is returned when Load is called on a schema that is
	// already being loaded by another goroutine.
	ErrConcurrentLoad = errors.New("concurrent load on the same config")

	// ErrInvalidDocument is returned when a document is not a JSON object.
	ErrInvalidDocument = errors.New("invalid document")
)

// ParamError describes a validation failure for a single parameter.
//
// Error returns the one-line, user-facing message. The failure class is
// available through errors.Is against the sentinel errors of this package.
type ParamError struct {
	Param string
	Code  error
	Msg   string
}

func (e *ParamError) Error() string { return e.Msg }

func (e *ParamError) Unwrap() error { return e.Code }

func paramErrorf(code error, name, format string, args ...any) *ParamError {
	return &ParamError{
		Param: name,
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err is one of the four validation
// failure classes.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingRequiredParam) ||
		errors.Is(err, ErrTypeConflict) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrArithmeticOverflow)
}
