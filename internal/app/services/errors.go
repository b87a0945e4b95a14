// Package services holds the errors shared by the use-case services in its
// subpackages.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks validation failures. The wrapped message is shown to the caller.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when the caller does not own the record.
	ErrForbidden = errors.New("you are not allowed to modify this resource")
	// ErrNotExpert is returned when an expert-only action is attempted by someone else.
	ErrNotExpert = errors.New("only experts can perform this action")
	// ErrNotInvestor is returned when an investor-only action is attempted by someone else.
	ErrNotInvestor = errors.New("only investors can perform this action")
)

type invalidError struct {
	msg string
}

func (e *invalidError) Error() string { return e.msg }

func (e *invalidError) Unwrap() error { return ErrInvalidInput }

// Invalid returns a validation error with a caller-facing message.
func Invalid(format string, args ...any) error {
	return &invalidError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
