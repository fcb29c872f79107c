package model

import (
	"errors"
	"fmt"
)

// InputError is missing or unusable caller input. It is never retried.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// NewInputError builds an InputError for field.
func NewInputError(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Required returns an InputError when value is empty.
func Required(field, value string) error {
	if value == "" {
		return &InputError{Field: field, Reason: "is required"}
	}
	return nil
}

// IsInputError reports whether err wraps an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
