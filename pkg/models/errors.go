package models

import "errors"

var (
	// ErrConfiguration marks missing credentials or paths. Fatal at startup only.
	ErrConfiguration = errors.New("configuration error")
	// ErrCollaboratorUnavailable marks a failed retrieval or model call.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrValidation marks bad user input; its message is shown to the user as is.
	ErrValidation = errors.New("validation error")
	// ErrPersistence marks a failed cache or log write.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError carries a user-facing message for rejected input.
type ValidationError struct {
	Message string
}

// Validation returns a ValidationError with the given user-facing message.
func Validation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
