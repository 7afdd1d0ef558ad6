package domain

import "errors"

var (
	// ErrUnauthorized is the single caller-facing authorization failure.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrConflict           = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
)

// ConflictError names the value that is already taken. It matches ErrConflict.
type ConflictError struct {
	Subject string
}

func (e *ConflictError) Error() string { return e.Subject + " already exists" }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func Conflict(subject string) error { return &ConflictError{Subject: subject} }

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

func Invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// StorageError wraps a persistence failure. Its detail is logged, never returned to callers.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }
