package core

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed, missing or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AuthError reports a missing, invalid or expired credential.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// PermissionError reports that the caller's role lacks rights. DeniedFields is
// set when a write was rejected because of specific fields.
type PermissionError struct {
	Message       string
	DeniedFields  []string
	AllowedFields []string
}

func (e *PermissionError) Error() string {
	if len(e.DeniedFields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.DeniedFields)
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ConflictError reports a uniqueness violation or a delete blocked by references.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// StoreError wraps a failure of the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func Unauthorized(message string) error {
	return &AuthError{Message: message}
}

func Forbidden(message string) error {
	return &PermissionError{Message: message}
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func Conflict(message string) error {
	return &ConflictError{Message: message}
}

// Store wraps err as a StoreError unless it already carries a domain error,
// in which case it is returned unchanged.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomain(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsDomain reports whether err is one of the typed errors above.
func IsDomain(err error) bool {
	var (
		ve *ValidationError
		ae *AuthError
		pe *PermissionError
		ne *NotFoundError
		ce *ConflictError
		se *StoreError
	)
	return errors.As(err, &ve) || errors.As(err, &ae) || errors.As(err, &pe) ||
		errors.As(err, &ne) || errors.As(err, &ce) || errors.As(err, &se)
}
