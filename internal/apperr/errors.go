// Package apperr defines the error taxonomy surfaced by the booking core.
// Validation, conflict, not-found and authorization errors are terminal per
// request; persistence errors are the only class eligible for retry.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError covers malformed input, past-dated bookings and windows
// outside business hours. Maps to 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError means the staff member is unavailable for the requested
// window. It carries an advisory alternative window which is not re-validated
// against business hours or further overlaps. Maps to 409.
type ConflictError struct {
	Reason         string
	SuggestedStart time.Time
	SuggestedEnd   time.Time
}

func (e *ConflictError) Error() string { return e.Reason }

// NotFoundError means a referenced appointment, staff or service id does not
// exist. Maps to 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// AuthorizationError means the principal lacks the role or ownership required
// for the operation. Maps to 403.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

func Forbidden(format string, args ...any) error {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError means the store was unavailable or the transaction
// aborted. Retryable persistence errors (serialization failures under
// contention) may be retried by re-running the whole validate-and-commit
// sequence.
type PersistenceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, retryable bool, err error) error {
	return &PersistenceError{Op: op, Retryable: retryable, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func AsConflict(err error) (*ConflictError, bool) {
	var e *ConflictError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

func IsRetryable(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e) && e.Retryable
}
