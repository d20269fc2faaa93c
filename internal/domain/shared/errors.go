// Package shared contains the error kinds, events, and value objects used
// across the academy's domain packages. It depends only on the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, matched with errors.Is.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError carries the domain and operation an error came from together
// with its kind.
type DomainError struct {
	Domain  string // e.g. "student", "promotion", "payment"
	Op      string
	Kind    error
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the wrapped error, or the kind when nothing is wrapped.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps err with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student already exists")
	ErrStudentNotActive     = NewDomainError("student", "CheckStatus", ErrInvalidState, "student is not active")
	ErrInvalidStudentID     = NewDomainError("student", "Validate", ErrInvalidID, "invalid student ID")
	ErrInvalidCategory      = NewDomainError("student", "Validate", ErrInvalidInput, "unknown category")
	ErrInvalidBelt          = NewDomainError("student", "Validate", ErrInvalidInput, "belt is not on the category's progression path")
)

// Promotion errors
var (
	ErrNotEligible           = NewDomainError("promotion", "Apply", ErrInvalidState, "student is not eligible for promotion")
	ErrRankMismatch          = NewDomainError("promotion", "Apply", ErrInvalidInput, "accepted rank differs from the rank offered")
	ErrPromotionNotConfirmed = NewDomainError("promotion", "Apply", ErrForbidden, "promotion requires operator confirmation")
	ErrPromotionConflict     = NewDomainError("promotion", "Apply", ErrConcurrentModification, "student record changed since it was evaluated")
)

// Attendance and payment errors
var (
	ErrInvalidAttendanceDate = NewDomainError("attendance", "Validate", ErrInvalidInput, "attendance date is required")
	ErrInvalidPaymentPeriod  = NewDomainError("payment", "Validate", ErrValueOutOfRange, "payment month must be 1-12")
	ErrInvalidPaymentAmount  = NewDomainError("payment", "Validate", ErrNegativeValue, "payment amount cannot be negative")
	ErrInvalidPaymentStatus  = NewDomainError("payment", "Validate", ErrInvalidInput, "unknown payment status")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsConflict reports errors caused by the current state of a record.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidState)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
