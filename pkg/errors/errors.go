package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies scheduling failures for retry and reporting decisions.
type Category string

const (
	// CategoryValidation marks bad input (unknown IDs, malformed payloads). Never retried.
	CategoryValidation Category = "validation"
	// CategoryConstraint marks requests with no feasible candidate. Returned with recommendations.
	CategoryConstraint Category = "constraint"
	// CategoryResource marks collaborator unavailability or timeouts. Retried with backoff.
	CategoryResource Category = "resource"
	// CategoryAlgorithm marks internal invariant violations. Logged as critical, never corrected silently.
	CategoryAlgorithm Category = "algorithm"
	// CategorySystem marks budget/timeout exhaustion. Partial work is discarded.
	CategorySystem Category = "system"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code     string   `json:"code"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Status   int      `json:"status"`
	Err      error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the error category permits automatic retry.
func (e *Error) Retryable() bool {
	return e != nil && e.Category == CategoryResource
}

// New creates a new Error instance.
func New(code string, category Category, status int, message string) *Error {
	return &Error{Code: code, Category: category, Status: status, Message: message}
}

// Wrap attaches context to an existing error, inheriting shape from a sentinel.
func Wrap(err error, sentinel *Error, message string) *Error {
	if sentinel == nil {
		sentinel = ErrInternal
	}
	if message == "" {
		message = sentinel.Message
	}
	return &Error{Code: sentinel.Code, Category: sentinel.Category, Status: sentinel.Status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation          = New("VALIDATION_ERROR", CategoryValidation, http.StatusBadRequest, "validation failed")
	ErrNotFound            = New("NOT_FOUND", CategoryValidation, http.StatusNotFound, "resource not found")
	ErrNoFeasibleCandidate = New("NO_FEASIBLE_CANDIDATE", CategoryConstraint, http.StatusUnprocessableEntity, "no candidate satisfies the hard constraints")
	ErrCapacityExceeded    = New("CAPACITY_EXCEEDED", CategoryConstraint, http.StatusConflict, "class capacity exceeded")
	ErrConflict            = New("CONFLICT", CategoryConstraint, http.StatusConflict, "conflict")
	ErrCollaborator        = New("COLLABORATOR_UNAVAILABLE", CategoryResource, http.StatusBadGateway, "collaborator unavailable")
	ErrCacheMiss           = New("CACHE_MISS", CategoryResource, http.StatusNotFound, "cache miss")
	ErrInvariant           = New("INVARIANT_VIOLATED", CategoryAlgorithm, http.StatusInternalServerError, "internal invariant violated")
	ErrBudgetExceeded      = New("PROCESSING_BUDGET_EXCEEDED", CategorySystem, http.StatusGatewayTimeout, "processing budget exceeded")
	ErrCancelled           = New("REQUEST_CANCELLED", CategorySystem, http.StatusConflict, "request cancelled")
	ErrUnauthorized        = New("UNAUTHORIZED", CategoryValidation, http.StatusUnauthorized, "unauthorized")
	ErrInternal            = New("INTERNAL_ERROR", CategorySystem, http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the sentinel's code.
func Is(err error, sentinel *Error) bool {
	if err == nil || sentinel == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == sentinel.Code
}
