// Package apperrors defines the error taxonomy shared by the loan engine and its hosts.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput is returned for non-positive principals, zero installment counts,
	// malformed dates and similar caller mistakes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDivisionByZero is returned by the inverse interest functions when the principal
	// or the duration is zero. It is reachable with otherwise valid data (start == end).
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNotFound is returned when a loan, installment or payment reference does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a requested transition is not allowed from the current state.
	ErrConflict = errors.New("conflict")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput reports whether err wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// HTTPStatus maps an engine error onto the response code used by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Classify returns a short label for metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDivisionByZero):
		return "division_by_zero"
	default:
		return "internal"
	}
}
