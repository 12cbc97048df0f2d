package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthRequired is returned when a mutation is attempted without a
	// signed-in identity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrForbidden is returned when the actor is not the owner of the
	// entity for an owner-only mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced post, user or comment no
	// longer exists.
	ErrNotFound = errors.New("not found")
)

// ValidationError rejects bad input before any write is attempted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransientError wraps a network or backend failure. State is left
// unchanged and the operation may be retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Status maps an error to the HTTP status the handlers respond with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsValidation(err):
		return http.StatusBadRequest
	case IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
