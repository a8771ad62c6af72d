package fleetapi

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNotFound      = errors.New("resource not found")
	ErrFleetNotFound = errors.New("fleet not found")
	ErrUnauthorized  = errors.New("authentication failed")
	ErrBadResponse   = errors.New("unexpected API response")
	ErrReleaseFailed = errors.New("release creation failed")
)

// APIError wraps fleet API failures with request context.
type APIError struct {
	Op       string // Operation that failed
	Resource string // Resource name or path
	Status   int    // HTTP status, 0 when the request never completed
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Resource, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError.
func NewAPIError(op, resource string, status int, message string, err error) *APIError {
	return &APIError{
		Op:       op,
		Resource: resource,
		Status:   status,
		Message:  message,
		Err:      err,
	}
}
