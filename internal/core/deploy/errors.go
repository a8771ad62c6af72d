package deploy

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Validation errors, raised before any build or network call.
	ErrMulticontainerNotSupported = errors.New("fleet does not support multi-container releases")
	ErrLegacySingleService        = errors.New("legacy fleets accept exactly one service")

	// Reconciliation invariant violations. These indicate an internal
	// inconsistency, never a user mistake.
	ErrMissingRecord  = errors.New("no build or skip record for declared service")
	ErrUnknownService = errors.New("build record for undeclared service")
)

// Error wraps a deploy failure with the stage it occurred in.
type Error struct {
	Stage   string // "validate", "prune", "build", "reconcile", "release"
	Fleet   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Fleet != "" {
		return fmt.Sprintf("%s %s: %s", e.Stage, e.Fleet, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new deploy Error.
func NewError(stage, fleet, message string, err error) *Error {
	return &Error{
		Stage:   stage,
		Fleet:   fleet,
		Message: message,
		Err:     err,
	}
}
