package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("compose spec is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Compose structure errors
	ErrNoServices     = errors.New("compose spec must define at least one service")
	ErrComposeMissing = errors.New("no compose file found in source directory")

	// Service validation errors
	ErrServiceNoImage     = errors.New("service must have image or build")
	ErrDuplicateService   = errors.New("duplicate service name")
	ErrDescriptorMismatch = errors.New("descriptors and composition out of sync")
)

// ParseError wraps errors with context about where loading failed.
type ParseError struct {
	Field   string // e.g., "services.web.image"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
