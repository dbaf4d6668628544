package service

import (
	"errors"
	"fmt"
)

// Common sentinel errors for AvatarService
var (
	// ErrInvalidRequest indicates the creation request failed validation
	// before it was accepted into the queue.
	ErrInvalidRequest = errors.New("invalid avatar creation request")
)

// AvatarServiceError wraps errors from the avatar service with context.
type AvatarServiceError struct {
	// Operation is the operation that failed (e.g., "stage_image", "emit_event")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for AvatarServiceError.
func (e *AvatarServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("avatar service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("avatar service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *AvatarServiceError) Unwrap() error {
	return e.Err
}

// NewAvatarServiceError creates a new AvatarServiceError.
func NewAvatarServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	return &AvatarServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
