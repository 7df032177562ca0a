package errors

import (
	"errors"
	"fmt"
)

// Common error values shared by the engine, the stores and the API
var (
	// ErrNotFound indicates a story is absent or not visible to the owner
	ErrNotFound = errors.New("story not found")

	// ErrInvalidTransition indicates an operation that the current decision state does not allow
	ErrInvalidTransition = errors.New("invalid decision transition")

	// ErrMalformedResponse indicates provider output that failed to parse or validate
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ValidationError reports bad input shape. The operation is aborted with no mutation.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ProviderError represents a generation failure, timeout or malformed response.
// It is recovered internally with fallback content and only logged.
type ProviderError struct {
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Malformed reports whether the provider answered but the answer was unusable
func (e *ProviderError) Malformed() bool {
	return errors.Is(e.Err, ErrMalformedResponse)
}

// NewProviderError creates a new provider error
func NewProviderError(operation string, err error) *ProviderError {
	return &ProviderError{
		Operation: operation,
		Err:       err,
	}
}

// BusyError is returned when a decision is already in flight for the story
type BusyError struct {
	StoryID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("story %s has an operation in flight, retry later", e.StoryID)
}

// NewBusyError creates a new busy error
func NewBusyError(storyID string) *BusyError {
	return &BusyError{StoryID: storyID}
}

// PreconditionError reports an operation invoked before the document is ready for it
type PreconditionError struct {
	Operation string
	Message   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Operation, e.Message)
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, message string) *PreconditionError {
	return &PreconditionError{
		Operation: operation,
		Message:   message,
	}
}

// PersistenceError wraps a store failure
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(operation string, err error) *PersistenceError {
	return &PersistenceError{
		Operation: operation,
		Err:       err,
	}
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsProvider checks if an error is a provider error
func IsProvider(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// IsBusy checks if an error is a busy error
func IsBusy(err error) bool {
	var target *BusyError
	return errors.As(err, &target)
}

// IsPrecondition checks if an error is a precondition error
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

// IsPersistence checks if an error is a persistence error
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// IsNotFound checks if an error means the story does not exist for the owner
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidTransition checks if an error is a rejected state transition
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
