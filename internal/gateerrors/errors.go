// Package gateerrors provides sentinel and custom error types for the engine.
package gateerrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrDetectionFailed is the sentinel for extraction failures: the face-scan
// collaborator found no usable face in the submitted image. Recoverable; the
// caller should re-prompt for a new capture.
var ErrDetectionFailed = &DetectionFailedError{}

// DetectionFailedError is a sentinel error for images with no detectable face.
type DetectionFailedError struct {
	Message string
}

// NewDetectionFailedError creates a DetectionFailedError with a custom message.
func NewDetectionFailedError(message string) *DetectionFailedError {
	return &DetectionFailedError{Message: message}
}

// Error implements the error interface.
func (e *DetectionFailedError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "no detectable face in image"
}

// Is implements the error interface for error comparison.
func (e *DetectionFailedError) Is(target error) bool {
	_, ok := target.(*DetectionFailedError)

	return ok
}

// ErrUnauthorized is the sentinel for failed credential checks during
// feedback reconciliation.
var ErrUnauthorized = &UnauthorizedError{}

// UnauthorizedError is a sentinel error for credential verification failures.
type UnauthorizedError struct {
	Message string
}

// NewUnauthorizedError creates an UnauthorizedError with a custom message.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "unauthorized"
}

// Is implements the error interface for error comparison.
func (e *UnauthorizedError) Is(target error) bool {
	_, ok := target.(*UnauthorizedError)

	return ok
}

// ErrAlreadyReconciled is the sentinel for duplicate feedback submissions:
// the login attempt already carries feedback and its fields are write-once.
var ErrAlreadyReconciled = &AlreadyReconciledError{}

// AlreadyReconciledError is a sentinel error for the ledger idempotency guard.
type AlreadyReconciledError struct {
	Message string
}

// NewAlreadyReconciledError creates an AlreadyReconciledError with a custom message.
func NewAlreadyReconciledError(message string) *AlreadyReconciledError {
	return &AlreadyReconciledError{Message: message}
}

// Error implements the error interface.
func (e *AlreadyReconciledError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "login attempt already reconciled"
}

// Is implements the error interface for error comparison.
func (e *AlreadyReconciledError) Is(target error) bool {
	_, ok := target.(*AlreadyReconciledError)

	return ok
}

// ErrConflict is the sentinel for conflict errors (e.g. a face already
// enrolled for another principal in the same scope).
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for resource conflicts.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}
