package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound      = new(ErrCodeNotFound, "invoice not found")
	ErrAlreadyExists = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation    = new(ErrCodeValidation, "validation error")
	ErrCorruptData   = new(ErrCodeCorruptData, "persisted document is corrupt")
	ErrCorruptState  = new(ErrCodeCorruptState, "persisted counter state is corrupt")
	ErrIO            = new(ErrCodeIO, "storage i/o error")
	ErrRender        = new(ErrCodeRender, "pdf render error")
	ErrSystem        = new(ErrCodeSystemError, "system error")
)

const (
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeValidation    = "validation_error"
	ErrCodeCorruptData   = "corrupt_data"
	ErrCodeCorruptState  = "corrupt_state"
	ErrCodeIO            = "io_error"
	ErrCodeRender        = "render_error"
	ErrCodeSystemError   = "system_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// new creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCorruptData checks if an error is a corrupt document error
func IsCorruptData(err error) bool {
	return errors.Is(err, ErrCorruptData)
}

// IsCorruptState checks if an error is a corrupt counter state error
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

// IsIO checks if an error is a storage i/o error
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsRender checks if an error is a pdf render error
func IsRender(err error) bool {
	return errors.Is(err, ErrRender)
}

// Hint returns the first user-facing hint attached to an error, if any.
// The shell uses this to show a readable message without the internal chain.
func Hint(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return ""
	}
	return hints[0]
}
