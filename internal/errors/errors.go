package errors

import (
	"errors"
	"fmt"
)

// FileSystemError is the structured error type shared by every provider and
// by the wire protocol. Errors compare equal under errors.Is when their codes
// match.
type FileSystemError struct {
	// Code is the unique error code (e.g., "ERR_202_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code.
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *FileSystemError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FileSystemError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *FileSystemError) Is(target error) bool {
	if t, ok := target.(*FileSystemError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FileSystemError) WithDetail(key, value string) *FileSystemError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new FileSystemError with the given code and message.
func New(code string, message string, cause error) *FileSystemError {
	return &FileSystemError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a FileSystemError from an existing error.
// The error's message becomes the FileSystemError message.
func Wrap(code string, err error) *FileSystemError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel values for errors.Is comparisons.
var (
	ErrFileExists        = New(ErrCodeFileExists, "file exists", nil)
	ErrFileNotFound      = New(ErrCodeFileNotFound, "file not found", nil)
	ErrFileNotADirectory = New(ErrCodeFileNotADirectory, "not a directory", nil)
	ErrFileIsADirectory  = New(ErrCodeFileIsADirectory, "is a directory", nil)
	ErrNoPermissions     = New(ErrCodeNoPermissions, "no permissions", nil)
	ErrUnavailable       = New(ErrCodeUnavailable, "unavailable", nil)
	ErrCanceled          = New(ErrCodeCanceled, "canceled", nil)
	ErrUnknown           = New(ErrCodeUnknown, "unknown", nil)
)

// FileNotFound creates a not-found error for resource.
func FileNotFound(resource string, cause error) *FileSystemError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", resource), cause).
		WithDetail("resource", resource)
}

// Unavailable creates a transport error. The provider behind the channel
// could not be reached.
func Unavailable(message string, cause error) *FileSystemError {
	return New(ErrCodeUnavailable, message, cause)
}

// InvalidInput creates a caller error.
func InvalidInput(message string) *FileSystemError {
	return New(ErrCodeInvalidInput, message, nil)
}

// Internal creates an internal error.
func Internal(message string, cause error) *FileSystemError {
	return New(ErrCodeInternal, message, cause)
}

// Canceled creates the error a cancelled operation terminates with.
func Canceled() *FileSystemError {
	return New(ErrCodeCanceled, "canceled", nil)
}

// Unknown creates the generic error used when a failure cannot be classified.
// text is kept verbatim as the message.
func Unknown(text string) *FileSystemError {
	return New(ErrCodeUnknown, text, nil)
}

// IsCanceled reports whether err is a cancellation.
func IsCanceled(err error) bool {
	return HasCode(err, ErrCodeCanceled)
}

// HasCode reports whether err, or any error it wraps, is a FileSystemError
// with the given code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from the first FileSystemError in err's
// chain. Returns empty string if there is none.
func GetCode(err error) string {
	var fe *FileSystemError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category from the first FileSystemError in err's
// chain. Returns empty string if there is none.
func GetCategory(err error) Category {
	var fe *FileSystemError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}
