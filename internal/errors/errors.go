// Package errors provides unified error handling with structured error codes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an AppError.
type Code string

// Error codes.
const (
	CodeUnknown  Code = "UNKNOWN"
	CodeInternal Code = "INTERNAL"

	// Transient, per-cycle failures
	CodeCaptureFailed    Code = "CAPTURE_FAILED"
	CodeOCRExtractFailed Code = "OCR_EXTRACT_FAILED"
	CodeOCRInvalidImage  Code = "OCR_INVALID_IMAGE"
	CodeOCRUnavailable   Code = "OCR_UNAVAILABLE"

	// Fatal at startup
	CodeOCRInitFailed Code = "OCR_INIT_FAILED"

	// Persistence
	CodeStoreReadFailed   Code = "STORE_READ_FAILED"
	CodeStoreWriteFailed  Code = "STORE_WRITE_FAILED"
	CodeJournalFailed     Code = "JOURNAL_FAILED"
	CodeConfigReadFailed  Code = "CONFIG_READ_FAILED"
	CodeConfigWriteFailed Code = "CONFIG_WRITE_FAILED"

	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the first AppError in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error chain carries a specific error code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeCaptureFailed, CodeOCRExtractFailed, CodeOCRUnavailable, CodeOCRInitFailed:
		return true
	default:
		return false
	}
}
