package common

import (
	"errors"
	"fmt"
)

// Stable error codes for terminal pipeline failures. Clients map these to
// user-facing statuses, so the strings must not change.
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeInvalidFileFormat   = "INVALID_FILE_FORMAT"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeLLMUnavailable      = "LLM_SERVICE_UNAVAILABLE"
	CodeLLMAPIError         = "LLM_API_ERROR"
	CodeLLMTimeout          = "LLM_TIMEOUT"
	CodeLLMInvalidResponse  = "LLM_INVALID_RESPONSE"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError builds an AppError carrying a stable code and the original cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func UnsupportedFileType(message string) *AppError {
	return NewAppError(CodeUnsupportedFileType, message, nil)
}

func InvalidFileFormat(message string, cause error) *AppError {
	return NewAppError(CodeInvalidFileFormat, message, cause)
}

func ExtractionFailed(message string, cause error) *AppError {
	return NewAppError(CodeExtractionFailed, message, cause)
}

func LLMUnavailable(message string) *AppError {
	return NewAppError(CodeLLMUnavailable, message, nil)
}

func LLMAPIError(message string, cause error) *AppError {
	return NewAppError(CodeLLMAPIError, message, cause)
}

func LLMTimeout(message string, cause error) *AppError {
	return NewAppError(CodeLLMTimeout, message, cause)
}

func LLMInvalidResponse(message string, cause error) *AppError {
	return NewAppError(CodeLLMInvalidResponse, message, cause)
}

func DatabaseError(message string, cause error) *AppError {
	return NewAppError(CodeDatabaseError, message, cause)
}

func InternalError(message string, cause error) *AppError {
	return NewAppError(CodeInternalError, message, cause)
}

// ErrorCode extracts the stable code from an error chain. Unclassified errors
// report CodeInternalError.
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternalError
}

// ErrorMessage extracts the human-readable message from an error chain.
func ErrorMessage(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
