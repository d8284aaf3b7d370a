package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a Revise error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrInvalidFormat  ErrorCode = "INVALID_FORMAT"  // 422
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrStorageFailure ErrorCode = "STORAGE_FAILURE" // 503
)

// ReviseError represents a structured error with code, status, and details.
type ReviseError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *ReviseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ReviseError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ReviseError {
	return &ReviseError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing version or session.
// kind is "version" or "session".
func NewNotFound(kind, id string) *ReviseError {
	return &ReviseError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *ReviseError {
	return &ReviseError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidFormat creates a 422 error for a malformed import payload.
func NewInvalidFormat(msg string) *ReviseError {
	return &ReviseError{
		Code:    ErrInvalidFormat,
		Status:  422,
		Message: msg,
	}
}

// NewCancelled creates a 499 error when the caller's context is done.
func NewCancelled(op string) *ReviseError {
	return &ReviseError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ReviseError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ReviseError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewStorageFailure creates a 503 error when the storage backend rejects a read or write.
func NewStorageFailure(op string, err error) *ReviseError {
	msg := fmt.Sprintf("storage %s failed", op)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &ReviseError{
		Code:    ErrStorageFailure,
		Status:  503,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a ReviseError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *ReviseError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// As extracts a ReviseError from err, wrapping unknown errors as INTERNAL.
func As(err error) *ReviseError {
	var rErr *ReviseError
	if stderrors.As(err, &rErr) {
		return rErr
	}
	return NewInternal(err)
}

// Payload renders err for transport as {code, message, status[, details]}.
// Wrapping context is kept in the message. INTERNAL errors and non-Revise
// errors get a generic message and no details.
func Payload(err error) map[string]any {
	var rErr *ReviseError
	if !stderrors.As(err, &rErr) || rErr.Code == ErrInternal {
		return map[string]any{
			"code":    string(ErrInternal),
			"message": "an internal error occurred",
			"status":  500,
		}
	}

	msg := rErr.Message
	if full := err.Error(); full != rErr.Error() {
		msg = strings.TrimSuffix(full, rErr.Error()) + rErr.Message
	}
	payload := map[string]any{
		"code":    string(rErr.Code),
		"message": msg,
		"status":  rErr.Status,
	}
	if rErr.Details != nil {
		payload["details"] = rErr.Details
	}
	return payload
}
