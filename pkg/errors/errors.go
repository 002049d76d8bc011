package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// sentinel still match it under errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err using the code and status of a sentinel.
func WrapAs(err error, sentinel *Error, message string) *Error {
	if message == "" {
		message = sentinel.Message
	}
	return Wrap(err, sentinel.Code, sentinel.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict             = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrPayloadTooLarge      = New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "upload exceeds size limit")
	ErrInvalidShareToken    = New("INVALID_SHARE_TOKEN", http.StatusForbidden, "invalid or expired share link")
	ErrSessionState         = New("SESSION_STATE", http.StatusConflict, "feynman session is not accepting this action")
	ErrCacheMiss            = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrExtraction           = New("EXTRACTION_FAILED", http.StatusUnprocessableEntity, "could not extract text from document")
	ErrBackendUnconfigured  = New("BACKEND_UNCONFIGURED", http.StatusServiceUnavailable, "model backend is not configured")
	ErrInsufficientContent  = New("INSUFFICIENT_CONTENT", http.StatusUnprocessableEntity, "document text is too short to generate from")
	ErrTransport            = New("MODEL_TRANSPORT", http.StatusBadGateway, "model backend request failed")
	ErrMalformedModelOutput = New("MALFORMED_MODEL_OUTPUT", http.StatusBadGateway, "model output could not be parsed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
