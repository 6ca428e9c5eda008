package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a domain error carrying the HTTP status it should be
// rendered with.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAPIError creates an error with an explicit status code.
func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func NewValidationError(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, message)
}

func NewUnauthenticatedError(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, message)
}

func NewForbiddenError(message string) *APIError {
	return NewAPIError(http.StatusForbidden, message)
}

func NewNotFoundError(message string) *APIError {
	return NewAPIError(http.StatusNotFound, message)
}

func NewConflictError(message string) *APIError {
	return NewAPIError(http.StatusConflict, message)
}

// NewUploadError wraps an external storage failure; the whole operation
// that triggered the upload is expected to abort.
func NewUploadError(err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: "Image upload failed", Err: err}
}

// AsAPIError normalises any error into an *APIError. Unknown errors
// become opaque 500s so internals never leak to the client.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Status: http.StatusInternalServerError, Message: "Something went wrong", Err: err}
}
