package charapi

import (
	"errors"
	"fmt"
)

// Error codes reported by the client.
const (
	CodeTransport  = "TRANSPORT"
	CodeHTTPStatus = "HTTP_STATUS"
	CodeDecode     = "DECODE"
	CodeBadRequest = "BAD_REQUEST"
	CodeInvalidURL = "INVALID_URL"
)

// Error represents a failed call to the character API.
//
// Status is the HTTP status code when the server answered, 0 otherwise.
// Body holds the (size capped) raw response body for HTTP_STATUS errors.
type Error struct {
	Code    string
	Message string
	Status  int
	Body    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("charapi: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("charapi: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, status int, cause error) *Error {
	return &Error{Code: code, Message: message, Status: status, Cause: cause}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
