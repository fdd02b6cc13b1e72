package crudapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies remote API failures so callers can branch on them.
type ErrorKind string

const (
	ErrorKindAuth        ErrorKind = "auth"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindValidation  ErrorKind = "validation"
	ErrorKindRateLimit   ErrorKind = "rate_limit"
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindUpstream    ErrorKind = "upstream"
	ErrorKindInvalidData ErrorKind = "invalid_data"
)

// APIError describes a failed call to the remote CRUD API.
type APIError struct {
	Kind       ErrorKind
	Operation  string
	Resource   string
	StatusCode int
	// Code and Message come from the response envelope when one was returned.
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e == nil {
		return "crud api error"
	}

	base := fmt.Sprintf("crud api %s error", e.Kind)
	if e.Operation != "" {
		base = fmt.Sprintf("%s during %s", base, e.Operation)
	}
	if e.Resource != "" {
		base = fmt.Sprintf("%s on %s", base, e.Resource)
	}
	if e.StatusCode > 0 {
		base = fmt.Sprintf("%s (status %d)", base, e.StatusCode)
	}
	if e.Code != "" || e.Message != "" {
		base = fmt.Sprintf("%s: %s %s", base, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a remote not-found error.
func IsNotFound(err error) bool {
	return IsKind(err, ErrorKindNotFound)
}

// Outcome labels the result of a call for metrics: "success", the
// APIError kind, "timeout", "canceled" or "error".
func Outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return string(apiErr.Kind)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}

// kindForStatus maps an HTTP status code to an error kind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorKindAuth
	case status == http.StatusNotFound:
		return ErrorKindNotFound
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		return ErrorKindValidation
	case status >= 500:
		return ErrorKindUpstream
	}
	return ErrorKindInvalidData
}
