package patstat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode classifies a failure. Codes are strings so they read well in logs.
type ErrorCode string

const (
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeForbidden     ErrorCode = "FORBIDDEN"
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeRateLimit     ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeNetwork       ErrorCode = "NETWORK_ERROR"
	CodeUnknown       ErrorCode = "UNKNOWN"
)

// coder is implemented by every error type of this module.
type coder interface {
	Code() ErrorCode
}

// Code returns the ErrorCode of the first error in err's chain that carries one.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

// AuthError represents an authentication error
type AuthError struct {
	Action     string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: authentication failed: %s", e.Action, e.Message)
	}
	return fmt.Sprintf("%s: authentication failed (status %d): %s", e.Action, e.StatusCode, e.Message)
}

func (e *AuthError) Code() ErrorCode { return CodeUnauthorized }

// Body returns the server response for display.
func (e *AuthError) Body() []byte { return []byte(e.Message) }

// ForbiddenError is returned when the credentials are valid but no
// product matching the target name is visible to them.
type ForbiddenError struct {
	Product string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("these credentials do not allow access to %s", e.Product)
}

func (e *ForbiddenError) Code() ErrorCode { return CodeForbidden }

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Code() ErrorCode { return CodeNotFound }

// RateLimitError represents a rate limit error
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

func (e *RateLimitError) Code() ErrorCode { return CodeRateLimit }

// APIError is any other unexpected response from the remote service.
type APIError struct {
	Action     string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %s", e.Action, e.Status)
}

func (e *APIError) Code() ErrorCode { return CodeNetwork }

// PrettyBody indents a JSON error body. It returns "" when the body is
// not JSON.
func PrettyBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return ""
	}
	return buf.String()
}

// ResponseBody extracts the raw server response from err, if any.
func ResponseBody(err error) []byte {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Body()
	}
	return nil
}
