package errors

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Client errors.
var (
	ErrInvalidCredentials = errors.New("invalid login id or password")
	ErrNotAuthenticated   = errors.New("no active session")
	ErrRefreshAccessToken = errors.New("access token refresh failed")
	ErrRefreshUnavailable = errors.New("refresh token exchange unavailable")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)

// RefreshAccessTokenError is the value recorded in session state when a
// refresh attempt fails.
const RefreshAccessTokenError = "RefreshAccessTokenError"

// APIError is a non-2xx response from the backend. Code is the backend's
// error code verbatim, or CodeUnknown when the body carried none.
type APIError struct {
	Status int
	Code   Code
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Code)
}

// Is maps auth-specific codes onto the sentinel errors so callers can branch
// with errors.Is without inspecting codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidCredentials:
		return e.Code == CodeAuthInvalidCredentials
	case ErrAPIRequest:
		return true
	}

	return false
}

// SchemaError reports a response whose shape did not match the contract.
// It is never an APIError.
type SchemaError struct {
	Status int
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s (status %d): %v", CodeInvalidResponseSchema, e.Status, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Is makes every SchemaError match ErrAPIResponse.
func (e *SchemaError) Is(target error) bool {
	return target == ErrAPIResponse
}

// NewAPIError builds an APIError from a status code and raw response body.
func NewAPIError(status int, body []byte) *APIError {
	code := CodeFromBody(body)
	if code == "" {
		code = CodeUnknown
	}

	return &APIError{Status: status, Code: code}
}

// CodeFromBody extracts the error code from a JSON error body. The backend
// uses "code"; some endpoints still answer with "errorCode". Returns "" for
// non-JSON bodies or bodies without either field.
func CodeFromBody(body []byte) Code {
	if !gjson.ValidBytes(body) {
		return ""
	}

	res := gjson.GetManyBytes(body, "code", "errorCode")
	for _, r := range res {
		if r.Type == gjson.String && r.Str != "" {
			return Code(r.Str)
		}
	}

	return ""
}

// CodeOf returns the backend code carried by err, or "" when err is not an
// APIError.
func CodeOf(err error) Code {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return ""
}
