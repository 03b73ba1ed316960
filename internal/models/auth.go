// Package models defines types shared across internal packages.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks v against its `validate` struct tags. Response types use
// it to reject bodies that decoded cleanly but miss required fields.
func Validate(v any) error {
	return validate.Struct(v)
}

// Credentials is the POST /auth/login and /auth/signup body.
type Credentials struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// UserID is a user identifier. The backend has sent it both as a JSON
// string and as a number, so both decode to the same string form.
type UserID string

// UnmarshalJSON accepts a JSON string or number.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*u = UserID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}

	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("user id must be an integer: %w", err)
	}

	*u = UserID(n.String())

	return nil
}

// LoginResponse is returned from POST /auth/login. The refresh and XSRF
// tokens arrive as cookies, never in the body.
type LoginResponse struct {
	UserID      UserID `json:"userId" validate:"required"`
	AccessToken string `json:"accessToken" validate:"required"`
}

// TokenResponse is returned from POST /auth/tokens.
type TokenResponse struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// LogoutResponse is returned from POST /auth/logout.
type LogoutResponse struct {
	OK bool `json:"ok"`
}

// SignupResponse is returned from POST /auth/signup.
type SignupResponse struct {
	UserID   UserID `json:"userId" validate:"required"`
	Nickname string `json:"nickname"`
}

// ErrorResponse is the error body shape of every backend endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Profile is returned from GET /users/me.
type Profile struct {
	UserID   UserID `json:"userId" validate:"required"`
	LoginID  string `json:"loginId" validate:"required"`
	Nickname string `json:"nickname"`
}

// ProfileUpdate is the PATCH /users/me body.
type ProfileUpdate struct {
	Nickname string `json:"nickname"`
}

// StoredCookie is a cookie jar entry as kept in persistent state.
// ExpiresAt is zero for session cookies.
type StoredCookie struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the cookie has an expiry at or before now.
func (c StoredCookie) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
