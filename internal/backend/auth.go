package backend

import (
	"context"
	"fmt"
	"log/slog"

	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/models"
)

// Auth endpoint paths, relative to the API base URL.
const (
	LoginPath  = "/auth/login"
	TokensPath = "/auth/tokens"
	LogoutPath = "/auth/logout"
	SignupPath = "/auth/signup"
)

// Login verifies credentials with POST /auth/login. On success the
// refresh token and XSRF cookies from the response are already in the jar
// when Login returns. A rejected login returns an *errors.APIError whose
// Code is the backend's (AUTH_INVALID_CREDENTIALS for a bad password);
// it is never retried.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.post(ctx, LoginPath, creds, authHeaders{}, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	c.logger.Debug("login accepted", slog.String("user_id", string(resp.UserID)))

	return &resp, nil
}

// Exchange trades a refresh token for a new access token with POST
// /auth/tokens. The refresh token is sent as an explicit Cookie header and
// xsrfToken as X-XSRF-TOKEN. A rotated XSRF-TOKEN cookie is stored in the
// jar. There is no retry here; every failure wraps ErrRefreshUnavailable
// and keeps any *errors.APIError from the backend in the chain.
func (c *Client) Exchange(ctx context.Context, refreshToken, xsrfToken string) (*models.TokenResponse, error) {
	var resp models.TokenResponse
	headers := authHeaders{refreshToken: refreshToken, xsrfToken: xsrfToken}

	if err := c.post(ctx, TokensPath, nil, headers, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrRefreshUnavailable, err)
	}

	return &resp, nil
}

// Logout asks the backend to revoke refreshToken with POST /auth/logout.
// The backend also expires both cookies, which the jar adopts.
func (c *Client) Logout(ctx context.Context, refreshToken, xsrfToken string) error {
	var resp models.LogoutResponse
	headers := authHeaders{refreshToken: refreshToken, xsrfToken: xsrfToken}

	if err := c.post(ctx, LogoutPath, nil, headers, &resp); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// Signup registers a new account with POST /auth/signup.
func (c *Client) Signup(ctx context.Context, creds models.Credentials) (*models.SignupResponse, error) {
	var resp models.SignupResponse
	if err := c.post(ctx, SignupPath, creds, authHeaders{}, &resp); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	return &resp, nil
}
