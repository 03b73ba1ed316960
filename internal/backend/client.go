// Package backend talks to the marketplace auth endpoints: credential
// login, refresh token exchange, logout, and signup. It is the only code
// that sends the refresh token over the wire.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rentwave/rentwave/internal/cookiejar"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/models"
)

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller may retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	DefaultTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads to prevent a
	// misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 1024 * 1024
)

// CookieSink receives the Set-Cookie headers of auth responses.
// *cookiejar.Jar implements it.
type CookieSink interface {
	Generation() uint64
	PersistFrom(resp *http.Response, gen uint64) (cookiejar.Persisted, error)
}

// Client talks to the backend auth API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookies    CookieSink
	logger     *slog.Logger
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This keeps the refresh token cookie
// and XSRF header from leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewHTTPClient returns an http.Client with the given timeout and the
// same-host redirect policy.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: sameHostRedirectPolicy,
	}
}

// NewClient creates an auth API client rooted at baseURL. Auth cookies
// set by responses are handed to cookies. If httpClient is nil, a client
// with a 30-second timeout and same-host redirect policy is created.
func NewClient(baseURL string, httpClient *http.Client, cookies CookieSink, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultTimeout)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookies:    cookies,
		logger:     logger,
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// authHeaders carries the refresh token cookie and XSRF header for the
// endpoints that need them. Empty values are not sent.
type authHeaders struct {
	refreshToken string
	xsrfToken    string
}

func (h authHeaders) apply(req *http.Request) {
	if h.refreshToken != "" {
		// Set explicitly: there is no ambient cookie forwarding here.
		req.Header.Set("Cookie", (&http.Cookie{Name: cookiejar.RefreshTokenCookie, Value: h.refreshToken}).String())
	}

	if h.xsrfToken != "" {
		req.Header.Set(cookiejar.XSRFHeader, h.xsrfToken)
	}
}

// post sends a JSON POST request and decodes the response into result.
// Non-2xx responses become *errors.APIError; bodies that fail to decode or
// validate become *errors.SchemaError.
func (c *Client) post(ctx context.Context, endpoint string, body any, headers authHeaders, result any) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	headers.apply(req)

	// A sign-out that clears the jar while this request is in flight
	// must not see its cookies come back.
	var gen uint64
	if c.cookies != nil {
		gen = c.cookies.Generation()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("sending request to %s: %w", endpoint, err)
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return &TransientError{Err: wrapped}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if c.cookies != nil {
		if _, err := c.cookies.PersistFrom(resp, gen); err != nil {
			// The response itself is still valid; the jar keeps the
			// in-memory copy even when persistence fails.
			c.logger.Warn("failed to persist auth cookies",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apperr.NewAPIError(resp.StatusCode, respBody)

		c.logger.Debug("backend error response",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("code", string(apiErr.Code)),
		)

		if apiErr.Code == apperr.CodeUnknown {
			c.logger.Debug("backend error body", slog.String("body", sanitizeResponseBody(respBody)))
		}

		if isTransientStatus(resp.StatusCode) {
			return &TransientError{Err: apiErr}
		}

		return apiErr
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &apperr.SchemaError{Status: resp.StatusCode, Err: fmt.Errorf("decoding response from %s: %w", endpoint, err)}
	}

	if err := models.Validate(result); err != nil {
		return &apperr.SchemaError{Status: resp.StatusCode, Err: fmt.Errorf("validating response from %s: %w", endpoint, err)}
	}

	return nil
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}
