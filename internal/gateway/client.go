package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/models"
)

// maxResponseBytes caps response body reads.
const maxResponseBytes = 1024 * 1024

// Client sends JSON requests to the marketplace API through a Transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an API client rooted at baseURL that sends every
// request through transport.
func NewClient(baseURL string, transport http.RoundTripper, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Do sends a request and decodes a 2xx JSON body into result, which is
// then checked against its validate tags. Non-2xx responses return an
// *errors.APIError; bodies that do not fit result return an
// *errors.SchemaError. A nil body sends no payload; a nil result ignores
// the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apperr.NewAPIError(resp.StatusCode, respBody)

		c.logger.Debug("api error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", string(apiErr.Code)),
		)

		return apiErr
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &apperr.SchemaError{Status: resp.StatusCode, Err: fmt.Errorf("decoding %s: %w", path, err)}
	}

	if err := models.Validate(result); err != nil {
		return &apperr.SchemaError{Status: resp.StatusCode, Err: fmt.Errorf("validating %s: %w", path, err)}
	}

	return nil
}

// DoVoid sends a request and only checks the status.
func (c *Client) DoVoid(ctx context.Context, method, path string, body any) error {
	return c.Do(ctx, method, path, body, nil)
}

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.Do(ctx, http.MethodGet, "/users/me", nil, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// UpdateMe changes the signed-in user's nickname.
func (c *Client) UpdateMe(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
	var p models.Profile
	if err := c.Do(ctx, http.MethodPatch, "/users/me", update, &p); err != nil {
		return nil, err
	}

	return &p, nil
}
