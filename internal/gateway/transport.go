// Package gateway decorates outgoing API requests with the session's
// credentials and recovers once from an expired access token.
package gateway

//go:generate mockgen -source=transport.go -destination=../mocks/gateway.go -package=mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rentwave/rentwave/internal/cookiejar"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/session"
)

// RetriedHeader marks the single retry of a request after a refresh.
const RetriedHeader = "X-Retried"

// maxPeekBytes caps how much of a 401 body is buffered to read its code.
const maxPeekBytes = 64 * 1024

// TokenSource supplies and refreshes the access token.
// *session.Manager implements it.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) session.State
}

// XSRFSource reads the XSRF cookie. *cookiejar.Jar implements it.
type XSRFSource interface {
	XSRFToken() string
}

// SignOuter ends the session. *signout.Coordinator implements it.
type SignOuter interface {
	SignOut(ctx context.Context)
}

// Transport is an http.RoundTripper that adds the bearer token and XSRF
// header to every request. A 401 TOKEN_INVALID_ACCESS triggers one
// refresh and one retry; a 401 carrying a refresh token failure signs the
// user out. Everything else passes through untouched.
type Transport struct {
	base    http.RoundTripper
	tokens  TokenSource
	cookies XSRFSource
	signOut SignOuter
	logger  *slog.Logger
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, tokens TokenSource, cookies XSRFSource, signOut SignOuter, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Transport{
		base:    base,
		tokens:  tokens,
		cookies: cookies,
		signOut: signOut,
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	token, err := t.tokens.GetValidAccessToken(ctx)
	if err != nil {
		t.logger.Debug("sending request without access token",
			slog.String("path", req.URL.Path),
			slog.String("reason", err.Error()),
		)
		token = ""
	}

	out, err := t.prepare(req, getBody, token)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	code, err := peekCode(resp)
	if err != nil {
		return nil, err
	}

	if code == apperr.CodeTokenInvalidAccess && req.Header.Get(RetriedHeader) != "true" {
		return t.retry(req, getBody, resp)
	}

	t.signOutOnTerminal(ctx, code)

	return resp, nil
}

// signOutOnTerminal ends the session when code says the refresh token is
// gone for good.
func (t *Transport) signOutOnTerminal(ctx context.Context, code apperr.Code) {
	if !apperr.IsTerminalRefresh(code) {
		return
	}

	t.logger.Info("refresh token rejected, signing out", slog.String("code", string(code)))
	t.signOut.SignOut(ctx)
}

// retry refreshes the session and re-sends req once. If the refresh
// fails, the original 401 is returned.
func (t *Transport) retry(req *http.Request, getBody bodyFunc, unauthorized *http.Response) (*http.Response, error) {
	st := t.tokens.Refresh(req.Context())
	if st.Error != "" || st.AccessToken == "" {
		t.logger.Debug("refresh failed, returning original 401", slog.String("path", req.URL.Path))
		return unauthorized, nil
	}

	out, err := t.prepare(req, getBody, st.AccessToken)
	if err != nil {
		return unauthorized, nil
	}

	out.Header.Set(RetriedHeader, "true")

	unauthorized.Body.Close()

	t.logger.Debug("retrying request with refreshed token", slog.String("path", req.URL.Path))

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	code, err := peekCode(resp)
	if err != nil {
		return nil, err
	}

	t.signOutOnTerminal(req.Context(), code)

	return resp, nil
}

// prepare clones req with a fresh body and the auth headers. The XSRF
// header is read from the jar at send time.
func (t *Transport) prepare(req *http.Request, getBody bodyFunc, token string) (*http.Request, error) {
	out := req.Clone(req.Context())

	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}

		out.Body = body
	}

	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	if xsrf := t.cookies.XSRFToken(); xsrf != "" {
		out.Header.Set(cookiejar.XSRFHeader, xsrf)
	} else {
		out.Header.Del(cookiejar.XSRFHeader)
	}

	return out, nil
}

type bodyFunc func() (io.ReadCloser, error)

// replayableBody returns a function yielding a fresh copy of the request
// body so it can be sent twice. Bodies built from bytes or strings already
// carry GetBody; anything else is buffered once. Returns nil for requests
// without a body.
func replayableBody(req *http.Request) (bodyFunc, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}

	if req.GetBody != nil {
		req.Body.Close()
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()

	if err != nil {
		return nil, fmt.Errorf("buffering request body: %w", err)
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// peekCode reads the error code from a 401 body and puts the body back so
// callers still see it unchanged.
func peekCode(resp *http.Response) (apperr.Code, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPeekBytes))
	if err != nil {
		resp.Body.Close()
		return "", fmt.Errorf("reading 401 body: %w", err)
	}

	rest := resp.Body
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(data), rest), rest}

	return apperr.CodeFromBody(data), nil
}
