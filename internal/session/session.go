// Package session owns the client-side authentication session: the access
// token and its expiry, the XSRF token, the user id, and the error flag
// recorded when a silent refresh fails. All mutation happens inside
// Initialize, Resume, Refresh, and Clear.
package session

//go:generate mockgen -source=session.go -destination=../mocks/session.go -package=mocks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/models"
	"golang.org/x/sync/singleflight"
)

// DefaultAccessTokenTTL is how long an access token is trusted after it
// was issued. The backend issues 1-hour tokens.
const DefaultAccessTokenTTL = time.Hour

// refreshTimeout bounds a shared exchange, which runs detached from the
// context of the caller that started it.
const refreshTimeout = 30 * time.Second

// CredentialVerifier checks a login id and password with the backend.
// *backend.Client implements it.
type CredentialVerifier interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error)
}

// TokenRefresher exchanges a refresh token for a new access token.
// *backend.Client implements it.
type TokenRefresher interface {
	Exchange(ctx context.Context, refreshToken, xsrfToken string) (*models.TokenResponse, error)
}

// CookieSource reads the auth cookies. *cookiejar.Jar implements it.
type CookieSource interface {
	RefreshToken() string
	XSRFToken() string
}

// Status is the lifecycle state of a Manager.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusActive
	StatusRefreshing
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusActive:
		return "active"
	case StatusRefreshing:
		return "refreshing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the full session record. The refresh token is not part of it;
// it only ever lives in the cookie jar.
type State struct {
	AccessToken        string
	AccessTokenExpires time.Time
	XSRFToken          string
	UserID             string
	// Error is "" or errors.RefreshAccessTokenError.
	Error string
}

// Snapshot is the view of the session handed to callers.
type Snapshot struct {
	AccessToken string `json:"accessToken,omitempty"`
	XSRFToken   string `json:"xsrfToken,omitempty"`
	Error       string `json:"error,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now. Tests use it to move across token expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAccessTokenTTL overrides DefaultAccessTokenTTL.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager is the session state machine. It is safe for concurrent use.
type Manager struct {
	verifier  CredentialVerifier
	refresher TokenRefresher
	cookies   CookieSource
	logger    *slog.Logger
	now       func() time.Time
	ttl       time.Duration

	// refreshes collapses concurrent refreshes of the same epoch into one
	// exchange.
	refreshes singleflight.Group

	mu            sync.RWMutex
	state         State
	authenticated bool
	refreshing    bool
	// epoch changes on every Initialize, Resume, and Clear. A refresh
	// that finishes under a different epoch is discarded.
	epoch uint64
	// refreshed counts successful refreshes.
	refreshed uint64
}

// NewManager creates an unauthenticated Manager.
func NewManager(verifier CredentialVerifier, refresher TokenRefresher, cookies CookieSource, opts ...Option) *Manager {
	m := &Manager{
		verifier:  verifier,
		refresher: refresher,
		cookies:   cookies,
		now:       time.Now,
		ttl:       DefaultAccessTokenTTL,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}

	return m
}

// Initialize logs in with creds and starts a new session. The login
// response must already have put the refresh token and XSRF cookies in the
// jar. A verifier error is returned unchanged and leaves the current state
// alone.
func (m *Manager) Initialize(ctx context.Context, creds models.Credentials) (State, error) {
	resp, err := m.verifier.Login(ctx, creds)
	if err != nil {
		return m.Current(), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.authenticated = true
	m.refreshing = false
	m.state = State{
		AccessToken:        resp.AccessToken,
		AccessTokenExpires: m.now().Add(m.ttl),
		XSRFToken:          m.cookies.XSRFToken(),
		UserID:             string(resp.UserID),
	}

	m.logger.Info("session started", slog.String("user_id", m.state.UserID))

	return m.state, nil
}

// Resume rebuilds a session for userID from a refresh token already in the
// jar, as left behind by an earlier process. It runs one refresh. When the
// refresh fails the session stays in StatusError and the error wraps
// ErrRefreshAccessToken.
func (m *Manager) Resume(ctx context.Context, userID string) (State, error) {
	if m.cookies.RefreshToken() == "" {
		return m.Current(), apperr.ErrNotAuthenticated
	}

	m.mu.Lock()
	m.epoch++
	m.authenticated = true
	m.refreshing = false
	m.state = State{
		XSRFToken: m.cookies.XSRFToken(),
		UserID:    userID,
	}
	epoch, seen := m.epoch, m.refreshed
	m.mu.Unlock()

	st, err := m.refreshOnce(ctx, epoch, seen)
	if err != nil {
		return st, fmt.Errorf("resuming session: %w", err)
	}

	if st.Error != "" {
		return st, fmt.Errorf("resuming session: %w", apperr.ErrRefreshAccessToken)
	}

	return st, nil
}

// GetValidAccessToken returns a usable access token. An active, unexpired
// token is returned without any I/O. Otherwise one refresh is attempted.
func (m *Manager) GetValidAccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.authenticated && m.state.Error == "" && m.state.AccessToken != "" && m.now().Before(m.state.AccessTokenExpires) {
		token := m.state.AccessToken
		m.mu.RUnlock()

		return token, nil
	}

	authenticated := m.authenticated
	epoch, seen := m.epoch, m.refreshed
	m.mu.RUnlock()

	if !authenticated {
		return "", apperr.ErrNotAuthenticated
	}

	st, err := m.refreshOnce(ctx, epoch, seen)
	if err != nil {
		return "", err
	}

	switch {
	case st.AccessToken == "" && st.Error == "":
		// Signed out while the refresh was running.
		return "", apperr.ErrNotAuthenticated
	case st.Error != "":
		return "", apperr.ErrRefreshAccessToken
	}

	return st.AccessToken, nil
}

// Refresh exchanges the jar's refresh token for a new access token and
// returns the resulting state. It never returns an error: a failed
// exchange sets State.Error to RefreshAccessTokenError and leaves every
// other field as it was. Concurrent calls share one exchange. Without a
// session it returns the empty state. If ctx ends first the current state
// is returned and the shared exchange carries on.
func (m *Manager) Refresh(ctx context.Context) State {
	m.mu.RLock()
	epoch, seen := m.epoch, m.refreshed
	authenticated := m.authenticated
	m.mu.RUnlock()

	if !authenticated {
		return State{}
	}

	st, _ := m.refreshOnce(ctx, epoch, seen)

	return st
}

// refreshOnce runs or joins the refresh of epoch. seen is the refresh
// count the caller observed; if a refresh has succeeded since then its
// result is returned without another exchange. The exchange runs on a
// context detached from ctx, so one caller giving up never fails the
// others. A caller whose ctx ends first gets ctx.Err().
func (m *Manager) refreshOnce(ctx context.Context, epoch, seen uint64) (State, error) {
	ch := m.refreshes.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		return m.refresh(rctx, epoch, seen), nil
	})

	select {
	case res := <-ch:
		return res.Val.(State), nil
	case <-ctx.Done():
		return m.Current(), ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, epoch, seen uint64) State {
	m.mu.Lock()
	if m.epoch != epoch || (m.refreshed != seen && m.state.Error == "") {
		st := m.state
		m.mu.Unlock()

		return st
	}

	m.refreshing = true
	xsrf := m.state.XSRFToken
	m.mu.Unlock()

	if xsrf == "" {
		xsrf = m.cookies.XSRFToken()
	}

	var (
		resp *models.TokenResponse
		err  error
	)

	refreshToken := m.cookies.RefreshToken()
	if refreshToken == "" {
		err = fmt.Errorf("%w: no refresh token cookie", apperr.ErrRefreshUnavailable)
	} else {
		resp, err = m.refresher.Exchange(ctx, refreshToken, xsrf)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		m.logger.Debug("discarding refresh result from an ended session")
		return m.state
	}

	m.refreshing = false

	if err != nil {
		m.state.Error = apperr.RefreshAccessTokenError
		m.logger.Warn("access token refresh failed",
			slog.String("code", string(apperr.CodeOf(err))),
			slog.String("error", err.Error()),
		)

		return m.state
	}

	m.refreshed++
	m.state.AccessToken = resp.AccessToken
	m.state.AccessTokenExpires = m.now().Add(m.ttl)
	m.state.Error = ""

	if rotated := m.cookies.XSRFToken(); rotated != "" {
		m.state.XSRFToken = rotated
	}

	m.logger.Debug("access token refreshed", slog.Time("expires", m.state.AccessTokenExpires))

	return m.state
}

// Clear ends the session. Any refresh still in flight is discarded when
// it completes.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.authenticated = false
	m.refreshing = false
	m.state = State{}
}

// Current returns a copy of the full session state.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Snapshot returns the caller-facing session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		AccessToken: m.state.AccessToken,
		XSRFToken:   m.state.XSRFToken,
		Error:       m.state.Error,
		UserID:      m.state.UserID,
	}
}

// Status reports the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case !m.authenticated:
		return StatusUnauthenticated
	case m.refreshing:
		return StatusRefreshing
	case m.state.Error != "":
		return StatusError
	default:
		return StatusActive
	}
}

// Authenticated reports whether a session exists, including one whose last
// refresh failed.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.authenticated
}
