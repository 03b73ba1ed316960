// Package app assembles the client-side session stack: cookie jar, auth
// backend client, session manager, sign-out coordinator and the
// authenticated API client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rentwave/rentwave/internal/backend"
	"github.com/rentwave/rentwave/internal/cookiejar"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/gateway"
	"github.com/rentwave/rentwave/internal/models"
	"github.com/rentwave/rentwave/internal/session"
	"github.com/rentwave/rentwave/internal/signout"
)

// UserStore persists the id of the signed-in user. *state.State
// implements it together with cookiejar.Store.
type UserStore interface {
	cookiejar.Store
	UserID() string
	SetUserID(id string) error
}

// Options configures the stack.
type Options struct {
	APIURL         string
	HTTPTimeout    time.Duration
	AccessTokenTTL time.Duration

	// State is optional. Without it the session lives only in memory.
	State UserStore

	// Base is the RoundTripper under both the auth client and the API
	// gateway. Nil uses http.DefaultTransport.
	Base http.RoundTripper

	// Now overrides the clock of the jar and the session manager.
	Now func() time.Time

	Logger *slog.Logger
}

// App is the assembled client stack.
type App struct {
	Jar     *cookiejar.Jar
	Backend *backend.Client
	Session *session.Manager
	SignOut *signout.Coordinator
	API     *gateway.Client

	state  UserStore
	logger *slog.Logger
}

// New wires the stack. Cookies persisted in opts.State are loaded into the
// jar; the session itself starts unauthenticated until Login or Resume.
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = backend.DefaultTimeout
	}

	jarOpts := cookiejar.Options{Logger: logger.With(slog.String("component", "cookiejar")), Now: opts.Now}
	if opts.State != nil {
		jarOpts.Store = opts.State
	}

	jar, err := cookiejar.New(jarOpts)
	if err != nil {
		return nil, fmt.Errorf("opening cookie jar: %w", err)
	}

	httpClient := backend.NewHTTPClient(timeout)
	if opts.Base != nil {
		httpClient.Transport = opts.Base
	}

	authClient := backend.NewClient(opts.APIURL, httpClient, jar, logger.With(slog.String("component", "backend")))

	sessOpts := []session.Option{session.WithLogger(logger.With(slog.String("component", "session")))}
	if opts.AccessTokenTTL > 0 {
		sessOpts = append(sessOpts, session.WithAccessTokenTTL(opts.AccessTokenTTL))
	}

	if opts.Now != nil {
		sessOpts = append(sessOpts, session.WithClock(opts.Now))
	}

	mgr := session.NewManager(authClient, authClient, jar, sessOpts...)

	a := &App{
		Jar:     jar,
		Backend: authClient,
		Session: mgr,
		state:   opts.State,
		logger:  logger,
	}

	a.SignOut = signout.New(mgr, jar, authClient, logger.With(slog.String("component", "signout")))
	a.SignOut.OnSignedOut = a.forgetUser

	transport := gateway.NewTransport(opts.Base, mgr, jar, a.SignOut, logger.With(slog.String("component", "gateway")))
	a.API = gateway.NewClient(opts.APIURL, transport, timeout, logger.With(slog.String("component", "api")))

	return a, nil
}

// Login signs in and remembers the user id for later Resume calls.
func (a *App) Login(ctx context.Context, creds models.Credentials) (session.State, error) {
	st, err := a.Session.Initialize(ctx, creds)
	if err != nil {
		return st, err
	}

	a.rememberUser(st.UserID)

	return st, nil
}

// Resume restores the session left behind by an earlier process from the
// persisted user id and refresh cookie. It returns ErrNotAuthenticated
// when there is nothing to resume. A refresh failure that means the
// refresh token is dead signs out, so stale cookies do not linger.
func (a *App) Resume(ctx context.Context) (session.State, error) {
	if a.Session.Authenticated() {
		return a.Session.Current(), nil
	}

	var userID string
	if a.state != nil {
		userID = a.state.UserID()
	}

	if userID == "" || a.Jar.RefreshToken() == "" {
		return a.Session.Current(), apperr.ErrNotAuthenticated
	}

	st, err := a.Session.Resume(ctx, userID)
	if err != nil {
		a.logger.Debug("resume failed", slog.String("error", err.Error()))

		if a.Jar.RefreshToken() == "" {
			// The refresh response expired the cookie: the backend no
			// longer knows this session.
			a.SignOut.SignOut(ctx)
		}

		return a.Session.Current(), err
	}

	return st, nil
}

// Logout signs out. It never fails; see signout.Coordinator.
func (a *App) Logout(ctx context.Context) {
	a.SignOut.SignOut(ctx)
}

// Signup registers a new account. It does not sign in.
func (a *App) Signup(ctx context.Context, creds models.Credentials) (*models.SignupResponse, error) {
	return a.Backend.Signup(ctx, creds)
}

// IsSessionGone reports whether err means the user must log in again.
func IsSessionGone(err error) bool {
	return errors.Is(err, apperr.ErrNotAuthenticated) || errors.Is(err, apperr.ErrRefreshAccessToken)
}

func (a *App) rememberUser(id string) {
	if a.state == nil {
		return
	}

	if err := a.state.SetUserID(id); err != nil {
		a.logger.Warn("failed to save user id", slog.String("error", err.Error()))
	}
}

func (a *App) forgetUser() {
	a.rememberUser("")
}
