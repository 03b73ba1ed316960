// Package signout tears a session down: the local session first, then a
// best-effort backend logout, then the auth cookies.
package signout

//go:generate mockgen -source=signout.go -destination=../mocks/signout.go -package=mocks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rentwave/rentwave/internal/session"
)

// logoutTimeout bounds the backend call so local teardown is never held
// hostage by a slow server.
const logoutTimeout = 10 * time.Second

// Session is the part of *session.Manager the coordinator needs.
type Session interface {
	Snapshot() session.Snapshot
	Clear()
}

// Jar is the part of *cookiejar.Jar the coordinator needs.
type Jar interface {
	RefreshToken() string
	XSRFToken() string
	Clear() error
}

// LogoutClient revokes a refresh token server-side. *backend.Client
// implements it.
type LogoutClient interface {
	Logout(ctx context.Context, refreshToken, xsrfToken string) error
}

// Coordinator runs sign-out. It is safe for concurrent use; overlapping
// sign-outs are serialized.
type Coordinator struct {
	session Session
	jar     Jar
	backend LogoutClient
	logger  *slog.Logger

	// OnSignedOut, if set, runs after local state is gone. The CLI uses it
	// to print the login hint.
	OnSignedOut func()

	mu sync.Mutex
}

// New creates a Coordinator.
func New(sess Session, jar Jar, backend LogoutClient, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Coordinator{
		session: sess,
		jar:     jar,
		backend: backend,
		logger:  logger,
	}
}

// SignOut ends the session. The session is cleared before any I/O so an
// in-flight refresh cannot bring it back. The backend logout error, if
// any, is logged and swallowed; both cookies are always cleared.
func (c *Coordinator) SignOut(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	refreshToken := c.jar.RefreshToken()

	xsrfToken := c.session.Snapshot().XSRFToken
	if xsrfToken == "" {
		xsrfToken = c.jar.XSRFToken()
	}

	c.session.Clear()

	logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	if err := c.backend.Logout(logoutCtx, refreshToken, xsrfToken); err != nil {
		c.logger.Warn("backend logout failed", slog.String("error", err.Error()))
	}
	cancel()

	if err := c.jar.Clear(); err != nil {
		c.logger.Warn("clearing auth cookies", slog.String("error", err.Error()))
	}

	c.logger.Info("signed out")

	if c.OnSignedOut != nil {
		c.OnSignedOut()
	}
}
