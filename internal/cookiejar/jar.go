// Package cookiejar holds the two server-controlled auth cookies: the
// HttpOnly refresh token and the script-readable XSRF token. It plays the
// part a browser cookie store plays for a web client, optionally backed by
// persistent state so a CLI session survives restarts.
package cookiejar

import (
	"fmt"
	"math"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rentwave/rentwave/internal/models"
)

const (
	// RefreshTokenCookie is the HttpOnly cookie carrying the refresh token.
	RefreshTokenCookie = "refreshToken"

	// XSRFTokenCookie is the readable cookie echoed in XSRFHeader.
	XSRFTokenCookie = "XSRF-TOKEN"

	// XSRFHeader carries the double-submit copy of the XSRF cookie.
	XSRFHeader = "X-XSRF-TOKEN"
)

// Store persists jar contents. *state.State implements it.
type Store interface {
	SaveCookie(c models.StoredCookie) error
	DeleteCookie(name string) error
	AllCookies() (map[string]models.StoredCookie, error)
	ClearCookies() error
}

// Persisted reports which auth cookie values a response set.
type Persisted struct {
	RefreshToken string
	XSRFToken    string
}

// Options configures a Jar. All fields are optional.
type Options struct {
	Store  Store
	Logger *slog.Logger
	Now    func() time.Time
}

// Jar is a concurrency-safe holder for the auth cookies. Only
// RefreshTokenCookie and XSRFTokenCookie are ever kept.
type Jar struct {
	// mu also covers writes to store, so a Clear and a Persist never
	// interleave.
	mu      sync.RWMutex
	cookies map[string]models.StoredCookie
	// gen changes on every Clear. PersistFrom drops responses to
	// requests sent under an older generation.
	gen    uint64
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a jar, loading any unexpired cookies from opts.Store.
func New(opts Options) (*Jar, error) {
	j := &Jar{
		cookies: make(map[string]models.StoredCookie),
		store:   opts.Store,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if j.logger == nil {
		j.logger = slog.New(slog.DiscardHandler)
	}

	if j.now == nil {
		j.now = time.Now
	}

	if j.store == nil {
		return j, nil
	}

	stored, err := j.store.AllCookies()
	if err != nil {
		return nil, fmt.Errorf("loading cookies: %w", err)
	}

	now := j.now()
	for name, c := range stored {
		if !isAuthCookie(name) || c.Expired(now) {
			if err := j.store.DeleteCookie(name); err != nil {
				return nil, fmt.Errorf("pruning cookie %s: %w", name, err)
			}

			continue
		}

		j.cookies[name] = c
	}

	return j, nil
}

func isAuthCookie(name string) bool {
	return name == RefreshTokenCookie || name == XSRFTokenCookie
}

// Get returns the value of a live cookie, or "" when absent or expired.
func (j *Jar) Get(name string) string {
	j.mu.RLock()
	c, ok := j.cookies[name]
	j.mu.RUnlock()

	if !ok || c.Expired(j.now()) {
		return ""
	}

	return c.Value
}

// RefreshToken returns the current refresh token cookie value.
func (j *Jar) RefreshToken() string {
	return j.Get(RefreshTokenCookie)
}

// XSRFToken returns the current XSRF-TOKEN cookie value.
func (j *Jar) XSRFToken() string {
	return j.Get(XSRFTokenCookie)
}

// Generation returns the jar's clear count. Capture it before sending a
// request whose response may set cookies and pass it to PersistFrom.
func (j *Jar) Generation() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.gen
}

// Set stores an auth cookie. maxAge follows http.Cookie semantics:
// 0 means a session cookie, negative deletes. Other names are ignored.
func (j *Jar) Set(name, value string, maxAge int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.set(name, value, maxAge)
}

func (j *Jar) set(name, value string, maxAge int) error {
	if !isAuthCookie(name) {
		return nil
	}

	if maxAge < 0 || value == "" {
		return j.delete(name)
	}

	c := models.StoredCookie{Name: name, Value: value}
	if maxAge > 0 {
		c.ExpiresAt = j.now().Add(time.Duration(maxAge) * time.Second)
	}

	j.cookies[name] = c

	if j.store != nil {
		if err := j.store.SaveCookie(c); err != nil {
			return fmt.Errorf("saving cookie %s: %w", name, err)
		}
	}

	return nil
}

// Delete removes an auth cookie.
func (j *Jar) Delete(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.delete(name)
}

func (j *Jar) delete(name string) error {
	delete(j.cookies, name)

	if j.store != nil {
		if err := j.store.DeleteCookie(name); err != nil {
			return fmt.Errorf("deleting cookie %s: %w", name, err)
		}
	}

	return nil
}

// Clear removes both auth cookies and starts a new generation. Memory is
// always cleared, even when the persistent store fails.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.gen++
	j.cookies = make(map[string]models.StoredCookie)

	if j.store != nil {
		if err := j.store.ClearCookies(); err != nil {
			return fmt.Errorf("clearing cookies: %w", err)
		}
	}

	return nil
}

// Persist adopts the auth cookies set by resp. Cookies with other names are
// ignored; a Max-Age of zero, a past Expires, or an empty value delete.
func (j *Jar) Persist(resp *http.Response) (Persisted, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.persist(resp)
}

// PersistFrom is Persist for a response to a request sent when the jar was
// at generation gen. If the jar has been cleared since, the cookies are
// dropped and the zero Persisted is returned.
func (j *Jar) PersistFrom(resp *http.Response, gen uint64) (Persisted, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.gen != gen {
		j.logger.Debug("dropping cookies from a response sent before the jar was cleared",
			slog.Uint64("sent_gen", gen),
			slog.Uint64("gen", j.gen),
		)

		return Persisted{}, nil
	}

	return j.persist(resp)
}

func (j *Jar) persist(resp *http.Response) (Persisted, error) {
	var p Persisted

	now := j.now()
	for _, c := range resp.Cookies() {
		if !isAuthCookie(c.Name) {
			continue
		}

		maxAge := c.MaxAge
		if maxAge == 0 && !c.Expires.IsZero() {
			maxAge = maxAgeUntil(c.Expires, now)
		}

		if err := j.set(c.Name, c.Value, maxAge); err != nil {
			return p, err
		}

		if maxAge < 0 || c.Value == "" {
			j.logger.Debug("cookie removed by response", slog.String("name", c.Name))
			continue
		}

		switch c.Name {
		case RefreshTokenCookie:
			p.RefreshToken = c.Value
		case XSRFTokenCookie:
			p.XSRFToken = c.Value
		}

		j.logger.Debug("cookie stored", slog.String("name", c.Name), slog.Int("max_age", maxAge))
	}

	return p, nil
}

// maxAgeUntil converts an Expires attribute to a Max-Age in whole seconds,
// rounding up so a cookie with time left never becomes a session cookie.
// An Expires at or before now yields -1.
func maxAgeUntil(expires, now time.Time) int {
	left := expires.Sub(now)
	if left <= 0 {
		return -1
	}

	return int(math.Ceil(left.Seconds()))
}
