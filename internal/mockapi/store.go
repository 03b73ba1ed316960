// Package mockapi is an in-memory stand-in for the marketplace auth
// backend. It speaks the same wire contract: JSON bodies, an HttpOnly
// refresh token cookie, and an XSRF double-submit cookie. All state is in
// memory and is lost on restart.
package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute

	// maxAccounts caps signups so an unauthenticated endpoint cannot grow
	// the store without bound.
	maxAccounts = 1000
)

// AccessToken is an issued bearer token.
type AccessToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// RefreshToken is an issued refresh token and the XSRF token bound to it.
type RefreshToken struct {
	Token     string
	UserID    string
	XSRFToken string
	ExpiresAt time.Time
}

// RefreshStatus is the outcome of looking up a refresh token.
type RefreshStatus int

const (
	RefreshValid RefreshStatus = iota
	RefreshUnknown
	RefreshExpired
)

// Store holds accounts and issued tokens.
type Store struct {
	mu sync.RWMutex
	// seeded accounts are always present; fileAccounts are replaced
	// wholesale on every accounts file reload; signups are added at
	// runtime.
	seeded       map[string]*Account
	fileAccounts map[string]*Account
	signups      map[string]*Account
	access       map[string]*AccessToken  // token -> AccessToken
	refresh      map[string]*RefreshToken // token -> RefreshToken
	xsrf         map[string]string        // user id -> current XSRF token
	stopGC       chan struct{}
	stopOnce     sync.Once
	now          func() time.Time
}

// NewStore creates a store holding the seeded accounts and starts a
// background goroutine that removes expired tokens. Call Stop to end it.
func NewStore(seeded ...*Account) *Store {
	s := &Store{
		seeded:       make(map[string]*Account),
		fileAccounts: make(map[string]*Account),
		signups:      make(map[string]*Account),
		access:       make(map[string]*AccessToken),
		refresh:      make(map[string]*RefreshToken),
		xsrf:         make(map[string]string),
		stopGC:       make(chan struct{}),
		now:          time.Now,
	}

	for _, a := range seeded {
		s.seeded[a.LoginID] = a
	}

	go s.gcLoop()

	return s
}

// Stop terminates the background cleanup goroutine. It is safe to call
// more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopGC) })
}

func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

// cleanup removes all expired tokens.
func (s *Store) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.access {
		if !now.Before(t.ExpiresAt) {
			delete(s.access, k)
		}
	}

	for k, t := range s.refresh {
		if !now.Before(t.ExpiresAt) {
			delete(s.refresh, k)
		}
	}
}

// Account returns a copy of the account for loginID, or nil. Seeded
// accounts win over file accounts, which win over signups.
func (s *Store) Account(loginID string) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := s.accountLocked(loginID)
	if a == nil {
		return nil
	}

	cp := *a

	return &cp
}

func (s *Store) accountLocked(loginID string) *Account {
	if a, ok := s.seeded[loginID]; ok {
		return a
	}

	if a, ok := s.fileAccounts[loginID]; ok {
		return a
	}

	return s.signups[loginID]
}

// AccountByUserID returns a copy of the account with the given user id,
// or nil.
func (s *Store) AccountByUserID(userID string) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, set := range []map[string]*Account{s.seeded, s.fileAccounts, s.signups} {
		for _, a := range set {
			if a.UserID == userID {
				cp := *a
				return &cp
			}
		}
	}

	return nil
}

// ReplaceFileAccounts swaps in a freshly loaded accounts file.
func (s *Store) ReplaceFileAccounts(accounts []*Account) {
	m := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		m[a.LoginID] = a
	}

	s.mu.Lock()
	s.fileAccounts = m
	s.mu.Unlock()
}

// AddAccount registers a new account. It returns false when the login id
// is taken or the store is full.
func (s *Store) AddAccount(a *Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountLocked(a.LoginID) != nil || len(s.signups) >= maxAccounts {
		return false
	}

	s.signups[a.LoginID] = a

	return true
}

// UpdateNickname changes the nickname of the account with userID and
// returns a copy of the result, or nil if there is no such account.
func (s *Store) UpdateNickname(userID, nickname string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range []map[string]*Account{s.seeded, s.fileAccounts, s.signups} {
		for _, a := range set {
			if a.UserID == userID {
				a.Nickname = nickname
				cp := *a

				return &cp
			}
		}
	}

	return nil
}

// SaveAccessToken stores an issued access token.
func (s *Store) SaveAccessToken(t *AccessToken) {
	s.mu.Lock()
	s.access[t.Token] = t
	s.mu.Unlock()
}

// ValidateAccessToken returns the token if it exists and has not expired,
// or nil.
func (s *Store) ValidateAccessToken(token string) *AccessToken {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.access[token]
	if !ok || !s.now().Before(t.ExpiresAt) {
		return nil
	}

	return t
}

// RevokeAccessTokens drops every access token of userID.
func (s *Store) RevokeAccessTokens(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.access {
		if t.UserID == userID {
			delete(s.access, k)
		}
	}
}

// SaveRefreshToken stores an issued refresh token.
func (s *Store) SaveRefreshToken(t *RefreshToken) {
	s.mu.Lock()
	s.refresh[t.Token] = t
	s.xsrf[t.UserID] = t.XSRFToken
	s.mu.Unlock()
}

// LookupRefreshToken classifies a refresh token. Expired tokens are kept
// until the next cleanup so they can be reported as expired rather than
// unknown.
func (s *Store) LookupRefreshToken(token string) (*RefreshToken, RefreshStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.refresh[token]
	if !ok {
		return nil, RefreshUnknown
	}

	cp := *t
	if !s.now().Before(t.ExpiresAt) {
		return &cp, RefreshExpired
	}

	return &cp, RefreshValid
}

// RotateXSRF binds a new XSRF token to a refresh token.
func (s *Store) RotateXSRF(token, xsrf string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.refresh[token]; ok {
		t.XSRFToken = xsrf
		s.xsrf[t.UserID] = xsrf
	}
}

// CurrentXSRF returns the XSRF token most recently issued to userID.
func (s *Store) CurrentXSRF(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.xsrf[userID]
}

// RevokeRefreshToken deletes a refresh token. It reports whether the
// token existed.
func (s *Store) RevokeRefreshToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.refresh[token]
	delete(s.refresh, token)

	return ok
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
