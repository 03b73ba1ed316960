package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentwave/rentwave/internal/cookiejar"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Fixed tokens handed to the seeded account in static mode.
const (
	MockAccessToken          = "mock-access-token"
	MockRefreshedAccessToken = "mock-access-token-refreshed"
	MockRefreshToken         = "mock-refresh-token"
	MockXSRFToken            = "mock-xsrf-token"
)

// TokenMode selects how tokens are minted.
type TokenMode string

const (
	// ModeStatic gives the seeded account the fixed Mock* tokens and
	// never rotates the XSRF token. Other accounts get random tokens.
	ModeStatic TokenMode = "static"

	// ModeRandom mints random tokens for everyone and rotates the XSRF
	// token on every refresh.
	ModeRandom TokenMode = "random"
)

const (
	defaultAccessTokenTTL  = time.Hour
	defaultRefreshTokenTTL = 14 * 24 * time.Hour

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 64 * 1024

	// tokenBytes is the number of random bytes in a minted token
	// (hex-encoded to twice this length).
	tokenBytes = 32
)

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Mode            TokenMode
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// Secure sets the Secure attribute on cookies. Enable in production.
	Secure bool
	Logger *slog.Logger
}

// Server implements the mock auth endpoints.
type Server struct {
	store  *Store
	opts   Options
	logger *slog.Logger
}

// NewServer creates the endpoint handlers over store.
func NewServer(store *Store, opts Options) *Server {
	if opts.Mode == "" {
		opts.Mode = ModeStatic
	}

	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = defaultAccessTokenTTL
	}

	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = defaultRefreshTokenTTL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{store: store, opts: opts, logger: logger}
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) static(userID string) bool {
	return s.opts.Mode == ModeStatic && userID == MockUserID
}

// cookieMaxAge is the Max-Age of issued auth cookies. Static mode issues
// session cookies.
func (s *Server) cookieMaxAge() int {
	if s.opts.Mode == ModeStatic {
		return 0
	}

	return int(s.opts.RefreshTokenTTL.Seconds())
}

func (s *Server) mintAccess(userID string, refreshed bool) string {
	token := RandomHex(tokenBytes)

	if s.static(userID) {
		token = MockAccessToken
		if refreshed {
			token = MockRefreshedAccessToken
		}
	}

	s.store.SaveAccessToken(&AccessToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.store.now().Add(s.opts.AccessTokenTTL),
	})

	return token
}

func (s *Server) mintRefresh(userID string) (refresh, xsrf string) {
	refresh, xsrf = RandomHex(tokenBytes), RandomHex(tokenBytes/2)

	if s.static(userID) {
		refresh, xsrf = MockRefreshToken, MockXSRFToken
	}

	s.store.SaveRefreshToken(&RefreshToken{
		Token:     refresh,
		UserID:    userID,
		XSRFToken: xsrf,
		ExpiresAt: s.store.now().Add(s.opts.RefreshTokenTTL),
	})

	return refresh, xsrf
}

// HandleLogin is POST /auth/login.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	// A malformed body is treated as empty credentials.
	_ = decodeJSON(w, r, &creds)

	account := s.store.Authenticate(creds.LoginID, creds.Password)
	if creds.LoginID == "" || creds.Password == "" || account == nil {
		s.logger.Info("mock login failed", slog.String("login_id", creds.LoginID), slog.String("ip", remoteIP(r)))
		writeError(w, http.StatusUnauthorized, apperr.CodeAuthInvalidCredentials)

		return
	}

	access := s.mintAccess(account.UserID, false)
	refresh, xsrf := s.mintRefresh(account.UserID)

	cookiejar.SetAuthCookies(w, refresh, xsrf, s.cookieMaxAge(), s.opts.Secure)

	s.logger.Info("mock login", slog.String("user_id", account.UserID))

	writeJSON(w, http.StatusOK, models.LoginResponse{
		UserID:      models.UserID(account.UserID),
		AccessToken: access,
	})
}

// HandleTokens is POST /auth/tokens.
func (s *Server) HandleTokens(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(cookiejar.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, apperr.CodeAuthMissingToken)
		return
	}

	rt, status := s.store.LookupRefreshToken(cookie.Value)

	switch status {
	case RefreshUnknown:
		cookiejar.ClearAuthCookies(w, s.opts.Secure)
		writeError(w, http.StatusUnauthorized, apperr.CodeTokenInvalidRefresh)

		return
	case RefreshExpired:
		s.store.RevokeRefreshToken(cookie.Value)
		cookiejar.ClearAuthCookies(w, s.opts.Secure)
		writeError(w, http.StatusUnauthorized, apperr.CodeTokenExpiredRefresh)

		return
	}

	if header := r.Header.Get(cookiejar.XSRFHeader); header != "" && header != rt.XSRFToken {
		s.logger.Debug("mock refresh xsrf mismatch", slog.String("user_id", rt.UserID))
		writeError(w, http.StatusForbidden, apperr.CodeXSRFTokenMismatch)

		return
	}

	access := s.mintAccess(rt.UserID, true)

	if s.opts.Mode == ModeRandom {
		xsrf := RandomHex(tokenBytes / 2)
		s.store.RotateXSRF(rt.Token, xsrf)
		http.SetCookie(w, cookiejar.NewCookie(cookiejar.XSRFTokenCookie, xsrf, s.cookieMaxAge(), s.opts.Secure))
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: access})
}

// HandleLogout is POST /auth/logout. It always succeeds.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(cookiejar.RefreshTokenCookie); err == nil && cookie.Value != "" {
		if s.store.RevokeRefreshToken(cookie.Value) {
			s.logger.Info("mock logout revoked refresh token")
		}
	}

	cookiejar.ClearAuthCookies(w, s.opts.Secure)
	writeJSON(w, http.StatusOK, models.LogoutResponse{OK: true})
}

type signupRequest struct {
	LoginID  string `json:"loginId" validate:"required,alphanum,min=5,max=20"`
	Password string `json:"password" validate:"required"`
}

// HandleSignup is POST /auth/signup.
func (s *Server) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil || req.LoginID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, apperr.CodeParameterInvalid)
		return
	}

	if err := models.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeUserInvalidLoginID)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeParameterInvalid)
		return
	}

	account := &Account{
		LoginID:      req.LoginID,
		UserID:       uuid.NewString(),
		Nickname:     req.LoginID,
		PasswordHash: string(hash),
	}

	if !s.store.AddAccount(account) {
		writeError(w, http.StatusConflict, apperr.CodeUserDuplicateLoginID)
		return
	}

	s.logger.Info("mock signup", slog.String("user_id", account.UserID))

	writeJSON(w, http.StatusCreated, models.SignupResponse{
		UserID:   models.UserID(account.UserID),
		Nickname: account.Nickname,
	})
}

// HandleMe is GET /users/me.
func (s *Server) HandleMe(w http.ResponseWriter, r *http.Request) {
	account := s.store.AccountByUserID(RequestUserID(r.Context()))
	if account == nil {
		writeError(w, http.StatusNotFound, apperr.CodeUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, profileOf(account))
}

// HandleUpdateMe is PATCH /users/me.
func (s *Server) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeParameterInvalid)
		return
	}

	nickname := strings.TrimSpace(update.Nickname)
	if nickname == "" || len([]rune(nickname)) > 20 {
		writeError(w, http.StatusBadRequest, apperr.CodeUserInvalidNickname)
		return
	}

	account := s.store.UpdateNickname(RequestUserID(r.Context()), nickname)
	if account == nil {
		writeError(w, http.StatusNotFound, apperr.CodeUserNotFound)
		return
	}

	writeJSON(w, http.StatusOK, profileOf(account))
}

func profileOf(a *Account) models.Profile {
	return models.Profile{
		UserID:   models.UserID(a.UserID),
		LoginID:  a.LoginID,
		Nickname: a.Nickname,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the backend error body: {"code": ..., "message": ...}.
func writeError(w http.ResponseWriter, status int, code apperr.Code) {
	writeJSON(w, status, models.ErrorResponse{
		Code:    string(code),
		Message: apperr.Message(code),
	})
}
