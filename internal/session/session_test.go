package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rentwave/rentwave/internal/cookiejar"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/rentwave/rentwave/internal/mocks"
	"github.com/rentwave/rentwave/internal/models"
	"github.com/rentwave/rentwave/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testCreds = models.Credentials{LoginID: "test1234", Password: "Password123!"}

// fakeClock is a settable clock shared by the manager and the jar.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	verifier  *mocks.MockCredentialVerifier
	refresher *mocks.MockTokenRefresher
	jar       *cookiejar.Jar
	clock     *fakeClock
	m         *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := newFakeClock()

	jar, err := cookiejar.New(cookiejar.Options{Now: clock.Now})
	require.NoError(t, err)

	f := &fixture{
		verifier:  mocks.NewMockCredentialVerifier(ctrl),
		refresher: mocks.NewMockTokenRefresher(ctrl),
		jar:       jar,
		clock:     clock,
	}
	f.m = session.NewManager(f.verifier, f.refresher, jar,
		session.WithClock(clock.Now),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

// login runs a successful Initialize the way the backend client would:
// the cookies land in the jar before Login returns.
func (f *fixture) login(t *testing.T) session.State {
	t.Helper()
	f.verifier.EXPECT().Login(gomock.Any(), testCreds).DoAndReturn(
		func(context.Context, models.Credentials) (*models.LoginResponse, error) {
			require.NoError(t, f.jar.Set(cookiejar.RefreshTokenCookie, "mock-refresh-token", 0))
			require.NoError(t, f.jar.Set(cookiejar.XSRFTokenCookie, "mock-xsrf-token", 0))
			return &models.LoginResponse{UserID: "mock-user-id", AccessToken: "mock-access-token"}, nil
		})

	st, err := f.m.Initialize(t.Context(), testCreds)
	require.NoError(t, err)
	return st
}

// --- Initialize ---

func TestInitialize_CapturesSession(t *testing.T) {
	f := newFixture(t)
	st := f.login(t)

	assert.Equal(t, "mock-access-token", st.AccessToken)
	assert.Equal(t, "mock-xsrf-token", st.XSRFToken)
	assert.Equal(t, "mock-user-id", st.UserID)
	assert.Equal(t, f.clock.Now().Add(time.Hour), st.AccessTokenExpires)
	assert.Empty(t, st.Error)
	assert.Equal(t, session.StatusActive, f.m.Status())
	assert.True(t, f.m.Authenticated())
}

func TestInitialize_RejectedCredentials(t *testing.T) {
	f := newFixture(t)
	f.verifier.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(nil, &apperr.APIError{Status: 401, Code: apperr.CodeAuthInvalidCredentials}).
		Times(1)

	st, err := f.m.Initialize(t.Context(), models.Credentials{LoginID: "x", Password: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Equal(t, apperr.CodeAuthInvalidCredentials, apperr.CodeOf(err))
	assert.Equal(t, session.State{}, st)
	assert.Equal(t, session.StatusUnauthenticated, f.m.Status())
}

func TestInitialize_FailureKeepsExistingSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.verifier.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, errors.New("offline"))
	_, err := f.m.Initialize(t.Context(), testCreds)
	require.Error(t, err)

	assert.Equal(t, "mock-access-token", f.m.Current().AccessToken)
	assert.Equal(t, session.StatusActive, f.m.Status())
}

// --- GetValidAccessToken ---

func TestGetValidAccessToken_UnexpiredSkipsRefresh(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	f.clock.Advance(59 * time.Minute)
	for range 3 {
		token, err := f.m.GetValidAccessToken(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "mock-access-token", token)
	}
}

func TestGetValidAccessToken_ExpiredRefreshesOnce(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.refresher.EXPECT().
		Exchange(gomock.Any(), "mock-refresh-token", "mock-xsrf-token").
		Return(&models.TokenResponse{AccessToken: "mock-access-token-refreshed"}, nil).
		Times(1)

	f.clock.Advance(time.Hour)

	token, err := f.m.GetValidAccessToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "mock-access-token-refreshed", token)

	// The refreshed token is good for another hour.
	token, err = f.m.GetValidAccessToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "mock-access-token-refreshed", token)
	assert.Equal(t, f.clock.Now().Add(time.Hour), f.m.Current().AccessTokenExpires)
}

func TestGetValidAccessToken_NoSession(t *testing.T) {
	f := newFixture(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.m.GetValidAccessToken(t.Context())
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestGetValidAccessToken_RefreshFailure(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperr.ErrRefreshUnavailable)

	f.clock.Advance(2 * time.Hour)

	_, err := f.m.GetValidAccessToken(t.Context())
	assert.ErrorIs(t, err, apperr.ErrRefreshAccessToken)
}

// --- Refresh ---

func TestRefresh_FailureKeepsPriorFields(t *testing.T) {
	f := newFixture(t)
	before := f.login(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &apperr.APIError{Status: 401, Code: apperr.CodeTokenInvalidRefresh})

	st := f.m.Refresh(t.Context())

	assert.Equal(t, apperr.RefreshAccessTokenError, st.Error)
	assert.Equal(t, before.AccessToken, st.AccessToken)
	assert.Equal(t, before.AccessTokenExpires, st.AccessTokenExpires)
	assert.Equal(t, before.XSRFToken, st.XSRFToken)
	assert.Equal(t, before.UserID, st.UserID)
	assert.Equal(t, session.StatusError, f.m.Status())
	assert.True(t, f.m.Authenticated(), "error state is not terminal")
}

func TestRefresh_RecoversFromError(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	gomock.InOrder(
		f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, apperr.ErrRefreshUnavailable),
		f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&models.TokenResponse{AccessToken: "second"}, nil),
	)

	assert.Equal(t, apperr.RefreshAccessTokenError, f.m.Refresh(t.Context()).Error)

	st := f.m.Refresh(t.Context())
	assert.Empty(t, st.Error)
	assert.Equal(t, "second", st.AccessToken)
	assert.Equal(t, session.StatusActive, f.m.Status())
}

func TestRefresh_AdoptsRotatedXSRF(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), "mock-xsrf-token").DoAndReturn(
		func(context.Context, string, string) (*models.TokenResponse, error) {
			require.NoError(t, f.jar.Set(cookiejar.XSRFTokenCookie, "rotated", 0))
			return &models.TokenResponse{AccessToken: "new"}, nil
		})

	st := f.m.Refresh(t.Context())
	assert.Equal(t, "rotated", st.XSRFToken)
}

func TestRefresh_KeepsXSRFWhenNotRotated(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, string) (*models.TokenResponse, error) {
			require.NoError(t, f.jar.Delete(cookiejar.XSRFTokenCookie))
			return &models.TokenResponse{AccessToken: "new"}, nil
		})

	st := f.m.Refresh(t.Context())
	assert.Equal(t, "mock-xsrf-token", st.XSRFToken)
}

func TestRefresh_MissingRefreshCookie(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.NoError(t, f.jar.Delete(cookiejar.RefreshTokenCookie))
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	st := f.m.Refresh(t.Context())
	assert.Equal(t, apperr.RefreshAccessTokenError, st.Error)
	assert.Equal(t, "mock-access-token", st.AccessToken)
}

func TestRefresh_WithoutSession(t *testing.T) {
	f := newFixture(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	assert.Equal(t, session.State{}, f.m.Refresh(t.Context()))
}

func TestRefresh_ConcurrentCallsShareOneExchange(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	started := make(chan struct{})
	release := make(chan struct{})
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, string) (*models.TokenResponse, error) {
			close(started)
			<-release
			return &models.TokenResponse{AccessToken: "shared"}, nil
		}).Times(1)

	const callers = 8
	results := make([]session.State, callers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = f.m.Refresh(t.Context())
	}()
	<-started

	assert.Equal(t, session.StatusRefreshing, f.m.Status())

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.m.Refresh(t.Context())
		}()
	}

	// Give the late callers time to join the in-flight exchange.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, st := range results {
		assert.Equal(t, "shared", st.AccessToken)
	}
}

func TestGetValidAccessToken_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.clock.Advance(session.DefaultAccessTokenTTL + time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	var exchangeErr error
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _, _ string) (*models.TokenResponse, error) {
			close(started)
			<-release
			exchangeErr = ctx.Err()
			return &models.TokenResponse{AccessToken: "shared"}, nil
		}).Times(1)

	ctxA, cancelA := context.WithCancel(t.Context())
	errA := make(chan error, 1)
	go func() {
		_, err := f.m.GetValidAccessToken(ctxA)
		errA <- err
	}()
	<-started

	type result struct {
		token string
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		token, err := f.m.GetValidAccessToken(t.Context())
		resB <- result{token, err}
	}()

	// Let B join the in-flight exchange before A gives up.
	time.Sleep(50 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "shared", b.token)
	assert.NoError(t, exchangeErr)
	assert.Empty(t, f.m.Current().Error)
	assert.Equal(t, session.StatusActive, f.m.Status())
}

func TestRefresh_DiscardedAfterClear(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	started := make(chan struct{})
	release := make(chan struct{})
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, string) (*models.TokenResponse, error) {
			close(started)
			<-release
			return &models.TokenResponse{AccessToken: "late"}, nil
		})

	done := make(chan session.State)
	go func() { done <- f.m.Refresh(t.Context()) }()

	<-started
	f.m.Clear()
	close(release)

	st := <-done
	assert.Empty(t, st.AccessToken)
	assert.Equal(t, session.StatusUnauthenticated, f.m.Status())
	assert.Equal(t, session.State{}, f.m.Current())
}

func TestRefresh_DiscardedAfterRelogin(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	started := make(chan struct{})
	release := make(chan struct{})
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, string, string) (*models.TokenResponse, error) {
			close(started)
			<-release
			return nil, apperr.ErrRefreshUnavailable
		})

	done := make(chan session.State)
	go func() { done <- f.m.Refresh(t.Context()) }()

	<-started
	f.login(t)
	close(release)
	<-done

	st := f.m.Current()
	assert.Empty(t, st.Error, "stale failure must not mark the new session")
	assert.Equal(t, "mock-access-token", st.AccessToken)
}

// --- Resume ---

func TestResume_FromJar(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.jar.Set(cookiejar.RefreshTokenCookie, "persisted-rt", 0))
	require.NoError(t, f.jar.Set(cookiejar.XSRFTokenCookie, "persisted-xsrf", 0))
	f.refresher.EXPECT().Exchange(gomock.Any(), "persisted-rt", "persisted-xsrf").
		Return(&models.TokenResponse{AccessToken: "resumed"}, nil)

	st, err := f.m.Resume(t.Context(), "mock-user-id")
	require.NoError(t, err)
	assert.Equal(t, "resumed", st.AccessToken)
	assert.Equal(t, "mock-user-id", st.UserID)
	assert.Equal(t, session.StatusActive, f.m.Status())
}

func TestResume_NoRefreshCookie(t *testing.T) {
	f := newFixture(t)
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.m.Resume(t.Context(), "u")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	assert.False(t, f.m.Authenticated())
}

func TestResume_RefreshFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.jar.Set(cookiejar.RefreshTokenCookie, "revoked", 0))
	f.refresher.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperr.ErrRefreshUnavailable)

	st, err := f.m.Resume(t.Context(), "u")
	assert.ErrorIs(t, err, apperr.ErrRefreshAccessToken)
	assert.Equal(t, apperr.RefreshAccessTokenError, st.Error)
	assert.Equal(t, session.StatusError, f.m.Status())
}

// --- Clear / Snapshot ---

func TestClear_DropsEverything(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.m.Clear()
	assert.Equal(t, session.Snapshot{}, f.m.Snapshot())
	assert.False(t, f.m.Authenticated())

	_, err := f.m.GetValidAccessToken(t.Context())
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestSnapshot_NeverExposesRefreshToken(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	snap := f.m.Snapshot()
	assert.Equal(t, session.Snapshot{
		AccessToken: "mock-access-token",
		XSRFToken:   "mock-xsrf-token",
		UserID:      "mock-user-id",
	}, snap)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "mock-refresh-token")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", session.StatusUnauthenticated.String())
	assert.Equal(t, "active", session.StatusActive.String())
	assert.Equal(t, "refreshing", session.StatusRefreshing.String())
	assert.Equal(t, "error", session.StatusError.String())
	assert.Equal(t, "unknown", session.Status(42).String())
}
