package e2e_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rentwave/rentwave/internal/app"
	"github.com/rentwave/rentwave/internal/mockapi"
	"github.com/rentwave/rentwave/internal/server"
	"github.com/rentwave/rentwave/internal/state"
	"github.com/stretchr/testify/require"
)

// harness holds the full e2e test stack: the mock backend behind
// server.NewMux on an httptest server, and a client stack persisting to a
// bbolt file in a temp dir.
type harness struct {
	URL       string
	Server    *httptest.Server
	Store     *mockapi.Store
	StatePath string
	Clock     *clock
	Wire      *recorder
}

// newHarness starts the mock backend in the given token mode.
func newHarness(t *testing.T, mode mockapi.TokenMode) *harness {
	t.Helper()

	seed, err := mockapi.SeedAccount()
	require.NoError(t, err)

	store := mockapi.NewStore(seed)
	t.Cleanup(store.Stop)

	logger := slog.New(slog.DiscardHandler)
	api := mockapi.NewServer(store, mockapi.Options{Mode: mode, Logger: logger})

	srv := httptest.NewServer(server.NewMux(server.MuxConfig{API: api, Logger: logger}))
	t.Cleanup(srv.Close)

	return &harness{
		URL:       srv.URL,
		Server:    srv,
		Store:     store,
		StatePath: filepath.Join(t.TempDir(), "state.db"),
		Clock:     &clock{now: time.Now()},
		Wire:      &recorder{base: http.DefaultTransport},
	}
}

// newApp opens the state file and wires a client stack against the mock.
// The returned state must be closed before another app opens the same
// file.
func (h *harness) newApp(t *testing.T) (*app.App, *state.State) {
	t.Helper()

	st, err := state.LoadAt(h.StatePath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a, err := app.New(app.Options{
		APIURL:      h.URL,
		HTTPTimeout: 5 * time.Second,
		State:       st,
		Base:        h.Wire,
		Now:         h.Clock.Now,
		Logger:      slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	return a, st
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// call is one request seen on the wire.
type call struct {
	Method  string
	Path    string
	Bearer  string
	XSRF    string
	Retried bool
	Status  int
}

// recorder is a RoundTripper that logs every request it forwards.
type recorder struct {
	base http.RoundTripper

	mu    sync.Mutex
	calls []call
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	c := call{
		Method:  req.Method,
		Path:    req.URL.Path,
		Bearer:  req.Header.Get("Authorization"),
		XSRF:    req.Header.Get("X-XSRF-TOKEN"),
		Retried: req.Header.Get("X-Retried") == "true",
	}

	resp, err := r.base.RoundTrip(req)
	if resp != nil {
		c.Status = resp.StatusCode
	}

	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	return resp, err
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]call(nil), r.calls...)
}

func (r *recorder) Count(path string) int {
	n := 0

	for _, c := range r.Calls() {
		if c.Path == path {
			n++
		}
	}

	return n
}

func (r *recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
