package e2e_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/tmc-client/internal/backend"
	"github.com/alexjbarnes/tmc-client/internal/request"
	"github.com/alexjbarnes/tmc-client/internal/session"
	"github.com/alexjbarnes/tmc-client/internal/tokenstore"
	"github.com/alexjbarnes/tmc-client/internal/transport"
)

const (
	testUnionID   = "union-e2e"
	testUserID    = 1001
	redirectDelay = 50 * time.Millisecond
)

// tmcServer is an in-process stand-in for the TMC backend. It issues
// rotating token pairs and answers 401 for unknown access tokens, the
// same way the real service does once a token expires.
type tmcServer struct {
	mu      sync.Mutex
	access  map[string]bool
	refresh map[string]bool
	seq     int

	refreshes atomic.Int32
	hits      atomic.Int32
}

func newTMCServer() *tmcServer {
	return &tmcServer{access: map[string]bool{}, refresh: map[string]bool{}}
}

func (s *tmcServer) issue() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	access := fmt.Sprintf("access-%d", s.seq)
	refresh := fmt.Sprintf("refresh-%d", s.seq)
	s.access[access] = true
	s.refresh[refresh] = true

	return access, refresh
}

// expireAccess invalidates every access token, leaving refresh tokens
// usable.
func (s *tmcServer) expireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// revokeAll invalidates the whole session.
func (s *tmcServer) revokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
	clear(s.refresh)
}

func (s *tmcServer) validAccess(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access[token]
}

// rotate swaps a refresh token for a new pair. Each refresh token works
// exactly once.
func (s *tmcServer) rotate(token string) (string, string, bool) {
	s.mu.Lock()
	ok := s.refresh[token]
	delete(s.refresh, token)
	s.mu.Unlock()

	if !ok {
		return "", "", false
	}

	access, refresh := s.issue()

	return access, refresh, true
}

func (s *tmcServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UnionID string `json:"unionId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if body.UnionID != testUnionID {
			writeEnvelope(w, false, "unknown user", nil)
			return
		}

		access, refresh := s.issue()
		writeEnvelope(w, true, "", map[string]any{
			"token":        access,
			"refreshToken": refresh,
			"userId":       testUserID,
			"phone":        "13800000000",
		})
	})

	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshes.Add(1)

		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		access, refresh, ok := s.rotate(body.RefreshToken)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		writeEnvelope(w, true, "", map[string]any{
			"token":        access,
			"refreshToken": refresh,
			"userId":       testUserID,
		})
	})

	mux.HandleFunc("POST /api/auth/logout", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, true, "", nil)
	}))

	mux.HandleFunc("GET /api/me", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, true, "", map[string]any{"userId": testUserID, "nickname": "E2E"})
	}))

	mux.HandleFunc("GET /api/articles/{id}", s.authed(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, true, "", map[string]any{"id": r.PathValue("id"), "title": "Article " + r.PathValue("id")})
	}))

	mux.HandleFunc("POST /api/courses/{id}/enrollments", s.authed(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, false, "course is full", nil)
	}))

	return mux
}

// authed rejects requests whose x-token is not a live access token.
func (s *tmcServer) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)

		if !s.validAccess(r.Header.Get("x-token")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func writeEnvelope(w http.ResponseWriter, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success, "message": message, "data": data})
}

// screen records what a user would see: toasts and navigations.
type screen struct {
	mu     sync.Mutex
	toasts []string
	routes []string
}

func (s *screen) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, message)
}

func (s *screen) Navigate(route string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, route)
	return nil
}

func (s *screen) seen() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.toasts...), append([]string(nil), s.routes...)
}

// harness holds one client stack talking to a running tmcServer.
type harness struct {
	Server     *tmcServer
	URL        string
	Store      *tokenstore.Store
	Client     *request.Client
	Services   *backend.Services
	Redirector *session.Redirector
	Screen     *screen
}

// newHarness starts a fake backend and wires a client over kv.
func newHarness(t *testing.T, kv tokenstore.Backend) *harness {
	t.Helper()

	srv := newTMCServer()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	return attach(t, srv, ts.URL, kv)
}

// attach wires a fresh client stack to an already running backend,
// the way a second process or a restart would.
func attach(t *testing.T, srv *tmcServer, url string, kv tokenstore.Backend) *harness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := tokenstore.New(kv, logger)
	scr := &screen{}

	redirector := session.New(session.Config{
		Notifier:  scr,
		Navigator: scr,
		Delay:     redirectDelay,
		Logger:    logger,
	})

	tr := transport.New(transport.Config{
		BaseURL: url,
		Tokens:  store,
		Timeout: 5 * time.Second,
		Logger:  logger,
	})

	coord := request.NewCoordinator(request.CoordinatorConfig{
		Tokens:     store,
		Refresher:  request.NewRefresher(tr),
		Profiles:   request.NewProfileFetcher(tr),
		Redirector: redirector,
		Logger:     logger,
	})

	client := request.New(request.Config{
		Transport:   tr,
		Tokens:      store,
		Coordinator: coord,
		Notifier:    scr,
		Logger:      logger,
	})

	return &harness{
		Server:     srv,
		URL:        url,
		Store:      store,
		Client:     client,
		Services:   backend.New(client, store, logger),
		Redirector: redirector,
		Screen:     scr,
	}
}

// login signs in through the real login endpoint.
func (h *harness) login(t *testing.T) {
	t.Helper()

	_, err := h.Services.Auth.LoginWithWechat(t.Context(), loginRequest())
	require.NoError(t, err)
	require.True(t, h.Services.Auth.IsLoggedIn())
}

// waitRedirect blocks until any scheduled login redirect has run.
func (h *harness) waitRedirect(t *testing.T) {
	t.Helper()

	require.NoError(t, h.Redirector.Wait(t.Context()))
}
