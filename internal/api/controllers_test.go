package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trading-bot/internal/events"
	"trading-bot/internal/lifecycle"
	"trading-bot/internal/monitor"
	"trading-bot/internal/ratelimit"
	"trading-bot/internal/scheduler"
	"trading-bot/pkg/db"

	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	limiter, err := ratelimit.New(nil)
	if err != nil {
		t.Fatalf("ratelimit.New: %v", err)
	}

	bus := events.NewBus()
	bus.Start()
	t.Cleanup(bus.Stop)

	return NewServer(
		bus,
		lifecycle.NewManager(),
		limiter,
		scheduler.New(),
		monitor.NewMetrics(),
		database,
		SystemMeta{Version: "test"},
		"test-secret",
		"admin",
		"hunter2",
	)
}

func authedRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := generateToken("admin", s.JWTSecret, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func TestHealthzIsPublic(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, expected 401", w.Code)
	}
}

func TestLoginIssuesUsableToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response = %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w = httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with token = %d", w.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, expected 401", w.Code)
	}
}

func TestStateTransitionEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := authedRequest(t, s, http.MethodPost, "/api/state", `{"target":"running","reason":"test start"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("transition status = %d: %s", w.Code, w.Body.String())
	}
	if got := s.Lifecycle.State(); got != lifecycle.StateRunning {
		t.Fatalf("state = %s", got)
	}

	// A disallowed transition reports a conflict and changes nothing.
	w = authedRequest(t, s, http.MethodPost, "/api/state", `{"target":"stopped"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("invalid transition status = %d", w.Code)
	}
	if got := s.Lifecycle.State(); got != lifecycle.StateRunning {
		t.Fatalf("state changed to %s on a rejected transition", got)
	}

	// Successful transitions are recorded in the audit table.
	w = authedRequest(t, s, http.MethodGet, "/api/transitions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("transitions status = %d", w.Code)
	}
	var resp struct {
		Transitions []db.StateTransition `json:"transitions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Transitions) != 1 || resp.Transitions[0].ToState != "running" {
		t.Fatalf("transitions = %+v", resp.Transitions)
	}
}

func TestPauseEndpoints(t *testing.T) {
	s := newTestServer(t)
	if err := s.Lifecycle.TransitionTo(lifecycle.StateRunning); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}

	w := authedRequest(t, s, http.MethodPost, "/api/pauses", `{"reason":"manual hold"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add pause status = %d: %s", w.Code, w.Body.String())
	}
	if s.Lifecycle.IsTradingAllowed() {
		t.Fatal("trading still allowed after pause")
	}

	w = authedRequest(t, s, http.MethodDelete, "/api/pauses", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear pauses status = %d", w.Code)
	}
	if !s.Lifecycle.IsTradingAllowed() {
		t.Fatal("trading still blocked after clearing pauses")
	}
}

func TestRateLimitsEndpoint(t *testing.T) {
	s := newTestServer(t)
	// Touch a bucket so the snapshot has something to show.
	s.Limiter.AvailableTokens(ratelimit.CategoryOrderCreate, "BTCUSDT")

	w := authedRequest(t, s, http.MethodGet, "/api/ratelimits", "")
	if w.Code != http.StatusOK {
		t.Fatalf("ratelimits status = %d", w.Code)
	}
	var resp struct {
		Buckets map[string]float64 `json:"buckets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := resp.Buckets["order_create:BTCUSDT"]; !ok {
		t.Fatalf("buckets = %v", resp.Buckets)
	}
}
