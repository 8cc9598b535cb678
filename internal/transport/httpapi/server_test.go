package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Christ139/battle-server/internal/eventbus"
	"github.com/Christ139/battle-server/internal/manager"
	"github.com/Christ139/battle-server/internal/model"
)

func testServer(t *testing.T) (*Server, *testClock) {
	t.Helper()
	clock := &testClock{}
	bus := eventbus.New(16)
	mgr := manager.New(manager.DefaultConfig(), bus, nil, nil)
	s, err := New(mgr, nil, nil, "s3cret", clock.now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, clock
}

type testClock struct{ t float64 }

func (c *testClock) now() float64 { return c.t }

func TestNewRejectsEmptyAdminPassword(t *testing.T) {
	bus := eventbus.New(16)
	mgr := manager.New(manager.DefaultConfig(), bus, nil, nil)
	if _, err := New(mgr, nil, nil, "", nil); err == nil {
		t.Fatal("expected error constructing a Server with no admin password")
	}
}

func TestHealthIsUnauthenticated(t *testing.T) {
	s, _ := testServer(t)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK {
		t.Fatal("expected ok=true")
	}
}

func TestStartRequiresAuth(t *testing.T) {
	s, _ := testServer(t)
	body := []byte(`{"battle_id":"b1","system_id":"sys1","units":[]}`)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/battle/start", bytes.NewReader(body)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", rr.Code)
	}
}

func TestLoginThenStartThenStatusThenStop(t *testing.T) {
	s, _ := testServer(t)
	mux := s.Routes()

	loginBody, _ := json.Marshal(loginRequest{Password: "s3cret"})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(loginBody)))
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var login loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if login.Token == "" {
		t.Fatal("expected a non-empty token")
	}

	startBody, _ := json.Marshal(startRequest{
		BattleID: "b1",
		SystemID: "sys1",
		Units: []model.UnitRecord{
			{ID: 1, FactionID: 1, MaxHP: 100, HP: 100},
			{ID: 2, FactionID: 2, MaxHP: 100, HP: 100, PosX: 10},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/battle/start", bytes.NewReader(startBody))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var started startResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if !started.Success {
		t.Fatalf("expected success=true, got %+v", started)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/battle/status/b1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rr.Code)
	}
	var status statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if !status.Found || status.UnitCount != 2 {
		t.Fatalf("expected found with unit_count=2, got %+v", status)
	}

	stopReq := httptest.NewRequest(http.MethodPost, "/battle/stop/b1", nil)
	stopReq.Header.Set("Authorization", "Bearer "+login.Token)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, stopReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStatusNotFound(t *testing.T) {
	s, _ := testServer(t)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/battle/status/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestLoginRateLimitedAfterTooManyAttempts(t *testing.T) {
	s, _ := testServer(t)
	mux := s.Routes()

	badBody, _ := json.Marshal(loginRequest{Password: "wrong"})
	var last *httptest.ResponseRecorder
	for i := 0; i < maxLoginAttempts+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(badBody))
		req.RemoteAddr = "203.0.113.7:4242"
		last = httptest.NewRecorder()
		mux.ServeHTTP(last, req)
	}

	if last.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after exceeding the login rate limit, got %d", last.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(last.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "too many login attempts, try again later" {
		t.Fatalf("expected rate-limit error, got %q", resp.Error)
	}
}

func TestLoginRateLimitIsPerIP(t *testing.T) {
	s, _ := testServer(t)
	mux := s.Routes()

	badBody, _ := json.Marshal(loginRequest{Password: "wrong"})
	for i := 0; i < maxLoginAttempts+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(badBody))
		req.RemoteAddr = "203.0.113.8:1111"
		mux.ServeHTTP(httptest.NewRecorder(), req)
	}

	goodBody, _ := json.Marshal(loginRequest{Password: "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(goodBody))
	req.RemoteAddr = "203.0.113.9:2222"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected a different IP to be unaffected by another IP's rate limit, got %d", rr.Code)
	}
}
