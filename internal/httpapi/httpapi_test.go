package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/learnbot/autoscraper/internal/auth"
	"github.com/learnbot/autoscraper/internal/engine"
	"github.com/learnbot/autoscraper/internal/logbuf"
	"github.com/learnbot/autoscraper/internal/store"
)

func testServices(t *testing.T) (*Services, string) {
	t.Helper()
	mem := store.NewMemory()
	authCfg := auth.NewConfig("test-secret")
	token, _, err := auth.GenerateToken(authCfg, "tests")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	svc := &Services{
		Store: mem,
		Logs:  logbuf.New(100),
		Auth:  authCfg,
		Engine: engine.New(mem, nil, engine.NewMetrics(prometheus.NewRegistry()), nil),
	}
	return svc, token
}

func TestHealthEndpointsAreUnauthenticated(t *testing.T) {
	svc, _ := testServices(t)
	router := NewRouter(svc)

	for _, path := range []string{"/health", "/health/live"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestJobBoardsRequireAuth(t *testing.T) {
	svc, _ := testServices(t)
	router := NewRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job-boards/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateAndGetJobBoard(t *testing.T) {
	svc, token := testServices(t)
	router := NewRouter(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"name":      "demo-board",
		"type":      "rss",
		"base_url":  "https://jobs.example.com",
		"rss_url":   "https://jobs.example.com/feed.xml",
	})
	req := httptest.NewRequest(http.MethodPost, "/job-boards/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("expected created board to have an id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/job-boards/"+id, nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
}

func TestCreateJobBoardRejectsMissingType(t *testing.T) {
	svc, token := testServices(t)
	router := NewRouter(svc)

	body, _ := json.Marshal(map[string]interface{}{"name": "bad-board", "base_url": "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/job-boards/", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
