package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/reachscan/internal/cache"
	"github.com/hitoshi/reachscan/internal/middleware"
	"github.com/hitoshi/reachscan/internal/model"
)

func testRouter(t *testing.T, service ScanServiceInterface) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		ScanService:       service,
		ScanDefaults:      testScanDefaults(),
		ProfileCache:      cache.NewProfileCache(cache.DefaultTTL),
	})
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := testRouter(t, &fakeScanService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_StartScanRoute(t *testing.T) {
	service := &fakeScanService{startScanID: "scan-123"}
	router := testRouter(t, service)

	req := httptest.NewRequest(http.MethodPost, "/api/scans", strings.NewReader(`{"handles": ["alice"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_GetScanByIDRoute_PassesURLParam(t *testing.T) {
	service := &fakeScanService{
		scan: &model.Scan{ID: "scan-123", Status: model.ScanStatusCompleted},
	}
	router := testRouter(t, service)

	req := httptest.NewRequest(http.MethodGet, "/api/scans/scan-123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_SubResourceRoutes(t *testing.T) {
	service := &fakeScanService{}
	router := testRouter(t, service)

	for _, path := range []string{
		"/api/scans/scan-123/posts",
		"/api/scans/scan-123/verdicts",
		"/api/scans/scan-123/analytics",
		"/api/scans/scan-123/failures",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_CacheRoutes(t *testing.T) {
	router := testRouter(t, &fakeScanService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cache", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/cache: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("DELETE /api/cache: status = %d, want 200", rec.Code)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := testRouter(t, &fakeScanService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
}

func TestRouter_MetricsRouteOnlyWhenConfigured(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))
	defer rl.Stop()

	deps := &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		ScanService:       &fakeScanService{},
		ScanDefaults:      testScanDefaults(),
		ProfileCache:      cache.NewProfileCache(cache.DefaultTTL),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("metrics ok"))
		}),
	}
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics: status = %d, want 200", rec.Code)
	}

	deps.MetricsHandler = nil
	router = NewRouter(deps)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler: status = %d, want 404", rec.Code)
	}
}

func TestCacheHandler_ClearCache(t *testing.T) {
	c := cache.NewProfileCache(cache.DefaultTTL)
	c.Put("alice", model.ProfileInfo{DisplayName: "Alice"})
	c.Put("bob", model.ProfileInfo{DisplayName: "Bob"})
	h := NewCacheHandler(c)

	rec := httptest.NewRecorder()
	h.ClearCache(rec, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["cleared_entries"] != 2 {
		t.Errorf("cleared_entries = %d, want 2", body["cleared_entries"])
	}
	if c.Len() != 0 {
		t.Errorf("cache Len after clear = %d, want 0", c.Len())
	}
}

func TestCacheHandler_GetCacheStats(t *testing.T) {
	c := cache.NewProfileCache(cache.DefaultTTL)
	c.Put("alice", model.ProfileInfo{DisplayName: "Alice"})
	h := NewCacheHandler(c)

	rec := httptest.NewRecorder()
	h.GetCacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/cache", nil))

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["entries"] != 1 {
		t.Errorf("entries = %d, want 1", body["entries"])
	}
}

func TestHealthHandler_WithoutDBCheck(t *testing.T) {
	h := NewHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if _, exists := body["database"]; exists {
		t.Error("response should not contain database key when no checker is set")
	}
}

func TestHealthHandler_DatabaseOK(t *testing.T) {
	h := NewHealthHandler(func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["database"] != "ok" {
		t.Errorf("database = %q, want ok", body["database"])
	}
}

func TestHealthHandler_DatabaseUnavailable_Returns503(t *testing.T) {
	h := NewHealthHandler(func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %q, want degraded", body["status"])
	}
	if body["database"] != "unavailable" {
		t.Errorf("database = %q, want unavailable", body["database"])
	}
}

func TestHealthHandler_CheckReceivesDeadline(t *testing.T) {
	var hadDeadline bool
	h := NewHealthHandler(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	})

	h.Health(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if !hadDeadline {
		t.Error("health check context should carry a deadline")
	}
}
