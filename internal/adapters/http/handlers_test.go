package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jobrunner/tilevault/internal/adapters/cache"
	"github.com/jobrunner/tilevault/internal/application"
	"github.com/jobrunner/tilevault/internal/config"
	"github.com/jobrunner/tilevault/internal/domain"
	"github.com/jobrunner/tilevault/internal/ports/output"
)

// mockSource implements output.TileSource for testing.
type mockSource struct {
	data  []byte
	delay time.Duration
}

func (m *mockSource) Fetch(ctx context.Context, _ domain.TileCoordinate) ([]byte, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.data, nil
}

func (m *mockSource) URL(tile domain.TileCoordinate) string {
	return "https://tiles.test/" + tile.Key() + ".png"
}

// mockStateStore implements output.StateStore in memory. The download
// worker persists concurrently with test assertions, so access is locked.
type mockStateStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{values: make(map[string]string)}
}

func (m *mockStateStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockStateStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockStateStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockStateStore) Close() error {
	return nil
}

func newTestServer(t *testing.T, source *mockSource) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	diskCache, err := cache.NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}

	// Create real services over the mocks
	tiles := application.NewTileService(
		source,
		diskCache,
		newMockStateStore(),
		&output.NoOpMetrics{},
		logger,
		application.ServiceConfig{Concurrency: 2, ProgressInterval: 1},
	)
	if err := tiles.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	health := application.NewHealthService(tiles)
	maintenance := application.NewMaintenanceService(tiles, time.Hour, logger)

	// Create server
	srv := NewServer(
		config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			FrontendEnabled: true,
		},
		tiles,
		health,
		maintenance,
		nil, // no metrics collector in tests
		logger,
	)

	return srv
}

// addTestRegion creates a region through the API and returns its id. The
// fixture bounds cover four tiles at zoom 10.
func addTestRegion(t *testing.T, srv *Server) string {
	t.Helper()

	body := `{"name":"Testregion","north":6.4,"south":6.0,"east":1.4,"west":1.0,"min_zoom":10,"max_zoom":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/regions", strings.NewReader(body))
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var region map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &region); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	id, ok := region["id"].(string)
	if !ok || id == "" {
		t.Fatal("response should contain a region id")
	}
	return id
}

// getRegionStatus fetches a region and returns its status field.
func getRegionStatus(t *testing.T, srv *Server, id string) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regions/"+id, nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var region map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &region); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	status, _ := region["status"].(string)
	return status
}

// waitForStatus polls a region until it reaches the wanted status.
func waitForStatus(t *testing.T, srv *Server, id, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if status := getRegionStatus(t, srv, id); status == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("region %s did not reach status %q in time", id, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want %q", resp["status"], "ok")
	}
	if resp["ready"] != true {
		t.Errorf("ready = %v, want true", resp["ready"])
	}
}

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHandleReadiness(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	// The service is initialized in newTestServer, so it reports ready
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHandleListRegionsEmpty(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regions", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp["count"] != float64(0) {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestHandleAddRegion(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	if status := getRegionStatus(t, srv, id); status != "pending" {
		t.Errorf("status = %q, want %q", status, "pending")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regions", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["count"] != float64(1) {
		t.Errorf("count = %v, want 1", resp["count"])
	}
}

func TestHandleAddRegionInvalid(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"missing name", `{"north":6.4,"south":6.0,"east":1.4,"west":1.0,"min_zoom":10,"max_zoom":10}`},
		{"north below south", `{"name":"x","north":6.0,"south":6.4,"east":1.4,"west":1.0,"min_zoom":10,"max_zoom":10}`},
		{"inverted zoom range", `{"name":"x","north":6.4,"south":6.0,"east":1.4,"west":1.0,"min_zoom":12,"max_zoom":10}`},
		{"zoom above ceiling", `{"name":"x","north":6.4,"south":6.0,"east":1.4,"west":1.0,"min_zoom":10,"max_zoom":25}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/regions", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			srv.router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleGetRegionNotFound(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/regions/nonexistent", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleRemoveRegion(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/regions/"+id, nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/regions/"+id, nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status after remove = %d, want %d", rr.Code, http.StatusNotFound)
	}

	// Removing an unknown region succeeds as a no-op
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/regions/nonexistent", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status for unknown region = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestHandleDownloadRegionAndServeTile(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/download", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	waitForStatus(t, srv, id, "complete")

	// Downloaded tiles are served from the cache
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tiles/10/514/493", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("tile status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !bytes.Equal(rr.Body.Bytes(), []byte("tile-bytes")) {
		t.Errorf("tile body = %q, want %q", rr.Body.String(), "tile-bytes")
	}

	// A position inside the region is now available offline
	req = httptest.NewRequest(http.MethodGet, "/api/v1/availability?lat=6.2&lon=1.2", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("availability status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["available"] != true {
		t.Errorf("available = %v, want true", resp["available"])
	}
}

func TestHandleDownloadRegionNotFound(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regions/nonexistent/download", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleDownloadRegionConflict(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes"), delay: 50 * time.Millisecond})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/download", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}

	// A second download for the same region is rejected
	req = httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/download", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("second download status = %d, want %d", rr.Code, http.StatusConflict)
	}

	// Cancel the running download
	req = httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/cancel", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("cancel status = %d, want %d", rr.Code, http.StatusOK)
	}

	waitForStatus(t, srv, id, "partial")
}

func TestHandleCancelDownloadIdle(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/cancel", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestHandleDownloadRegionOffline(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{"offline_mode":true}`))
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("settings status = %d, want %d", rr.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/download", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestHandleEstimate(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	url := "/api/v1/estimate?north=6.4&south=6.0&east=1.4&west=1.0&min_zoom=10&max_zoom=10"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp["tile_count"] != float64(4) {
		t.Errorf("tile_count = %v, want 4", resp["tile_count"])
	}

	wantSize := 4 * domain.AverageTileSizeMB
	if resp["estimated_size_mb"] != wantSize {
		t.Errorf("estimated_size_mb = %v, want %v", resp["estimated_size_mb"], wantSize)
	}
}

func TestHandleEstimateInvalid(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	tests := []struct {
		name string
		url  string
	}{
		{"missing edges", "/api/v1/estimate?min_zoom=10&max_zoom=10"},
		{"invalid north", "/api/v1/estimate?north=abc&south=6.0&east=1.4&west=1.0&min_zoom=10&max_zoom=10"},
		{"missing zoom", "/api/v1/estimate?north=6.4&south=6.0&east=1.4&west=1.0"},
		{"reversed bounds", "/api/v1/estimate?north=6.0&south=6.4&east=1.4&west=1.0&min_zoom=10&max_zoom=10"},
		{"inverted zoom range", "/api/v1/estimate?north=6.4&south=6.0&east=1.4&west=1.0&min_zoom=12&max_zoom=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rr := httptest.NewRecorder()

			srv.router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleAvailabilityInvalid(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	tests := []struct {
		name string
		url  string
	}{
		{"missing params", "/api/v1/availability"},
		{"invalid lat", "/api/v1/availability?lat=abc&lon=1.2"},
		{"lat out of range", "/api/v1/availability?lat=91&lon=1.2"},
		{"lon out of range", "/api/v1/availability?lat=6.2&lon=181"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rr := httptest.NewRecorder()

			srv.router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleGetTile(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"not cached", "/api/v1/tiles/10/514/493", http.StatusNotFound},
		{"non-numeric coordinate", "/api/v1/tiles/10/abc/493", http.StatusBadRequest},
		{"zoom above ceiling", "/api/v1/tiles/25/0/0", http.StatusBadRequest},
		{"outside pyramid", "/api/v1/tiles/2/4/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rr := httptest.NewRecorder()

			srv.router.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestHandleCacheStats(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp["max_size_mb"] != domain.DefaultMaxCacheSizeMB {
		t.Errorf("max_size_mb = %v, want %v", resp["max_size_mb"], domain.DefaultMaxCacheSizeMB)
	}
	if _, ok := resp["size_mb"]; !ok {
		t.Error("response should contain size_mb")
	}
}

func TestHandleCleanupRateLimit(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/cleanup", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("first cleanup status = %d, want %d", rr.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cache/cleanup", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("second cleanup status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want %q", rr.Header().Get("Retry-After"), "30")
	}
}

func TestHandleClearCache(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/regions/"+id+"/download", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("download status = %d, want %d", rr.Code, http.StatusAccepted)
	}
	waitForStatus(t, srv, id, "complete")

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	// Region definitions survive a clear, reset to pending
	if status := getRegionStatus(t, srv, id); status != "pending" {
		t.Errorf("status after clear = %q, want %q", status, "pending")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tiles/10/514/493", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("tile status after clear = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleSettings(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &settings); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if settings["offline_mode"] != false {
		t.Errorf("offline_mode = %v, want false", settings["offline_mode"])
	}

	// Partial update keeps the fields that were not sent
	body := `{"offline_mode":true,"max_cache_size_mb":250}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(body))
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d", rr.Code, http.StatusOK)
	}

	if err := json.Unmarshal(rr.Body.Bytes(), &settings); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if settings["offline_mode"] != true {
		t.Errorf("offline_mode = %v, want true", settings["offline_mode"])
	}
	if settings["max_cache_size_mb"] != float64(250) {
		t.Errorf("max_cache_size_mb = %v, want 250", settings["max_cache_size_mb"])
	}
	if settings["auto_download"] != false {
		t.Errorf("auto_download = %v, want false", settings["auto_download"])
	}
}

func TestHandleSettingsInvalidBudget(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{"max_cache_size_mb":-5}`))
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleOpenAPI(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	contentType := rr.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}
}

func TestHandleFrontend(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "tilevault") {
		t.Error("frontend should mention tilevault")
	}
}

func TestParseEstimateParams(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodGet, "/estimate?north=6.4&south=6.0&east=1.4&west=1.0&min_zoom=10&max_zoom=12", nil)
	params, err := srv.parseEstimateParams(req)
	if err != nil {
		t.Fatalf("parseEstimateParams() error = %v", err)
	}

	want := domain.NewGeoBounds(6.4, 6.0, 1.4, 1.0)
	if params.Bounds != want {
		t.Errorf("bounds = %+v, want %+v", params.Bounds, want)
	}
	if params.MinZoom != 10 || params.MaxZoom != 12 {
		t.Errorf("zoom range = %d-%d, want 10-12", params.MinZoom, params.MaxZoom)
	}
}

func TestBoolToStatus(t *testing.T) {
	if boolToStatus(true) != "ok" {
		t.Error("boolToStatus(true) should return 'ok'")
	}
	if boolToStatus(false) != "unhealthy" {
		t.Error("boolToStatus(false) should return 'unhealthy'")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/regions", nil)
	rr := httptest.NewRecorder()

	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestRegionDetailIncludesLastDownload(t *testing.T) {
	srv := newTestServer(t, &mockSource{data: []byte("tile-bytes")})

	id := addTestRegion(t, srv)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/regions/%s/download", id), nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}

	waitForStatus(t, srv, id, "complete")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/regions/"+id, nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	var region map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &region); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	last, ok := region["last_download"].(map[string]interface{})
	if !ok {
		t.Fatal("response should contain last_download")
	}
	if last["downloaded"] != float64(4) {
		t.Errorf("downloaded = %v, want 4", last["downloaded"])
	}
}
