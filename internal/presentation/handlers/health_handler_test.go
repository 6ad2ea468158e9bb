package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func serveHealth(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return rec.Code, response
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		db         bool
		cache      *bool
		wantCode   int
		wantStatus string
		wantCache  string
	}{
		{"all healthy", true, boolRef(true), http.StatusOK, "healthy", "healthy"},
		{"database down", false, boolRef(true), http.StatusServiceUnavailable, "unhealthy", "healthy"},
		{"cache down", true, boolRef(false), http.StatusOK, "degraded", "unhealthy: health check failed"},
		{"both down", false, boolRef(false), http.StatusServiceUnavailable, "unhealthy", "unhealthy: health check failed"},
		{"no cache configured", true, nil, http.StatusOK, "healthy", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cache HealthChecker
			if tt.cache != nil {
				cache = testutil.NewMockHealthChecker(*tt.cache)
			}
			h := NewHealthHandler(testutil.NewMockHealthChecker(tt.db), cache, nil, nil)

			code, response := serveHealth(t, h)
			if code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, code)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("expected %s, got %s", tt.wantStatus, response.Status)
			}
			if got := response.Services["cache"]; got != tt.wantCache {
				t.Errorf("expected cache %q, got %q", tt.wantCache, got)
			}
			if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
				t.Errorf("timestamp is not RFC3339: %q", response.Timestamp)
			}
		})
	}
}

func boolRef(b bool) *bool { return &b }

func TestHealthHandler_Health_Checkpoints(t *testing.T) {
	states := testutil.NewMockIndexerStateRepository()
	states.AddState(testutil.CreateTestIndexerState(
		testutil.StateWithDao(entities.DaoENS),
		testutil.StateWithLastIndexedBlock(19000500),
	))
	daos := config.NewRegistry([]config.DAO{
		testutil.CreateTestDAO(),
		testutil.CreateTestDAO(func(d *config.DAO) { d.ID = entities.DaoUNI }),
	})

	_, response := serveHealth(t, NewHealthHandler(testutil.NewMockHealthChecker(true), nil, states, daos))

	cp, ok := response.Indexer["ENS"]
	if !ok {
		t.Fatal("expected ENS checkpoint")
	}
	if cp.LastIndexedBlock != 19000500 {
		t.Errorf("expected last indexed block 19000500, got %d", cp.LastIndexedBlock)
	}
	if _, exists := response.Indexer["UNI"]; exists {
		t.Error("never indexed DAO should be omitted")
	}
}

func TestHealthHandler_Health_DatabaseDownSkipsCheckpoints(t *testing.T) {
	states := testutil.NewMockIndexerStateRepository()
	h := NewHealthHandler(testutil.NewMockHealthChecker(false), nil, states, config.NewRegistry(nil))

	_, response := serveHealth(t, h)

	if response.Indexer != nil {
		t.Errorf("expected no checkpoints, got %v", response.Indexer)
	}
	if len(states.Calls) != 0 {
		t.Errorf("expected no checkpoint reads, got %d", len(states.Calls))
	}
}

func TestHealthHandler_Probes(t *testing.T) {
	healthy := NewHealthHandler(testutil.NewMockHealthChecker(true), nil, nil, nil)
	down := NewHealthHandler(testutil.NewMockHealthChecker(false), nil, nil, nil)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{"ready", healthy.Ready, http.StatusOK, "ready"},
		{"not ready", down.Ready, http.StatusServiceUnavailable, "not ready\n"},
		{"live", healthy.Live, http.StatusOK, "alive"},
		{"live with database down", down.Live, http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}
