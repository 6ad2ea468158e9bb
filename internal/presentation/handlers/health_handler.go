package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// HealthChecker defines the interface for health checking components
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports dependency health and indexing progress per DAO
type HealthHandler struct {
	db     HealthChecker
	cache  HealthChecker
	states repositories.IndexerStateRepository
	daos   *config.Registry
}

// NewHealthHandler creates a new health handler. cache, states and daos may be nil.
func NewHealthHandler(db, cache HealthChecker, states repositories.IndexerStateRepository, daos *config.Registry) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  cache,
		states: states,
		daos:   daos,
	}
}

// Checkpoint is the indexing progress of one DAO
type Checkpoint struct {
	LastIndexedBlock int64   `json:"last_indexed_block"`
	EventsProcessed  int64   `json:"events_processed"`
	EventsSkipped    int64   `json:"events_skipped"`
	UpdatedAt        *string `json:"updated_at,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                `json:"status"`
	Timestamp string                `json:"timestamp"`
	Services  map[string]string     `json:"services"`
	Indexer   map[string]Checkpoint `json:"indexer,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	if err := h.db.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Services["database"] = "unhealthy: " + err.Error()
	} else {
		response.Services["database"] = "healthy"
		response.Indexer = h.checkpoints(ctx)
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Services["cache"] = "unhealthy: " + err.Error()
		} else {
			response.Services["cache"] = "healthy"
		}
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}

// checkpoints reads the indexer state of every configured DAO. DAOs never indexed are omitted.
func (h *HealthHandler) checkpoints(ctx context.Context) map[string]Checkpoint {
	if h.states == nil || h.daos == nil {
		return nil
	}

	out := make(map[string]Checkpoint)
	for _, dao := range h.daos.All() {
		state, err := h.states.Get(ctx, dao.ID)
		if err != nil || state == nil {
			continue
		}
		cp := Checkpoint{
			LastIndexedBlock: state.LastIndexedBlock,
			EventsProcessed:  state.EventsProcessed,
			EventsSkipped:    state.EventsSkipped,
		}
		if !state.UpdatedAt.IsZero() {
			ts := state.UpdatedAt.UTC().Format(time.RFC3339)
			cp.UpdatedAt = &ts
		}
		out[string(dao.ID)] = cp
	}
	return out
}

// Ready handles GET /ready (Kubernetes readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Live handles GET /live (Kubernetes liveness probe)
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
