package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
)

// StatsHandler serves transfer statistics
type StatsHandler struct {
	service *services.StatsService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the stats routes
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/stats", h.GetTokenStats)
}

// GetTokenStats handles GET /api/v1/daos/{dao}/stats
func (h *StatsHandler) GetTokenStats(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	response, err := h.service.GetTokenStats(r.Context(), daoID)
	respondResult(w, h.logger, "token stats", response, err)
}
