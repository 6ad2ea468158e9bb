package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// SupplyHandler serves supply comparisons, active supply and daily metric series
type SupplyHandler struct {
	service *services.SupplyService
	logger  *zap.Logger
}

// NewSupplyHandler creates a new supply handler
func NewSupplyHandler(service *services.SupplyService, logger *zap.Logger) *SupplyHandler {
	return &SupplyHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the supply routes
func (h *SupplyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/supply/{metric}/compare", h.GetSupplyComparison)
	r.Get("/daos/{dao}/active-supply", h.GetActiveSupply)
	r.Get("/daos/{dao}/metrics/{metric}", h.GetDailyMetrics)
}

// metricParam accepts TOTAL_SUPPLY, total_supply and total-supply
func metricParam(w http.ResponseWriter, r *http.Request) (entities.MetricType, bool) {
	raw := strings.ReplaceAll(chi.URLParam(r, "metric"), "-", "_")
	metric, err := entities.ParseMetricType(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return metric, true
}

// GetSupplyComparison handles GET /api/v1/daos/{dao}/supply/{metric}/compare?days=N
func (h *SupplyHandler) GetSupplyComparison(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	days := q.integer("days", 90)
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	response, err := h.service.GetSupplyComparison(r.Context(), daoID, metric, days)
	respondResult(w, h.logger, "supply comparison", response, err)
}

// GetActiveSupply handles GET /api/v1/daos/{dao}/active-supply?days=N
func (h *SupplyHandler) GetActiveSupply(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	days := q.integer("days", 90)
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	response, err := h.service.GetActiveSupply(r.Context(), daoID, days)
	respondResult(w, h.logger, "active supply", response, err)
}

// GetDailyMetrics handles GET /api/v1/daos/{dao}/metrics/{metric}?from=&to=
func (h *SupplyHandler) GetDailyMetrics(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	from := q.timestamp("from")
	to := q.timestamp("to")
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	if from != nil && to != nil && from.After(*to) {
		respondError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	var fromTime, toTime time.Time
	if from != nil {
		fromTime = *from
	}
	if to != nil {
		toTime = *to
	}

	response, err := h.service.GetDailyMetrics(r.Context(), daoID, metric, fromTime, toTime)
	respondResult(w, h.logger, "metrics", response, err)
}
