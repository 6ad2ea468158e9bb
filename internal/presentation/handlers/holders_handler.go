package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
)

// HoldersHandler serves holder listings and point-in-time balances
type HoldersHandler struct {
	service *services.HoldersService
	logger  *zap.Logger
}

// NewHoldersHandler creates a new holders handler
func NewHoldersHandler(service *services.HoldersService, logger *zap.Logger) *HoldersHandler {
	return &HoldersHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the holder routes
func (h *HoldersHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/holders", h.GetHolders)
	r.Get("/daos/{dao}/balances/historical", h.GetHistoricalBalances)
}

// GetHolders handles GET /api/v1/daos/{dao}/holders
func (h *HoldersHandler) GetHolders(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	query := services.HolderQuery{
		FromDate: q.timestamp("from_date"),
		Asc:      q.ascending("order"),
		Limit:    q.integer("limit", 100),
		Offset:   q.integer("offset", 0),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	response, err := h.service.GetHolders(r.Context(), daoID, query)
	respondResult(w, h.logger, "holders", response, err)
}

// GetHistoricalBalances handles GET /api/v1/daos/{dao}/balances/historical?addresses=&block=
func (h *HoldersHandler) GetHistoricalBalances(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	addresses, block, ok := historicalParams(w, r)
	if !ok {
		return
	}

	response, err := h.service.GetHistoricalBalances(r.Context(), daoID, addresses, block)
	respondResult(w, h.logger, "historical balances", response, err)
}
