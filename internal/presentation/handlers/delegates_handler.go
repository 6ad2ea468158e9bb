package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// DelegatesHandler serves delegate listings and point-in-time voting power
type DelegatesHandler struct {
	service *services.DelegatesService
	logger  *zap.Logger
}

// NewDelegatesHandler creates a new delegates handler
func NewDelegatesHandler(service *services.DelegatesService, logger *zap.Logger) *DelegatesHandler {
	return &DelegatesHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the delegate routes
func (h *DelegatesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/delegates", h.GetDelegates)
	r.Get("/daos/{dao}/voting-power/historical", h.GetHistoricalVotingPower)
}

// GetDelegates handles GET /api/v1/daos/{dao}/delegates
//
// Query: from_date, order_by (votingPower|delegationsCount|votesCount), order (asc|desc), limit, offset
func (h *DelegatesHandler) GetDelegates(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	query := services.DelegateQuery{
		FromDate: q.timestamp("from_date"),
		OrderBy:  repositories.DelegateOrder(r.URL.Query().Get("order_by")),
		Asc:      q.ascending("order"),
		Limit:    q.integer("limit", 100),
		Offset:   q.integer("offset", 0),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	if query.OrderBy != "" && !query.OrderBy.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid order_by: %q", query.OrderBy))
		return
	}

	response, err := h.service.GetDelegates(r.Context(), daoID, query)
	respondResult(w, h.logger, "delegates", response, err)
}

// GetHistoricalVotingPower handles GET /api/v1/daos/{dao}/voting-power/historical?addresses=&block=
func (h *DelegatesHandler) GetHistoricalVotingPower(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	addresses, block, ok := historicalParams(w, r)
	if !ok {
		return
	}

	response, err := h.service.GetHistoricalVotingPower(r.Context(), daoID, addresses, block)
	respondResult(w, h.logger, "historical voting power", response, err)
}

// historicalParams validates the addresses and block of point-in-time queries
func historicalParams(w http.ResponseWriter, r *http.Request) ([]string, int64, bool) {
	q := newQueryParams(r)
	addresses := q.addresses("addresses")
	block := q.int64Ptr("block")
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return nil, 0, false
	}
	if len(addresses) == 0 {
		respondError(w, http.StatusBadRequest, "at least one address is required")
		return nil, 0, false
	}
	if len(addresses) > services.MaxHistoricalAddresses {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d addresses per request", services.MaxHistoricalAddresses))
		return nil, 0, false
	}
	if block == nil {
		respondError(w, http.StatusBadRequest, "block is required")
		return nil, 0, false
	}
	return addresses, *block, true
}
