package handlers

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// TransferHandler serves the transfer history of DAO tokens
type TransferHandler struct {
	service *services.TransferService
	logger  *zap.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(service *services.TransferService, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the transfer routes
func (h *TransferHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/transactions", h.GetTransactions)
}

// GetTransactions handles GET /api/v1/daos/{dao}/transactions
func (h *TransferHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	filter := entities.DefaultTransferFilter()
	filter.FromAddress = q.address("from")
	filter.ToAddress = q.address("to")
	filter.Address = q.address("address")
	filter.FromBlock = q.int64Ptr("from_block")
	filter.ToBlock = q.int64Ptr("to_block")
	filter.FromTime = q.timestamp("from_time")
	filter.ToTime = q.timestamp("to_time")
	filter.IsCex = q.boolPtr("is_cex")
	filter.IsDex = q.boolPtr("is_dex")
	filter.IsLending = q.boolPtr("is_lending")
	filter.IsTreasury = q.boolPtr("is_treasury")
	filter.IsTotal = q.boolPtr("is_total")
	filter.Limit = q.integer("limit", filter.Limit)
	filter.Offset = q.integer("offset", 0)
	if q.r.URL.Query().Get("order") != "" {
		filter.SortDesc = !q.ascending("order")
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}

	amounts := []struct {
		name   string
		target **big.Int
	}{
		{"min_amount", &filter.MinAmount},
		{"max_amount", &filter.MaxAmount},
	}
	for _, a := range amounts {
		name, target := a.name, a.target
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		amount, err := entities.ParseAmount(v)
		if err != nil || amount.Sign() < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, v))
			return
		}
		*target = amount
	}

	switch sortBy := entities.TransferSort(r.URL.Query().Get("sort_by")); sortBy {
	case "":
	case entities.SortByTimestamp, entities.SortByAmount:
		filter.SortBy = sortBy
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid sort_by: %q", sortBy))
		return
	}

	response, err := h.service.GetTransactions(r.Context(), daoID, filter)
	respondResult(w, h.logger, "transactions", response, err)
}
