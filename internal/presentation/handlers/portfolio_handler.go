package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
)

// PortfolioHandler serves the governance position of a single account
type PortfolioHandler struct {
	service *services.PortfolioService
	logger  *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(service *services.PortfolioService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the account routes
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/accounts/{address}", h.GetAccount)
}

// GetAccount handles GET /api/v1/daos/{dao}/accounts/{address}
func (h *PortfolioHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	address := chi.URLParam(r, "address")
	if !isValidAddress(address) {
		respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}

	response, err := h.service.GetAccount(r.Context(), daoID, strings.ToLower(address))
	respondResult(w, h.logger, "account", response, err)
}
