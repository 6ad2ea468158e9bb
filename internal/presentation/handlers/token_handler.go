package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
)

// TokenHandler serves the governance token of each configured DAO
type TokenHandler struct {
	service *services.TokenService
	logger  *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(service *services.TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the token routes
func (h *TokenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos", h.GetAllTokens)
	r.Get("/daos/{dao}", h.GetByDao)
}

// GetAllTokens handles GET /api/v1/daos
func (h *TokenHandler) GetAllTokens(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.GetAllTokens(r.Context())
	respondResult(w, h.logger, "tokens", response, err)
}

// GetByDao handles GET /api/v1/daos/{dao}
func (h *TokenHandler) GetByDao(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	response, err := h.service.GetByDao(r.Context(), daoID)
	respondResult(w, h.logger, "token", response, err)
}
