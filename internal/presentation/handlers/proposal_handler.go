package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// ProposalHandler serves governance proposals with their derived status
type ProposalHandler struct {
	service *services.ProposalService
	logger  *zap.Logger
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(service *services.ProposalService, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the proposal routes
func (h *ProposalHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daos/{dao}/proposals", h.GetProposals)
	r.Get("/daos/{dao}/proposals/{proposalID}", h.GetProposal)
}

// GetProposals handles GET /api/v1/daos/{dao}/proposals?status=&limit=&offset=
func (h *ProposalHandler) GetProposals(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	q := newQueryParams(r)
	query := services.ProposalQuery{
		Status: entities.ProposalStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		Limit:  q.integer("limit", 100),
		Offset: q.integer("offset", 0),
	}
	if q.err != nil {
		respondError(w, http.StatusBadRequest, q.err.Error())
		return
	}
	if query.Status != "" && !query.Status.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %q", query.Status))
		return
	}

	response, err := h.service.GetProposals(r.Context(), daoID, query)
	respondResult(w, h.logger, "proposals", response, err)
}

// GetProposal handles GET /api/v1/daos/{dao}/proposals/{proposalID}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	daoID, ok := daoParam(w, r)
	if !ok {
		return
	}

	proposalID := chi.URLParam(r, "proposalID")
	if id, err := entities.ParseAmount(proposalID); err != nil || proposalID == "" || id.Sign() < 0 {
		respondError(w, http.StatusBadRequest, "Invalid proposal id")
		return
	}

	response, err := h.service.GetProposal(r.Context(), daoID, proposalID)
	respondResult(w, h.logger, "proposal", response, err)
}
