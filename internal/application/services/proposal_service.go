package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
)

// ProposalService lists proposals with their status derived at read time
type ProposalService struct {
	proposalRepo repositories.ProposalRepository
	daos         *config.Registry
	cache        *cache.RedisCache
	logger       *zap.Logger
	now          func() time.Time
}

// NewProposalService creates a new proposal service
func NewProposalService(
	proposalRepo repositories.ProposalRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *ProposalService {
	return &ProposalService{
		proposalRepo: proposalRepo,
		daos:         daos,
		cache:        cache,
		logger:       logger,
		now:          time.Now,
	}
}

// ProposalDTO is the API representation of a proposal
type ProposalDTO struct {
	ID           string   `json:"id"`
	ProposalID   string   `json:"proposal_id"`
	DaoID        string   `json:"dao_id"`
	TxHash       string   `json:"tx_hash"`
	Proposer     string   `json:"proposer"`
	Description  string   `json:"description"`
	Targets      []string `json:"targets"`
	Values       []string `json:"values"`
	Signatures   []string `json:"signatures"`
	Calldatas    []string `json:"calldatas"`
	StartBlock   int64    `json:"start_block"`
	EndBlock     int64    `json:"end_block"`
	CreatedAt    string   `json:"created_at"`
	EndAt        string   `json:"end_at"`
	Status       string   `json:"status"`
	StoredStatus string   `json:"stored_status"`
	ForVotes     string   `json:"for_votes"`
	AgainstVotes string   `json:"against_votes"`
	AbstainVotes string   `json:"abstain_votes"`
}

// VoteDTO is the API representation of a vote
type VoteDTO struct {
	TxHash      string `json:"tx_hash"`
	LogIndex    int    `json:"log_index"`
	Voter       string `json:"voter"`
	Support     string `json:"support"`
	VotingPower string `json:"voting_power"`
	Reason      string `json:"reason,omitempty"`
	BlockNumber int64  `json:"block_number"`
	Timestamp   string `json:"timestamp"`
}

// ProposalsResponse is the API response for proposal listings
type ProposalsResponse struct {
	Data       []ProposalDTO      `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// ProposalResponse is the API response for a single proposal with its votes
type ProposalResponse struct {
	Data  ProposalDTO `json:"data"`
	Votes []VoteDTO   `json:"votes"`
}

// ProposalQuery selects a page of proposals. An empty Status matches every status.
type ProposalQuery struct {
	Status entities.ProposalStatus
	Limit  int
	Offset int
}

// GetProposals lists proposals newest first, filtered by derived status.
// Status depends on the clock, so listings are not cached.
func (s *ProposalService) GetProposals(ctx context.Context, daoID entities.DaoID, q ProposalQuery) (*ProposalsResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", q.Status)
	}
	q.Limit = clampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	proposals, err := s.proposalRepo.List(ctx, repositories.ProposalFilter{DaoID: daoID})
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	now := s.now().UTC()
	matched := make([]ProposalDTO, 0, len(proposals))
	for i := range proposals {
		dto := s.proposalToDTO(&proposals[i], dao, now)
		if q.Status == "" || dto.Status == string(q.Status) {
			matched = append(matched, dto)
		}
	}

	total := int64(len(matched))
	page := []ProposalDTO{}
	if q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[q.Offset:end]
	}

	return &ProposalsResponse{
		Data:       page,
		Pagination: newPagination(total, q.Limit, q.Offset, len(page)),
	}, nil
}

// GetProposal returns one proposal and its votes, nil when either the DAO or the proposal is unknown
func (s *ProposalService) GetProposal(ctx context.Context, daoID entities.DaoID, proposalID string) (*ProposalResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}

	proposal, err := s.proposalRepo.Get(ctx, daoID, proposalID)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	votes, err := s.proposalRepo.ListVotes(ctx, daoID, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}

	dtos := make([]VoteDTO, len(votes))
	for i, v := range votes {
		dtos[i] = VoteDTO{
			TxHash:      v.TxHash,
			LogIndex:    v.LogIndex,
			Voter:       v.VoterID,
			Support:     v.Support.String(),
			VotingPower: entities.AmountString(v.VotingPower),
			Reason:      v.Reason,
			BlockNumber: v.BlockNumber,
			Timestamp:   formatTime(v.Timestamp),
		}
	}

	return &ProposalResponse{
		Data:  s.proposalToDTO(proposal, dao, s.now().UTC()),
		Votes: dtos,
	}, nil
}

func (s *ProposalService) proposalToDTO(p *entities.Proposal, dao config.DAO, now time.Time) ProposalDTO {
	status := entities.DeriveStatus(p, dao.Governance.VotingPeriodSeconds, dao.Governance.QuorumAmount(), now)
	dto := ProposalDTO{
		ID:           p.ID,
		ProposalID:   p.ProposalID,
		DaoID:        string(p.DaoID),
		TxHash:       p.TxHash,
		Proposer:     p.Proposer,
		Description:  p.Description,
		Targets:      p.Targets,
		Values:       p.Values,
		Signatures:   p.Signatures,
		Calldatas:    p.Calldatas,
		StartBlock:   p.StartBlock,
		EndBlock:     p.EndBlock,
		CreatedAt:    formatTime(p.Timestamp),
		Status:       string(status),
		StoredStatus: string(p.Status),
		ForVotes:     entities.AmountString(p.ForVotes),
		AgainstVotes: entities.AmountString(p.AgainstVotes),
		AbstainVotes: entities.AmountString(p.AbstainVotes),
	}
	if !p.EndTimestamp.IsZero() {
		dto.EndAt = formatTime(p.EndTimestamp)
	}
	return dto
}
