package repositories

import (
	"context"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// ProposalFilter selects proposals. Status filtering happens after status derivation
// in the query layer, so it is not part of the filter.
type ProposalFilter struct {
	DaoID  entities.DaoID
	Limit  int
	Offset int
}

// ProposalRepository defines read operations over proposals and votes
type ProposalRepository interface {
	// List returns proposals newest first
	List(ctx context.Context, filter ProposalFilter) ([]entities.Proposal, error)

	// Get returns one proposal or entities.ErrNotFound
	Get(ctx context.Context, daoID entities.DaoID, proposalID string) (*entities.Proposal, error)

	// ListVotes returns the votes cast on a proposal ordered by block
	ListVotes(ctx context.Context, daoID entities.DaoID, proposalID string) ([]entities.Vote, error)
}
