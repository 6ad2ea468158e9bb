package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Ensure ProposalRepo implements ProposalRepository
var _ repositories.ProposalRepository = (*ProposalRepo)(nil)

// ProposalRepo implements ProposalRepository using PostgreSQL
type ProposalRepo struct {
	db *sqlx.DB
}

// NewProposalRepo creates a new proposal repository
func NewProposalRepo(db *sqlx.DB) *ProposalRepo {
	return &ProposalRepo{db: db}
}

// List returns proposals newest first
func (r *ProposalRepo) List(ctx context.Context, filter repositories.ProposalFilter) ([]entities.Proposal, error) {
	var b conditionBuilder
	b.add("dao_id = ?", string(filter.DaoID))
	query := fmt.Sprintf(`
		SELECT %s FROM proposals
		%s
		ORDER BY timestamp DESC, proposal_id
		%s
	`, proposalColumns, b.where(), limitClause(&b, filter.Limit, filter.Offset))

	var rows []proposalRow
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	result := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		p, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, nil
}

// Get returns one proposal
func (r *ProposalRepo) Get(ctx context.Context, daoID entities.DaoID, proposalID string) (*entities.Proposal, error) {
	var row proposalRow
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, entities.ProposalKey(daoID, proposalID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return row.toEntity()
}

// ListVotes returns the votes cast on a proposal in chain order
func (r *ProposalRepo) ListVotes(ctx context.Context, daoID entities.DaoID, proposalID string) ([]entities.Vote, error) {
	query := `
		SELECT tx_hash, log_index, dao_id, proposal_id, voter_id, support,
			   voting_power::TEXT AS voting_power, reason, block_number, timestamp
		FROM votes
		WHERE dao_id = $1 AND proposal_id = $2
		ORDER BY block_number, log_index
	`

	var rows []voteRow
	if err := r.db.SelectContext(ctx, &rows, query, string(daoID), proposalID); err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}

	result := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		v, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
