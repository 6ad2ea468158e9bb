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

// Ensure IndexerStateRepo implements IndexerStateRepository
var _ repositories.IndexerStateRepository = (*IndexerStateRepo)(nil)

// IndexerStateRepo implements IndexerStateRepository using PostgreSQL
type IndexerStateRepo struct {
	db *sqlx.DB
}

// NewIndexerStateRepo creates a new indexer state repository
func NewIndexerStateRepo(db *sqlx.DB) *IndexerStateRepo {
	return &IndexerStateRepo{db: db}
}

// Get retrieves the checkpoint of a DAO
func (r *IndexerStateRepo) Get(ctx context.Context, daoID entities.DaoID) (*entities.IndexerState, error) {
	var state entities.IndexerState
	query := `
		SELECT dao_id, last_indexed_block, last_log_index, events_processed, events_skipped, updated_at
		FROM indexer_state WHERE dao_id = $1
	`

	if err := r.db.GetContext(ctx, &state, query, string(daoID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get indexer state: %w", err)
	}

	return &state, nil
}

// Upsert creates or updates the checkpoint
func (r *IndexerStateRepo) Upsert(ctx context.Context, state *entities.IndexerState) error {
	query := `
		INSERT INTO indexer_state (dao_id, last_indexed_block, last_log_index, events_processed, events_skipped)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dao_id) DO UPDATE SET
			last_indexed_block = EXCLUDED.last_indexed_block,
			last_log_index = EXCLUDED.last_log_index,
			events_processed = EXCLUDED.events_processed,
			events_skipped = EXCLUDED.events_skipped,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		string(state.DaoID),
		state.LastIndexedBlock,
		state.LastLogIndex,
		state.EventsProcessed,
		state.EventsSkipped,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert indexer state: %w", err)
	}

	return nil
}

// Advance moves the checkpoint to blockNumber and adds the batch counters.
// The checkpoint never moves backwards.
func (r *IndexerStateRepo) Advance(ctx context.Context, daoID entities.DaoID, blockNumber int64, processed, skipped int64) error {
	query := `
		INSERT INTO indexer_state (dao_id, last_indexed_block, events_processed, events_skipped)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dao_id) DO UPDATE SET
			last_indexed_block = GREATEST(indexer_state.last_indexed_block, EXCLUDED.last_indexed_block),
			events_processed = indexer_state.events_processed + EXCLUDED.events_processed,
			events_skipped = indexer_state.events_skipped + EXCLUDED.events_skipped,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, string(daoID), blockNumber, processed, skipped); err != nil {
		return fmt.Errorf("failed to advance indexer state: %w", err)
	}

	return nil
}
