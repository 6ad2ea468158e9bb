package repositories

import (
	"context"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// IndexerStateRepository defines the interface for indexer checkpoint operations
type IndexerStateRepository interface {
	// Get retrieves the checkpoint for a DAO, nil when the DAO was never indexed
	Get(ctx context.Context, daoID entities.DaoID) (*entities.IndexerState, error)

	// Upsert creates or updates the checkpoint
	Upsert(ctx context.Context, state *entities.IndexerState) error

	// Advance moves the checkpoint forward and adds the batch counters
	Advance(ctx context.Context, daoID entities.DaoID, blockNumber int64, processed, skipped int64) error
}
