package repositories

import (
	"context"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// TokenStatsResult holds aggregated transfer statistics for a DAO token
type TokenStatsResult struct {
	TotalTransfers  int64
	UniqueFromAddrs int64
	UniqueToAddrs   int64
	TotalVolume     string
	Transfers24h    int64
	Volume24h       string
	Transfers7d     int64
	Volume7d        string
	FirstTransferAt *time.Time
	LastTransferAt  *time.Time
}

// TransferRepository defines read operations over transfer facts
type TransferRepository interface {
	// GetByFilter retrieves transfers matching the given filter
	GetByFilter(ctx context.Context, filter entities.TransferFilter) ([]entities.Transfer, error)

	// GetCount returns the count of transfers matching the filter
	GetCount(ctx context.Context, filter entities.TransferFilter) (int64, error)

	// GetTokenStats returns aggregated transfer statistics for a DAO
	GetTokenStats(ctx context.Context, daoID entities.DaoID, now time.Time) (*TokenStatsResult, error)
}
