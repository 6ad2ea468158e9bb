package repositories

import (
	"context"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// MetricsRepository defines read operations over daily metric buckets
type MetricsRepository interface {
	// LatestBucketAtOrBefore returns the most recent bucket whose date is <= date.
	// Returns entities.ErrNotFound when none exists.
	LatestBucketAtOrBefore(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, date time.Time) (*entities.DayBucket, error)

	// ListBuckets returns buckets with from <= date <= to ordered by date
	ListBuckets(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, from, to time.Time) ([]entities.DayBucket, error)
}
