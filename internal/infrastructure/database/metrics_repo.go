package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Ensure MetricsRepo implements MetricsRepository
var _ repositories.MetricsRepository = (*MetricsRepo)(nil)

// MetricsRepo implements MetricsRepository using PostgreSQL
type MetricsRepo struct {
	db *sqlx.DB
}

// NewMetricsRepo creates a new metrics repository
func NewMetricsRepo(db *sqlx.DB) *MetricsRepo {
	return &MetricsRepo{db: db}
}

// LatestBucketAtOrBefore returns the most recent bucket dated on or before date
func (r *MetricsRepo) LatestBucketAtOrBefore(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, date time.Time) (*entities.DayBucket, error) {
	var row bucketRow
	query := `
		SELECT ` + bucketColumns + ` FROM day_buckets
		WHERE dao_id = $1 AND metric_type = $2 AND date <= $3::DATE
		ORDER BY date DESC
		LIMIT 1
	`

	if err := r.db.GetContext(ctx, &row, query, string(daoID), string(metric), date.UTC().Format("2006-01-02")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}
	return row.toEntity()
}

// ListBuckets returns buckets dated between from and to inclusive
func (r *MetricsRepo) ListBuckets(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, from, to time.Time) ([]entities.DayBucket, error) {
	query := `
		SELECT ` + bucketColumns + ` FROM day_buckets
		WHERE dao_id = $1 AND metric_type = $2 AND date >= $3::DATE AND date <= $4::DATE
		ORDER BY date
	`

	var rows []bucketRow
	err := r.db.SelectContext(ctx, &rows, query, string(daoID), string(metric),
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	result := make([]entities.DayBucket, 0, len(rows))
	for _, row := range rows {
		b, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, nil
}
