package accounting

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Accumulator folds metric observations into daily buckets
type Accumulator struct {
	tx       repositories.LedgerTx
	ordering entities.BucketOrdering
}

// NewAccumulator binds an accumulator to tx
func NewAccumulator(tx repositories.LedgerTx, ordering entities.BucketOrdering) Accumulator {
	return Accumulator{tx: tx, ordering: ordering}
}

// Observe records newValue for the UTC day of timestamp. The bucket is chosen by
// event time, so late events still land in their own day.
func (a Accumulator) Observe(ctx context.Context, metric entities.MetricType, daoID entities.DaoID, tokenID string, timestamp time.Time, newValue, previousValue *big.Int) error {
	o := entities.Observation{
		MetricType: metric,
		DaoID:      daoID,
		TokenID:    tokenID,
		Timestamp:  timestamp,
		Value:      newValue,
		Previous:   previousValue,
	}
	if _, err := a.tx.AccumulateBucket(ctx, o, a.ordering); err != nil {
		return fmt.Errorf("failed to accumulate %s bucket: %w", metric, err)
	}
	bucketObservations.WithLabelValues(string(daoID), string(metric)).Inc()
	return nil
}

// ObserveDelta is Observe for a counter mutation
func (a Accumulator) ObserveDelta(ctx context.Context, metric entities.MetricType, daoID entities.DaoID, tokenID string, timestamp time.Time, d repositories.Delta) error {
	return a.Observe(ctx, metric, daoID, tokenID, timestamp, d.After, d.Before)
}
