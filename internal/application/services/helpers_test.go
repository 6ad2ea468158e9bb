package services

import (
	"math/big"
	"time"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func testRegistry() *config.Registry {
	return config.NewRegistry([]config.DAO{testutil.CreateTestDAO()})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func amount(v int64) *big.Int {
	return big.NewInt(v)
}

func testBucket(date time.Time, metric entities.MetricType, close int64) *entities.DayBucket {
	return &entities.DayBucket{
		Date:       entities.DayStart(date),
		MetricType: metric,
		DaoID:      entities.DaoENS,
		TokenID:    testutil.TokenAddress,
		Open:       amount(close),
		Close:      amount(close),
		Low:        amount(close),
		High:       amount(close),
		Average:    amount(close),
		Volume:     amount(0),
		Count:      1,
	}
}
