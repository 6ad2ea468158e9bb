package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
)

// SupplyService answers historical supply questions from daily buckets
type SupplyService struct {
	tokenRepo   repositories.TokenRepository
	metricsRepo repositories.MetricsRepository
	accountRepo repositories.AccountRepository
	daos        *config.Registry
	cache       *cache.RedisCache
	logger      *zap.Logger
	now         func() time.Time
}

// NewSupplyService creates a new supply service
func NewSupplyService(
	tokenRepo repositories.TokenRepository,
	metricsRepo repositories.MetricsRepository,
	accountRepo repositories.AccountRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *SupplyService {
	return &SupplyService{
		tokenRepo:   tokenRepo,
		metricsRepo: metricsRepo,
		accountRepo: accountRepo,
		daos:        daos,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// SupplyComparisonDTO compares a metric now against N days ago.
// ChangeRate is fixed point with 10^decimals as one; ChangeRateDecimal is the same value in plain units.
type SupplyComparisonDTO struct {
	DaoID             string `json:"dao_id"`
	Metric            string `json:"metric"`
	Days              int    `json:"days"`
	OldValue          string `json:"old_value"`
	CurrentValue      string `json:"current_value"`
	ChangeRate        string `json:"change_rate"`
	ChangeRateDecimal string `json:"change_rate_decimal"`
}

// SupplyComparisonResponse is the API response for supply comparisons
type SupplyComparisonResponse struct {
	Data SupplyComparisonDTO `json:"data"`
}

// ActiveSupplyDTO is the voting power of accounts that voted recently
type ActiveSupplyDTO struct {
	DaoID                 string `json:"dao_id"`
	Days                  int    `json:"days"`
	ActiveSupply          string `json:"active_supply"`
	ActiveSupplyFormatted string `json:"active_supply_formatted"`
}

// ActiveSupplyResponse is the API response for active supply queries
type ActiveSupplyResponse struct {
	Data ActiveSupplyDTO `json:"data"`
}

// DayBucketDTO is one day of a metric series
type DayBucketDTO struct {
	Date    string `json:"date"`
	Open    string `json:"open"`
	Close   string `json:"close"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Average string `json:"average"`
	Volume  string `json:"volume"`
	Count   int64  `json:"count"`
}

// DailyMetricsResponse is the API response for metric series
type DailyMetricsResponse struct {
	DaoID  string         `json:"dao_id"`
	Metric string         `json:"metric"`
	Data   []DayBucketDTO `json:"data"`
}

// GetSupplyComparison compares the current value of metric with its close N days ago.
// Returns nil when the DAO is not configured.
func (s *SupplyService) GetSupplyComparison(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, daysAgo int) (*SupplyComparisonResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if daysAgo < 0 {
		daysAgo = 0
	}

	now := s.now().UTC()
	cacheKey := cache.Key(daoID, "compare", metric, daysAgo, entities.DayStart(now).Format(dateLayout))

	var cached SupplyComparisonResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	current, err := s.currentValue(ctx, daoID, metric, now)
	if err != nil {
		return nil, err
	}

	old := new(big.Int)
	past := entities.DayStart(now.AddDate(0, 0, -daysAgo))
	bucket, err := s.metricsRepo.LatestBucketAtOrBefore(ctx, daoID, metric, past)
	switch {
	case err == nil:
		old = entities.CopyAmount(bucket.Close)
	case errors.Is(err, entities.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to get historical bucket: %w", err)
	}

	rate := changeRate(old, current, dao.Decimals)
	response := &SupplyComparisonResponse{
		Data: SupplyComparisonDTO{
			DaoID:             string(daoID),
			Metric:            string(metric),
			Days:              daysAgo,
			OldValue:          old.String(),
			CurrentValue:      current.String(),
			ChangeRate:        rate.String(),
			ChangeRateDecimal: formatUnits(rate, dao.Decimals),
		},
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// currentValue reads the live token counter, falling back to the latest bucket close
func (s *SupplyService) currentValue(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, now time.Time) (*big.Int, error) {
	token, err := s.tokenRepo.GetByDao(ctx, daoID)
	if err != nil && !errors.Is(err, entities.ErrNotFound) {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token != nil {
		return token.Field(metric.TokenField())
	}

	bucket, err := s.metricsRepo.LatestBucketAtOrBefore(ctx, daoID, metric, entities.DayStart(now))
	if errors.Is(err, entities.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bucket: %w", err)
	}
	return entities.CopyAmount(bucket.Close), nil
}

// GetActiveSupply sums the voting power of accounts that voted in the last N days
func (s *SupplyService) GetActiveSupply(ctx context.Context, daoID entities.DaoID, daysAgo int) (*ActiveSupplyResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	if daysAgo <= 0 {
		daysAgo = 90
	}

	cacheKey := cache.Key(daoID, "active_supply", daysAgo)

	var cached ActiveSupplyResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	since := s.now().UTC().AddDate(0, 0, -daysAgo)
	active, err := s.accountRepo.ActiveSupply(ctx, daoID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get active supply: %w", err)
	}

	response := &ActiveSupplyResponse{
		Data: ActiveSupplyDTO{
			DaoID:                 string(daoID),
			Days:                  daysAgo,
			ActiveSupply:          entities.AmountString(active),
			ActiveSupplyFormatted: formatUnits(active, dao.Decimals),
		},
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 5*time.Minute); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetDailyMetrics returns the buckets of metric between from and to (inclusive, UTC days).
// A zero from defaults to 30 days before to; a zero to defaults to today.
func (s *SupplyService) GetDailyMetrics(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, from, to time.Time) (*DailyMetricsResponse, error) {
	if _, ok := s.daos.Get(daoID); !ok {
		return nil, nil
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	if to.IsZero() {
		to = s.now()
	}
	to = entities.DayStart(to)
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	from = entities.DayStart(from)
	if from.After(to) {
		return nil, fmt.Errorf("from %s is after to %s", from.Format(dateLayout), to.Format(dateLayout))
	}

	cacheKey := cache.Key(daoID, "metrics", metric, from.Format(dateLayout), to.Format(dateLayout))

	var cached DailyMetricsResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	buckets, err := s.metricsRepo.ListBuckets(ctx, daoID, metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	data := make([]DayBucketDTO, len(buckets))
	for i, b := range buckets {
		data[i] = DayBucketDTO{
			Date:    b.Date.UTC().Format(dateLayout),
			Open:    entities.AmountString(b.Open),
			Close:   entities.AmountString(b.Close),
			High:    entities.AmountString(b.High),
			Low:     entities.AmountString(b.Low),
			Average: entities.AmountString(b.Average),
			Volume:  entities.AmountString(b.Volume),
			Count:   b.Count,
		}
	}

	response := &DailyMetricsResponse{DaoID: string(daoID), Metric: string(metric), Data: data}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}
