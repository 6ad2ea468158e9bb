package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
)

// StatsService provides business logic for transfer statistics
type StatsService struct {
	transferRepo repositories.TransferRepository
	accountRepo  repositories.AccountRepository
	daos         *config.Registry
	cache        *cache.RedisCache
	logger       *zap.Logger
	now          func() time.Time
}

// NewStatsService creates a new stats service
func NewStatsService(
	transferRepo repositories.TransferRepository,
	accountRepo repositories.AccountRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		transferRepo: transferRepo,
		accountRepo:  accountRepo,
		daos:         daos,
		cache:        cache,
		logger:       logger,
		now:          time.Now,
	}
}

// TokenStats is the API representation of token transfer statistics
type TokenStats struct {
	DaoID               string `json:"dao_id"`
	TokenAddress        string `json:"token_address"`
	TotalTransfers      int64  `json:"total_transfers"`
	UniqueFromAddresses int64  `json:"unique_from_addresses"`
	UniqueToAddresses   int64  `json:"unique_to_addresses"`
	HolderCount         int64  `json:"holder_count"`
	TotalVolume         string `json:"total_volume"`
	Transfers24h        int64  `json:"transfers_24h"`
	Volume24h           string `json:"volume_24h"`
	Transfers7d         int64  `json:"transfers_7d"`
	Volume7d            string `json:"volume_7d"`
	FirstTransferAt     string `json:"first_transfer_at"`
	LastTransferAt      string `json:"last_transfer_at"`
}

// TokenStatsResponse is the API response for token stats queries
type TokenStatsResponse struct {
	Data TokenStats `json:"data"`
}

// GetTokenStats retrieves transfer statistics for a DAO token
func (s *StatsService) GetTokenStats(ctx context.Context, daoID entities.DaoID) (*TokenStatsResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}

	cacheKey := cache.Key(daoID, "stats")

	var cached TokenStatsResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	stats, err := s.transferRepo.GetTokenStats(ctx, daoID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get token stats: %w", err)
	}

	// only the total is needed
	_, holders, err := s.accountRepo.ListHolders(ctx, repositories.HolderFilter{TokenID: dao.TokenID(), Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to count holders: %w", err)
	}

	response := &TokenStatsResponse{
		Data: TokenStats{
			DaoID:               string(daoID),
			TokenAddress:        dao.TokenID(),
			TotalTransfers:      stats.TotalTransfers,
			UniqueFromAddresses: stats.UniqueFromAddrs,
			UniqueToAddresses:   stats.UniqueToAddrs,
			HolderCount:         holders,
			TotalVolume:         stats.TotalVolume,
			Transfers24h:        stats.Transfers24h,
			Volume24h:           stats.Volume24h,
			Transfers7d:         stats.Transfers7d,
			Volume7d:            stats.Volume7d,
		},
	}

	if stats.FirstTransferAt != nil {
		response.Data.FirstTransferAt = formatTime(*stats.FirstTransferAt)
	}
	if stats.LastTransferAt != nil {
		response.Data.LastTransferAt = formatTime(*stats.LastTransferAt)
	}

	// Cache the response with shorter TTL (60 seconds for stats)
	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 60*time.Second); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}
