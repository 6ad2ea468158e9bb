package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
)

// HoldersService provides business logic for token holders
type HoldersService struct {
	accountRepo repositories.AccountRepository
	daos        *config.Registry
	cache       *cache.RedisCache
	logger      *zap.Logger
}

// NewHoldersService creates a new holders service
func NewHoldersService(
	accountRepo repositories.AccountRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *HoldersService {
	return &HoldersService{
		accountRepo: accountRepo,
		daos:        daos,
		cache:       cache,
		logger:      logger,
	}
}

// HolderDTO is the API representation of a holder's balance
type HolderDTO struct {
	Address          string `json:"address"`
	Balance          string `json:"balance"`
	BalanceFormatted string `json:"balance_formatted"`
	Delegate         string `json:"delegate,omitempty"`
	Rank             int    `json:"rank"`
}

// HoldersResponse is the API response for holder listings
type HoldersResponse struct {
	Data       []HolderDTO        `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// HistoricalBalanceDTO is the balance of one address at a block.
// BlockNumber is the block of the snapshot used, nil when the address had no balance yet.
type HistoricalBalanceDTO struct {
	Address     string  `json:"address"`
	Balance     string  `json:"balance"`
	BlockNumber *int64  `json:"block_number"`
	Timestamp   *string `json:"timestamp"`
}

// HistoricalBalancesResponse is the API response for point-in-time balances
type HistoricalBalancesResponse struct {
	BlockNumber int64                  `json:"block_number"`
	Data        []HistoricalBalanceDTO `json:"data"`
}

// HolderQuery selects a page of holders
type HolderQuery struct {
	FromDate *time.Time
	Asc      bool
	Limit    int
	Offset   int
}

// GetHolders lists accounts with a positive balance, largest first by default
func (s *HoldersService) GetHolders(ctx context.Context, daoID entities.DaoID, q HolderQuery) (*HoldersResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	q.Limit = clampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	from := ""
	if q.FromDate != nil {
		from = q.FromDate.UTC().Format(timeLayout)
	}
	cacheKey := cache.Key(daoID, "holders", from, q.Asc, q.Limit, q.Offset)

	var cached HoldersResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	holders, total, err := s.accountRepo.ListHolders(ctx, repositories.HolderFilter{
		TokenID:  dao.TokenID(),
		FromDate: q.FromDate,
		Desc:     !q.Asc,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list holders: %w", err)
	}

	data := make([]HolderDTO, len(holders))
	for i, h := range holders {
		data[i] = HolderDTO{
			Address:          h.AccountID,
			Balance:          entities.AmountString(h.Balance),
			BalanceFormatted: formatUnits(h.Balance, dao.Decimals),
			Delegate:         h.Delegate,
			Rank:             q.Offset + i + 1,
		}
	}

	response := &HoldersResponse{
		Data:       data,
		Pagination: newPagination(total, q.Limit, q.Offset, len(data)),
	}

	// Holders move with every transfer, keep them short-lived
	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, time.Minute); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetHistoricalBalances resolves each address's balance from the latest snapshot at or before block.
// Addresses without a snapshot report zero.
func (s *HoldersService) GetHistoricalBalances(ctx context.Context, daoID entities.DaoID, addresses []string, block int64) (*HistoricalBalancesResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	addresses = normalizeAddresses(addresses)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("at least one address is required")
	}
	if len(addresses) > MaxHistoricalAddresses {
		return nil, fmt.Errorf("at most %d addresses per request", MaxHistoricalAddresses)
	}
	if block < 0 {
		return nil, fmt.Errorf("invalid block number %d", block)
	}

	// Past blocks never change, so the key only depends on the inputs
	cacheKey := cache.Key(daoID, "balances", block, strings.Join(addresses, ","))

	var cached HistoricalBalancesResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	rows, err := s.accountRepo.BalancesAtBlock(ctx, dao.TokenID(), addresses, block)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical balances: %w", err)
	}

	found := make(map[string]entities.BalanceHistory, len(rows))
	for _, r := range rows {
		found[r.AccountID] = r
	}

	data := make([]HistoricalBalanceDTO, len(addresses))
	for i, addr := range addresses {
		dto := HistoricalBalanceDTO{Address: addr, Balance: "0"}
		if r, ok := found[addr]; ok {
			blockNumber := r.BlockNumber
			dto.Balance = entities.AmountString(r.Balance)
			dto.BlockNumber = &blockNumber
			dto.Timestamp = formatTimePtr(&r.Timestamp)
		}
		data[i] = dto
	}

	response := &HistoricalBalancesResponse{BlockNumber: block, Data: data}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}
