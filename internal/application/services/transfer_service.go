package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
)

// TransferService provides business logic for transfer queries
type TransferService struct {
	transferRepo repositories.TransferRepository
	daos         *config.Registry
	cache        *cache.RedisCache
	logger       *zap.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	transferRepo repositories.TransferRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		transferRepo: transferRepo,
		daos:         daos,
		cache:        cache,
		logger:       logger,
	}
}

// TransferResponse is the API response for transfer queries
type TransferResponse struct {
	Transfers []TransferDTO `json:"transfers"`
	Total     int64         `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
	HasMore   bool          `json:"has_more"`
}

// TransferDTO is the API representation of a transfer
type TransferDTO struct {
	TxHash         string `json:"tx_hash"`
	LogIndex       int    `json:"log_index"`
	BlockNumber    int64  `json:"block_number"`
	BlockTimestamp string `json:"block_timestamp"`
	TokenAddress   string `json:"token_address"`
	FromAddress    string `json:"from_address"`
	ToAddress      string `json:"to_address"`
	Value          string `json:"value"`
	IsCex          bool   `json:"is_cex"`
	IsDex          bool   `json:"is_dex"`
	IsLending      bool   `json:"is_lending"`
	IsTreasury     bool   `json:"is_treasury"`
	IsTotal        bool   `json:"is_total"`
}

// GetTransactions retrieves the transfers of a DAO token matching filter.
// Returns nil when the DAO is not configured.
func (s *TransferService) GetTransactions(ctx context.Context, daoID entities.DaoID, filter entities.TransferFilter) (*TransferResponse, error) {
	if _, ok := s.daos.Get(daoID); !ok {
		return nil, nil
	}
	filter.DaoID = &daoID
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.SortBy == "" {
		filter.SortBy = entities.SortByTimestamp
	}

	cacheKey := s.generateCacheKey(daoID, filter)

	var cached TransferResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	transfers, err := s.transferRepo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}

	total, err := s.transferRepo.GetCount(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer count: %w", err)
	}

	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = TransferDTO{
			TxHash:         t.TxHash,
			LogIndex:       t.LogIndex,
			BlockNumber:    t.BlockNumber,
			BlockTimestamp: formatTime(t.BlockTimestamp),
			TokenAddress:   t.TokenAddress,
			FromAddress:    t.FromAddress,
			ToAddress:      t.ToAddress,
			Value:          entities.AmountString(t.Value),
			IsCex:          t.IsCex,
			IsDex:          t.IsDex,
			IsLending:      t.IsLending,
			IsTreasury:     t.IsTreasury,
			IsTotal:        t.IsTotal,
		}
	}

	response := &TransferResponse{
		Transfers: dtos,
		Total:     total,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
		HasMore:   int64(filter.Offset+len(transfers)) < total,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// generateCacheKey generates a unique cache key for the filter
func (s *TransferService) generateCacheKey(daoID entities.DaoID, filter entities.TransferFilter) string {
	var parts []string

	addStr := func(name string, v *string) {
		if v != nil {
			parts = append(parts, name+":"+*v)
		}
	}
	addBool := func(name string, v *bool) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s:%t", name, *v))
		}
	}

	addStr("from", filter.FromAddress)
	addStr("to", filter.ToAddress)
	addStr("addr", filter.Address)
	if filter.FromBlock != nil {
		parts = append(parts, fmt.Sprintf("fb:%d", *filter.FromBlock))
	}
	if filter.ToBlock != nil {
		parts = append(parts, fmt.Sprintf("tb:%d", *filter.ToBlock))
	}
	if filter.FromTime != nil {
		parts = append(parts, "ft:"+formatTime(*filter.FromTime))
	}
	if filter.ToTime != nil {
		parts = append(parts, "tt:"+formatTime(*filter.ToTime))
	}
	if filter.MinAmount != nil {
		parts = append(parts, "min:"+filter.MinAmount.String())
	}
	if filter.MaxAmount != nil {
		parts = append(parts, "max:"+filter.MaxAmount.String())
	}
	addBool("cex", filter.IsCex)
	addBool("dex", filter.IsDex)
	addBool("lending", filter.IsLending)
	addBool("treasury", filter.IsTreasury)
	addBool("total", filter.IsTotal)

	parts = append(parts, fmt.Sprintf("s:%s:%t:l:%d:o:%d", filter.SortBy, filter.SortDesc, filter.Limit, filter.Offset))

	key := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(key))
	return cache.Key(daoID, "transfers", hex.EncodeToString(hash[:8]))
}
