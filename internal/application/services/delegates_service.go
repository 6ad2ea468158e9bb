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

// DelegatesService provides business logic for delegates and voting power
type DelegatesService struct {
	accountRepo repositories.AccountRepository
	daos        *config.Registry
	cache       *cache.RedisCache
	logger      *zap.Logger
}

// NewDelegatesService creates a new delegates service
func NewDelegatesService(
	accountRepo repositories.AccountRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *DelegatesService {
	return &DelegatesService{
		accountRepo: accountRepo,
		daos:        daos,
		cache:       cache,
		logger:      logger,
	}
}

// DelegateDTO is the API representation of a delegate
type DelegateDTO struct {
	Address              string  `json:"address"`
	VotingPower          string  `json:"voting_power"`
	VotingPowerFormatted string  `json:"voting_power_formatted"`
	DelegationsCount     int64   `json:"delegations_count"`
	VotesCount           int64   `json:"votes_count"`
	ProposalsCount       int64   `json:"proposals_count"`
	FirstVoteAt          *string `json:"first_vote_at,omitempty"`
	LastVoteAt           *string `json:"last_vote_at,omitempty"`
}

// DelegatesResponse is the API response for delegate listings
type DelegatesResponse struct {
	Data       []DelegateDTO      `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// HistoricalVotingPowerDTO is the voting power of one address at a block
type HistoricalVotingPowerDTO struct {
	Address     string  `json:"address"`
	VotingPower string  `json:"voting_power"`
	BlockNumber *int64  `json:"block_number"`
	Timestamp   *string `json:"timestamp"`
}

// HistoricalVotingPowerResponse is the API response for point-in-time voting power
type HistoricalVotingPowerResponse struct {
	BlockNumber int64                      `json:"block_number"`
	Data        []HistoricalVotingPowerDTO `json:"data"`
}

// DelegateQuery selects a page of delegates
type DelegateQuery struct {
	FromDate *time.Time
	OrderBy  repositories.DelegateOrder
	Asc      bool
	Limit    int
	Offset   int
}

// GetDelegates lists accounts with governance records ordered by q.OrderBy (voting power by default)
func (s *DelegatesService) GetDelegates(ctx context.Context, daoID entities.DaoID, q DelegateQuery) (*DelegatesResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	if q.OrderBy == "" {
		q.OrderBy = repositories.OrderByVotingPower
	}
	if !q.OrderBy.Valid() {
		return nil, fmt.Errorf("unknown order %q", q.OrderBy)
	}
	q.Limit = clampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}

	from := ""
	if q.FromDate != nil {
		from = q.FromDate.UTC().Format(timeLayout)
	}
	cacheKey := cache.Key(daoID, "delegates", from, q.OrderBy, q.Asc, q.Limit, q.Offset)

	var cached DelegatesResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	powers, total, err := s.accountRepo.ListDelegates(ctx, repositories.DelegateFilter{
		DaoID:    daoID,
		FromDate: q.FromDate,
		OrderBy:  q.OrderBy,
		Desc:     !q.Asc,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list delegates: %w", err)
	}

	data := make([]DelegateDTO, len(powers))
	for i := range powers {
		data[i] = delegateToDTO(&powers[i], dao.Decimals)
	}

	response := &DelegatesResponse{
		Data:       data,
		Pagination: newPagination(total, q.Limit, q.Offset, len(data)),
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, time.Minute); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetHistoricalVotingPower resolves each address's voting power from the latest snapshot at or before block
func (s *DelegatesService) GetHistoricalVotingPower(ctx context.Context, daoID entities.DaoID, addresses []string, block int64) (*HistoricalVotingPowerResponse, error) {
	if _, ok := s.daos.Get(daoID); !ok {
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

	cacheKey := cache.Key(daoID, "voting_power", block, strings.Join(addresses, ","))

	var cached HistoricalVotingPowerResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	rows, err := s.accountRepo.VotingPowerAtBlock(ctx, daoID, addresses, block)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical voting power: %w", err)
	}

	found := make(map[string]entities.VotingPowerHistory, len(rows))
	for _, r := range rows {
		found[r.AccountID] = r
	}

	data := make([]HistoricalVotingPowerDTO, len(addresses))
	for i, addr := range addresses {
		dto := HistoricalVotingPowerDTO{Address: addr, VotingPower: "0"}
		if r, ok := found[addr]; ok {
			blockNumber := r.BlockNumber
			dto.VotingPower = entities.AmountString(r.VotingPower)
			dto.BlockNumber = &blockNumber
			dto.Timestamp = formatTimePtr(&r.Timestamp)
		}
		data[i] = dto
	}

	response := &HistoricalVotingPowerResponse{BlockNumber: block, Data: data}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

func delegateToDTO(p *entities.AccountPower, decimals int) DelegateDTO {
	return DelegateDTO{
		Address:              p.AccountID,
		VotingPower:          entities.AmountString(p.VotingPower),
		VotingPowerFormatted: formatUnits(p.VotingPower, decimals),
		DelegationsCount:     p.DelegationsCount,
		VotesCount:           p.VotesCount,
		ProposalsCount:       p.ProposalsCount,
		FirstVoteAt:          formatTimePtr(p.FirstVoteTimestamp),
		LastVoteAt:           formatTimePtr(p.LastVoteTimestamp),
	}
}
