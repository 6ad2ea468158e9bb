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

// PortfolioService builds the governance profile of one account in one DAO
type PortfolioService struct {
	accountRepo  repositories.AccountRepository
	transferRepo repositories.TransferRepository
	daos         *config.Registry
	cache        *cache.RedisCache
	logger       *zap.Logger
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(
	accountRepo repositories.AccountRepository,
	transferRepo repositories.TransferRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *PortfolioService {
	return &PortfolioService{
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		daos:         daos,
		cache:        cache,
		logger:       logger,
	}
}

// AccountDTO is the API representation of an account in one DAO
type AccountDTO struct {
	Address              string  `json:"address"`
	DaoID                string  `json:"dao_id"`
	Balance              string  `json:"balance"`
	BalanceFormatted     string  `json:"balance_formatted"`
	Delegate             string  `json:"delegate,omitempty"`
	VotingPower          string  `json:"voting_power"`
	VotingPowerFormatted string  `json:"voting_power_formatted"`
	DelegationsCount     int64   `json:"delegations_count"`
	VotesCount           int64   `json:"votes_count"`
	ProposalsCount       int64   `json:"proposals_count"`
	FirstVoteAt          *string `json:"first_vote_at,omitempty"`
	LastVoteAt           *string `json:"last_vote_at,omitempty"`
	TransfersIn          int64   `json:"transfers_in"`
	TransfersOut         int64   `json:"transfers_out"`
}

// AccountResponse wraps account data for API response
type AccountResponse struct {
	Data AccountDTO `json:"data"`
}

// GetAccount returns the balance, delegation and participation counters of address.
// Accounts never seen on chain return zero values. Returns nil for an unknown DAO.
func (s *PortfolioService) GetAccount(ctx context.Context, daoID entities.DaoID, address string) (*AccountResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}
	address = entities.NormalizeAddress(address)

	cacheKey := cache.Key(daoID, "account", address)

	var cached AccountResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	balance, err := s.accountRepo.GetAccountBalance(ctx, dao.TokenID(), address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}

	power, err := s.accountRepo.GetAccountPower(ctx, daoID, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get account power: %w", err)
	}

	in, err := s.transferRepo.GetCount(ctx, entities.TransferFilter{DaoID: &daoID, ToAddress: &address})
	if err != nil {
		return nil, fmt.Errorf("failed to count incoming transfers: %w", err)
	}

	out, err := s.transferRepo.GetCount(ctx, entities.TransferFilter{DaoID: &daoID, FromAddress: &address})
	if err != nil {
		return nil, fmt.Errorf("failed to count outgoing transfers: %w", err)
	}

	dto := AccountDTO{
		Address:      address,
		DaoID:        string(daoID),
		TransfersIn:  in,
		TransfersOut: out,
	}

	if balance == nil {
		balance = &entities.AccountBalance{}
	}
	dto.Balance = entities.AmountString(balance.Balance)
	dto.BalanceFormatted = formatUnits(balance.Balance, dao.Decimals)
	dto.Delegate = balance.Delegate

	if power == nil {
		power = entities.NewAccountPower(address, daoID)
	}
	dto.VotingPower = entities.AmountString(power.VotingPower)
	dto.VotingPowerFormatted = formatUnits(power.VotingPower, dao.Decimals)
	dto.DelegationsCount = power.DelegationsCount
	dto.VotesCount = power.VotesCount
	dto.ProposalsCount = power.ProposalsCount
	dto.FirstVoteAt = formatTimePtr(power.FirstVoteTimestamp)
	dto.LastVoteAt = formatTimePtr(power.LastVoteTimestamp)

	response := &AccountResponse{Data: dto}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 30*time.Second); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}
