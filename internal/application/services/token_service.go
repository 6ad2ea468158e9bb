package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
)

// TokenService provides business logic for token supply queries
type TokenService struct {
	tokenRepo repositories.TokenRepository
	daos      *config.Registry
	cache     *cache.RedisCache
	logger    *zap.Logger
}

// NewTokenService creates a new token service
func NewTokenService(
	tokenRepo repositories.TokenRepository,
	daos *config.Registry,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		daos:      daos,
		cache:     cache,
		logger:    logger,
	}
}

// TokenDTO is the API representation of a governance token and its supply counters
type TokenDTO struct {
	DaoID             string `json:"dao_id"`
	Address           string `json:"address"`
	Decimals          int    `json:"decimals"`
	TotalSupply       string `json:"total_supply"`
	CirculatingSupply string `json:"circulating_supply"`
	DelegatedSupply   string `json:"delegated_supply"`
	CexSupply         string `json:"cex_supply"`
	DexSupply         string `json:"dex_supply"`
	LendingSupply     string `json:"lending_supply"`
	Treasury          string `json:"treasury"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// TokenListResponse is the API response for token list queries
type TokenListResponse struct {
	Data []TokenDTO `json:"data"`
}

// TokenResponse is the API response for single token queries
type TokenResponse struct {
	Data TokenDTO `json:"data"`
}

// GetAllTokens lists the token of every configured DAO. DAOs with no indexed
// events yet report zero counters.
func (s *TokenService) GetAllTokens(ctx context.Context) (*TokenListResponse, error) {
	tokens, err := s.tokenRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	byDao := make(map[entities.DaoID]*entities.Token, len(tokens))
	for i := range tokens {
		byDao[tokens[i].DaoID] = &tokens[i]
	}

	daos := s.daos.All()
	dtos := make([]TokenDTO, 0, len(daos))
	for _, dao := range daos {
		t, ok := byDao[dao.ID]
		if !ok {
			t = entities.NewToken(dao.TokenID(), dao.ID, dao.Decimals)
		}
		dtos = append(dtos, tokenToDTO(t))
	}

	return &TokenListResponse{Data: dtos}, nil
}

// GetByDao retrieves the token of one DAO. Returns nil when the DAO is not configured.
func (s *TokenService) GetByDao(ctx context.Context, daoID entities.DaoID) (*TokenResponse, error) {
	dao, ok := s.daos.Get(daoID)
	if !ok {
		return nil, nil
	}

	cacheKey := cache.Key(daoID, "token")

	var cached TokenResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	token, err := s.tokenRepo.GetByDao(ctx, daoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token == nil {
		token = entities.NewToken(dao.TokenID(), dao.ID, dao.Decimals)
	}

	response := &TokenResponse{Data: tokenToDTO(token)}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// tokenToDTO converts a token entity to a DTO
func tokenToDTO(t *entities.Token) TokenDTO {
	dto := TokenDTO{
		DaoID:             string(t.DaoID),
		Address:           t.ID,
		Decimals:          t.Decimals,
		TotalSupply:       entities.AmountString(t.TotalSupply),
		CirculatingSupply: entities.AmountString(t.CirculatingSupply),
		DelegatedSupply:   entities.AmountString(t.DelegatedSupply),
		CexSupply:         entities.AmountString(t.CexSupply),
		DexSupply:         entities.AmountString(t.DexSupply),
		LendingSupply:     entities.AmountString(t.LendingSupply),
		Treasury:          entities.AmountString(t.Treasury),
	}
	if !t.UpdatedAt.IsZero() {
		dto.UpdatedAt = formatTime(t.UpdatedAt)
	}
	return dto
}
