package repositories

import (
	"context"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// TokenRepository defines read operations over governance tokens
type TokenRepository interface {
	// GetByDao retrieves the token of a DAO
	GetByDao(ctx context.Context, daoID entities.DaoID) (*entities.Token, error)

	// GetAll retrieves all tokens
	GetAll(ctx context.Context) ([]entities.Token, error)
}
