package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Ensure TokenRepo implements TokenRepository
var _ repositories.TokenRepository = (*TokenRepo)(nil)

// TokenRepo implements TokenRepository using PostgreSQL
type TokenRepo struct {
	db *sqlx.DB
}

// NewTokenRepo creates a new token repository
func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// GetByDao retrieves the token of a DAO
func (r *TokenRepo) GetByDao(ctx context.Context, daoID entities.DaoID) (*entities.Token, error) {
	var row tokenRow
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE dao_id = $1`

	if err := r.db.GetContext(ctx, &row, query, string(daoID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return row.toEntity()
}

// GetAll retrieves all tokens
func (r *TokenRepo) GetAll(ctx context.Context) ([]entities.Token, error) {
	var rows []tokenRow
	query := `SELECT ` + tokenColumns + ` FROM tokens ORDER BY dao_id`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	tokens := make([]entities.Token, 0, len(rows))
	for _, row := range rows {
		t, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}

	return tokens, nil
}
