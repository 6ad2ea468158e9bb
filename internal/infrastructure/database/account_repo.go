package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Ensure AccountRepo implements AccountRepository
var _ repositories.AccountRepository = (*AccountRepo)(nil)

// AccountRepo implements AccountRepository using PostgreSQL
type AccountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

var delegateOrderColumns = map[repositories.DelegateOrder]string{
	repositories.OrderByVotingPower: "voting_power",
	repositories.OrderByDelegations: "delegations_count",
	repositories.OrderByVotes:       "votes_count",
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

func limitClause(b *conditionBuilder, limit, offset int) string {
	l := "ALL"
	if limit > 0 {
		l = b.next(limit)
	}
	return fmt.Sprintf("LIMIT %s OFFSET %s", l, b.next(offset))
}

// ListDelegates returns accounts with voting power records
func (r *AccountRepo) ListDelegates(ctx context.Context, filter repositories.DelegateFilter) ([]entities.AccountPower, int64, error) {
	var b conditionBuilder
	b.add("dao_id = ?", string(filter.DaoID))
	if filter.FromDate != nil {
		b.add("last_activity_at >= ?", filter.FromDate.UTC())
	}
	where := b.where()

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM account_power "+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count delegates: %w", err)
	}

	column, ok := delegateOrderColumns[filter.OrderBy]
	if !ok {
		column = "voting_power"
	}
	query := fmt.Sprintf(`
		SELECT %s FROM account_power
		%s
		ORDER BY %s %s, account_id ASC
		%s
	`, powerColumns, where, column, direction(filter.Desc), limitClause(&b, filter.Limit, filter.Offset))

	var rows []powerRow
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list delegates: %w", err)
	}

	result := make([]entities.AccountPower, 0, len(rows))
	for _, row := range rows {
		p, err := row.toEntity()
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}
	return result, total, nil
}

// ListHolders returns accounts with a positive balance ordered by balance
func (r *AccountRepo) ListHolders(ctx context.Context, filter repositories.HolderFilter) ([]entities.AccountBalance, int64, error) {
	var b conditionBuilder
	b.add("token_id = ?", filter.TokenID)
	b.conditions = append(b.conditions, "balance > 0")
	if filter.FromDate != nil {
		b.add("last_activity_at >= ?", filter.FromDate.UTC())
	}
	where := b.where()

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM account_balance "+where, b.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count holders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM account_balance
		%s
		ORDER BY balance %s, account_id ASC
		%s
	`, balanceColumns, where, direction(filter.Desc), limitClause(&b, filter.Limit, filter.Offset))

	var rows []balanceRow
	if err := r.db.SelectContext(ctx, &rows, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list holders: %w", err)
	}

	result := make([]entities.AccountBalance, 0, len(rows))
	for _, row := range rows {
		bal, err := row.toEntity()
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *bal)
	}
	return result, total, nil
}

// BalancesAtBlock returns the latest balance snapshot per address at or before block
func (r *AccountRepo) BalancesAtBlock(ctx context.Context, tokenID string, addresses []string, block int64) ([]entities.BalanceHistory, error) {
	query := `
		SELECT DISTINCT ON (account_id)
			tx_hash, log_index, account_id, token_id,
			balance::TEXT AS balance, delta::TEXT AS delta, block_number, timestamp
		FROM balance_history
		WHERE token_id = $1 AND account_id = ANY($2) AND block_number <= $3
		ORDER BY account_id, block_number DESC, log_index DESC
	`

	var rows []balanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, tokenID, pq.Array(addresses), block); err != nil {
		return nil, fmt.Errorf("failed to get historical balances: %w", err)
	}

	result := make([]entities.BalanceHistory, 0, len(rows))
	for _, row := range rows {
		h, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, nil
}

// VotingPowerAtBlock returns the latest voting power snapshot per address at or before block
func (r *AccountRepo) VotingPowerAtBlock(ctx context.Context, daoID entities.DaoID, addresses []string, block int64) ([]entities.VotingPowerHistory, error) {
	query := `
		SELECT DISTINCT ON (account_id)
			tx_hash, log_index, dao_id, account_id,
			voting_power::TEXT AS voting_power, delta::TEXT AS delta,
			block_number, timestamp, transfer_log_index, delegation_log_index
		FROM voting_power_history
		WHERE dao_id = $1 AND account_id = ANY($2) AND block_number <= $3
		ORDER BY account_id, block_number DESC, log_index DESC
	`

	var rows []powerHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, string(daoID), pq.Array(addresses), block); err != nil {
		return nil, fmt.Errorf("failed to get historical voting power: %w", err)
	}

	result := make([]entities.VotingPowerHistory, 0, len(rows))
	for _, row := range rows {
		h, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, nil
}

// GetAccountBalance returns the balance row of account
func (r *AccountRepo) GetAccountBalance(ctx context.Context, tokenID, account string) (*entities.AccountBalance, error) {
	var row balanceRow
	query := `SELECT ` + balanceColumns + ` FROM account_balance WHERE token_id = $1 AND account_id = $2`
	if err := r.db.GetContext(ctx, &row, query, tokenID, account); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account balance: %w", err)
	}
	return row.toEntity()
}

// GetAccountPower returns the power row of account
func (r *AccountRepo) GetAccountPower(ctx context.Context, daoID entities.DaoID, account string) (*entities.AccountPower, error) {
	var row powerRow
	query := `SELECT ` + powerColumns + ` FROM account_power WHERE dao_id = $1 AND account_id = $2`
	if err := r.db.GetContext(ctx, &row, query, string(daoID), account); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account power: %w", err)
	}
	return row.toEntity()
}

// ActiveSupply sums the voting power of accounts whose last vote is at or after since
func (r *AccountRepo) ActiveSupply(ctx context.Context, daoID entities.DaoID, since time.Time) (*big.Int, error) {
	query := `
		SELECT COALESCE(SUM(voting_power), 0)::TEXT
		FROM account_power
		WHERE dao_id = $1 AND last_vote_timestamp >= $2
	`

	var sum string
	if err := r.db.GetContext(ctx, &sum, query, string(daoID), since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get active supply: %w", err)
	}
	return entities.ParseAmount(sum)
}
