package repositories

import (
	"context"
	"math/big"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// DelegateOrder selects the ordering of delegate listings
type DelegateOrder string

const (
	OrderByVotingPower DelegateOrder = "votingPower"
	OrderByDelegations DelegateOrder = "delegationsCount"
	OrderByVotes       DelegateOrder = "votesCount"
)

// Valid reports whether o is a known ordering
func (o DelegateOrder) Valid() bool {
	return o == OrderByVotingPower || o == OrderByDelegations || o == OrderByVotes
}

// DelegateFilter selects rows of account_power
type DelegateFilter struct {
	DaoID    entities.DaoID
	FromDate *time.Time // only accounts with chain activity at or after FromDate
	OrderBy  DelegateOrder
	Desc     bool
	Limit    int
	Offset   int
}

// HolderFilter selects non-zero rows of account_balance
type HolderFilter struct {
	TokenID  string
	FromDate *time.Time
	Desc     bool
	Limit    int
	Offset   int
}

// AccountRepository defines read operations over balances and voting power
type AccountRepository interface {
	// ListDelegates returns accounts with voting power records
	ListDelegates(ctx context.Context, filter DelegateFilter) ([]entities.AccountPower, int64, error)

	// ListHolders returns accounts with a positive balance ordered by balance
	ListHolders(ctx context.Context, filter HolderFilter) ([]entities.AccountBalance, int64, error)

	// BalancesAtBlock returns, per address, the latest balance history row at or before block
	BalancesAtBlock(ctx context.Context, tokenID string, addresses []string, block int64) ([]entities.BalanceHistory, error)

	// VotingPowerAtBlock returns, per address, the latest voting power row at or before block
	VotingPowerAtBlock(ctx context.Context, daoID entities.DaoID, addresses []string, block int64) ([]entities.VotingPowerHistory, error)

	// GetAccountBalance returns the balance row of account, nil when it never held the token
	GetAccountBalance(ctx context.Context, tokenID, account string) (*entities.AccountBalance, error)

	// GetAccountPower returns the power row of account, nil when it never took part
	GetAccountPower(ctx context.Context, daoID entities.DaoID, account string) (*entities.AccountPower, error)

	// ActiveSupply sums the voting power of accounts that voted at or after since
	ActiveSupply(ctx context.Context, daoID entities.DaoID, since time.Time) (*big.Int, error)
}
