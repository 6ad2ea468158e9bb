package repositories

import (
	"context"
	"math/big"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// Delta is the before/after pair of an aggregate mutation
type Delta struct {
	Before *big.Int
	After  *big.Int
}

// Changed reports whether the mutation moved the value
func (d Delta) Changed() bool {
	return d.Before.Cmp(d.After) != 0
}

// LedgerStore runs event handling units atomically
type LedgerStore interface {
	// WithTx runs fn inside one storage transaction. Returning an error from fn
	// rolls back every write made through tx.
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the write surface available inside one transaction.
// Insert* methods are conflict-ignore inserts on the fact's idempotency key
// and report whether a new row was written. Apply* methods are atomic
// read-modify-write updates that create the aggregate row when missing.
type LedgerTx interface {
	EnsureAccounts(ctx context.Context, addresses ...string) error

	InsertTransfer(ctx context.Context, t *entities.Transfer) (bool, error)
	InsertDelegation(ctx context.Context, d *entities.Delegation) (bool, error)
	InsertVotingPowerHistory(ctx context.Context, h *entities.VotingPowerHistory) (bool, error)
	InsertBalanceHistory(ctx context.Context, h *entities.BalanceHistory) (bool, error)
	InsertVote(ctx context.Context, v *entities.Vote) (bool, error)
	InsertProposal(ctx context.Context, p *entities.Proposal) (bool, error)

	// EnsureToken creates the token row with zero counters if it does not exist
	EnsureToken(ctx context.Context, token *entities.Token) error
	// GetToken reads and locks the token row
	GetToken(ctx context.Context, tokenID string) (*entities.Token, error)
	ApplyTokenDelta(ctx context.Context, tokenID string, field entities.TokenField, delta *big.Int) (Delta, error)

	// GetBalance returns a zero balance when the row does not exist
	GetBalance(ctx context.Context, account, tokenID string) (*entities.AccountBalance, error)
	ApplyBalanceDelta(ctx context.Context, account, tokenID string, delta *big.Int) (Delta, error)
	SetDelegate(ctx context.Context, account, tokenID, delegate string) error
	// TouchBalance advances the chain-time activity marker of a balance row,
	// creating the row when missing. Older timestamps leave it unchanged.
	TouchBalance(ctx context.Context, account, tokenID string, at time.Time) error

	// GetAccountPower reads and locks the power row, returning zero counters when missing
	GetAccountPower(ctx context.Context, account string, daoID entities.DaoID) (*entities.AccountPower, error)
	ApplyPowerDelta(ctx context.Context, account string, daoID entities.DaoID, field entities.AccountPowerField, delta *big.Int) (Delta, error)
	// SetPowerPosition stores the event position the voting power reflects
	SetPowerPosition(ctx context.Context, account string, daoID entities.DaoID, block int64, logIndex int) error
	// TouchPower is TouchBalance for the power row
	TouchPower(ctx context.Context, account string, daoID entities.DaoID, at time.Time) error
	// RecordVote increments votes_count and maintains the first/last vote timestamps
	RecordVote(ctx context.Context, account string, daoID entities.DaoID, ts time.Time) error

	// AccumulateBucket folds one observation into its daily bucket, creating it on first use
	AccumulateBucket(ctx context.Context, o entities.Observation, ordering entities.BucketOrdering) (*entities.DayBucket, error)

	// GetProposal reads and locks a proposal. Returns entities.ErrNotFound when missing.
	GetProposal(ctx context.Context, daoID entities.DaoID, proposalID string) (*entities.Proposal, error)
	UpdateProposalStatus(ctx context.Context, daoID entities.DaoID, proposalID string, status entities.ProposalStatus) error
	AddProposalVotes(ctx context.Context, daoID entities.DaoID, proposalID string, support entities.VoteSupport, weight *big.Int) error
}
