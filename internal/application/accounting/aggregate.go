package accounting

import (
	"context"
	"fmt"
	"math/big"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// AggregateKind selects the row family an aggregate lives in
type AggregateKind int

const (
	AggregateToken AggregateKind = iota
	AggregateBalance
	AggregatePower
)

// AggregateKey addresses one mutable counter
type AggregateKey struct {
	Kind       AggregateKind
	TokenID    string
	Account    string
	DaoID      entities.DaoID
	TokenField entities.TokenField
	PowerField entities.AccountPowerField
}

// TokenKey addresses a supply counter of a token
func TokenKey(tokenID string, field entities.TokenField) AggregateKey {
	return AggregateKey{Kind: AggregateToken, TokenID: tokenID, TokenField: field}
}

// BalanceKey addresses the balance of account for a token
func BalanceKey(account, tokenID string) AggregateKey {
	return AggregateKey{Kind: AggregateBalance, Account: account, TokenID: tokenID}
}

// PowerKey addresses a governance counter of account in a DAO
func PowerKey(account string, daoID entities.DaoID, field entities.AccountPowerField) AggregateKey {
	return AggregateKey{Kind: AggregatePower, Account: account, DaoID: daoID, PowerField: field}
}

// Updater applies counter mutations inside one ledger transaction.
// It performs no deduplication: callers insert the event fact first.
type Updater struct {
	tx repositories.LedgerTx
}

// NewUpdater binds an updater to tx
func NewUpdater(tx repositories.LedgerTx) Updater {
	return Updater{tx: tx}
}

// ApplyDelta adds delta to the counter and returns the values around the write
func (u Updater) ApplyDelta(ctx context.Context, key AggregateKey, delta *big.Int) (repositories.Delta, error) {
	var (
		d   repositories.Delta
		err error
	)
	switch key.Kind {
	case AggregateToken:
		d, err = u.tx.ApplyTokenDelta(ctx, key.TokenID, key.TokenField, delta)
	case AggregateBalance:
		d, err = u.tx.ApplyBalanceDelta(ctx, key.Account, key.TokenID, delta)
	case AggregatePower:
		d, err = u.tx.ApplyPowerDelta(ctx, key.Account, key.DaoID, key.PowerField, delta)
	default:
		return repositories.Delta{}, fmt.Errorf("unknown aggregate kind %d", key.Kind)
	}
	if err != nil {
		return repositories.Delta{}, fmt.Errorf("failed to apply delta to %s: %w", key, err)
	}
	return d, nil
}

// Replace sets the counter to value, expressed as delta = value - current
func (u Updater) Replace(ctx context.Context, key AggregateKey, value *big.Int) (repositories.Delta, error) {
	current, err := u.Current(ctx, key)
	if err != nil {
		return repositories.Delta{}, err
	}
	return u.ApplyDelta(ctx, key, new(big.Int).Sub(value, current))
}

// Current reads the counter value
func (u Updater) Current(ctx context.Context, key AggregateKey) (*big.Int, error) {
	switch key.Kind {
	case AggregateToken:
		token, err := u.tx.GetToken(ctx, key.TokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		return token.Field(key.TokenField)
	case AggregateBalance:
		bal, err := u.tx.GetBalance(ctx, key.Account, key.TokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		return entities.CopyAmount(bal.Balance), nil
	case AggregatePower:
		power, err := u.tx.GetAccountPower(ctx, key.Account, key.DaoID)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		return power.Counter(key.PowerField), nil
	}
	return nil, fmt.Errorf("unknown aggregate kind %d", key.Kind)
}

func (k AggregateKey) String() string {
	switch k.Kind {
	case AggregateToken:
		return fmt.Sprintf("token %s %s", k.TokenID, k.TokenField)
	case AggregateBalance:
		return fmt.Sprintf("balance %s/%s", k.Account, k.TokenID)
	case AggregatePower:
		return fmt.Sprintf("power %s/%s %s", k.Account, k.DaoID, k.PowerField)
	}
	return "unknown aggregate"
}
