package accounting

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

var one = big.NewInt(1)

// handleDelegationChanged records the delegation fact, points the delegator at
// its new delegate and bumps the delegate's delegationsCount.
func (p *Processor) handleDelegationChanged(ctx context.Context, tx repositories.LedgerTx, ev events.DelegateChanged) error {
	delegator := entities.NormalizeAddress(ev.Delegator)
	toDelegate := entities.NormalizeAddress(ev.ToDelegate)
	fromDelegate := entities.NormalizeAddress(ev.FromDelegate)
	if delegator == "" || toDelegate == "" {
		return invalid("delegation without delegator/delegate")
	}
	if fromDelegate == "" {
		fromDelegate = entities.ZeroAddress
	}

	if err := tx.EnsureAccounts(ctx, delegator, toDelegate, fromDelegate); err != nil {
		return fmt.Errorf("failed to ensure accounts: %w", err)
	}

	bal, err := tx.GetBalance(ctx, delegator, p.tokenID)
	if err != nil {
		return fmt.Errorf("failed to read delegator balance: %w", err)
	}

	inserted, err := tx.InsertDelegation(ctx, &entities.Delegation{
		TxHash:           ev.TxHash,
		LogIndex:         ev.LogIndex,
		DaoID:            p.dao.ID,
		DelegatorID:      delegator,
		DelegateID:       toDelegate,
		PreviousDelegate: fromDelegate,
		DelegatedValue:   entities.CopyAmount(bal.Balance),
		BlockNumber:      ev.BlockNumber,
		Timestamp:        ev.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert delegation: %w", err)
	}
	if !inserted {
		return errDuplicate
	}

	if err := tx.SetDelegate(ctx, delegator, p.tokenID, toDelegate); err != nil {
		return fmt.Errorf("failed to set delegate: %w", err)
	}
	if err := tx.TouchBalance(ctx, delegator, p.tokenID, ev.Timestamp); err != nil {
		return err
	}

	if toDelegate == fromDelegate {
		return nil
	}

	updater := NewUpdater(tx)
	if toDelegate != entities.ZeroAddress {
		if _, err := updater.ApplyDelta(ctx, PowerKey(toDelegate, p.dao.ID, entities.FieldDelegationsCount), one); err != nil {
			return err
		}
		if err := tx.TouchPower(ctx, toDelegate, p.dao.ID, ev.Timestamp); err != nil {
			return err
		}
	}

	if p.dao.DecrementPreviousDelegate && fromDelegate != entities.ZeroAddress {
		key := PowerKey(fromDelegate, p.dao.ID, entities.FieldDelegationsCount)
		current, err := updater.Current(ctx, key)
		if err != nil {
			return err
		}
		if current.Sign() > 0 {
			if _, err := updater.ApplyDelta(ctx, key, new(big.Int).Neg(one)); err != nil {
				return err
			}
		}
	}

	return nil
}

// handleVotingPowerChanged replaces the delegate's voting power with the asserted
// value and carries the delta into delegated supply.
func (p *Processor) handleVotingPowerChanged(ctx context.Context, tx repositories.LedgerTx, ev events.DelegateVotesChanged) error {
	account := entities.NormalizeAddress(ev.Delegate)
	if account == "" {
		return invalid("voting power change without delegate")
	}
	if ev.NewBalance == nil || ev.NewBalance.Sign() < 0 {
		return invalid("voting power change with missing or negative balance")
	}

	if err := tx.EnsureAccounts(ctx, account); err != nil {
		return fmt.Errorf("failed to ensure accounts: %w", err)
	}
	if err := p.ensureToken(ctx, tx); err != nil {
		return err
	}

	power, err := tx.GetAccountPower(ctx, account, p.dao.ID)
	if err != nil {
		return fmt.Errorf("failed to read account power: %w", err)
	}

	current := entities.CopyAmount(power.VotingPower)
	latest := power.SupersededBy(ev.BlockNumber, ev.LogIndex)
	delta := new(big.Int).Sub(ev.NewBalance, current)
	if !latest {
		// An older assertion arriving late. Keep it in history, leave the current value alone.
		delta = new(big.Int).Sub(ev.NewBalance, entities.CopyAmount(ev.PreviousBalance))
	}

	transferLog, delegationLog := p.links(ev.Ref)
	inserted, err := tx.InsertVotingPowerHistory(ctx, &entities.VotingPowerHistory{
		TxHash:             ev.TxHash,
		LogIndex:           ev.LogIndex,
		DaoID:              p.dao.ID,
		AccountID:          account,
		VotingPower:        entities.CopyAmount(ev.NewBalance),
		Delta:              delta,
		BlockNumber:        ev.BlockNumber,
		Timestamp:          ev.Timestamp.UTC(),
		TransferLogIndex:   transferLog,
		DelegationLogIndex: delegationLog,
	})
	if err != nil {
		return fmt.Errorf("failed to insert voting power history: %w", err)
	}
	if !inserted {
		return errDuplicate
	}

	if !latest {
		p.logger.Warn("Ignoring stale voting power assertion",
			zap.String("account", account),
			zap.Int64("block", ev.BlockNumber),
			zap.Int64("current_block", power.PowerBlockNumber))
		return nil
	}

	updater := NewUpdater(tx)
	if _, err := updater.Replace(ctx, PowerKey(account, p.dao.ID, entities.FieldVotingPower), ev.NewBalance); err != nil {
		return err
	}
	if err := tx.SetPowerPosition(ctx, account, p.dao.ID, ev.BlockNumber, ev.LogIndex); err != nil {
		return fmt.Errorf("failed to set power position: %w", err)
	}
	if err := tx.TouchPower(ctx, account, p.dao.ID, ev.Timestamp); err != nil {
		return err
	}

	if delta.Sign() == 0 {
		return nil
	}
	d, err := updater.ApplyDelta(ctx, TokenKey(p.tokenID, entities.FieldDelegatedSupply), delta)
	if err != nil {
		return err
	}
	return NewAccumulator(tx, p.dao.BucketOrdering).ObserveDelta(ctx, entities.MetricDelegatedSupply, p.dao.ID, p.tokenID, ev.Timestamp, d)
}
