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

// handleTransfer records the transfer fact, moves balances and updates every
// supply metric the transfer flows through.
func (p *Processor) handleTransfer(ctx context.Context, tx repositories.LedgerTx, ev events.Transfer) error {
	from := entities.NormalizeAddress(ev.From)
	to := entities.NormalizeAddress(ev.To)
	if from == "" || to == "" {
		return invalid("transfer without from/to")
	}
	if ev.Value == nil || ev.Value.Sign() < 0 {
		return invalid("transfer with missing or negative value")
	}

	if err := tx.EnsureAccounts(ctx, from, to); err != nil {
		return fmt.Errorf("failed to ensure accounts: %w", err)
	}
	if err := p.ensureToken(ctx, tx); err != nil {
		return err
	}

	t := &entities.Transfer{
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		BlockNumber:    ev.BlockNumber,
		BlockTimestamp: ev.Timestamp.UTC(),
		DaoID:          p.dao.ID,
		TokenAddress:   p.tokenID,
		FromAddress:    from,
		ToAddress:      to,
		Value:          entities.CopyAmount(ev.Value),
	}
	p.classifier.Tag(t)

	inserted, err := tx.InsertTransfer(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	if !inserted {
		return errDuplicate
	}

	// Zero-value and self transfers are facts only: they move no balance and no metric.
	if ev.Value.Sign() == 0 || from == to {
		return nil
	}

	if err := p.moveBalances(ctx, tx, ev, from, to); err != nil {
		return err
	}

	updater := NewUpdater(tx)
	acc := NewAccumulator(tx, p.dao.BucketOrdering)
	recompute := false

	for _, f := range p.classifier.Flows(from, to) {
		delta := new(big.Int).Set(ev.Value)
		if f.Sign < 0 {
			delta.Neg(delta)
		}
		d, err := updater.ApplyDelta(ctx, TokenKey(p.tokenID, f.Metric.TokenField()), delta)
		if err != nil {
			return err
		}
		if err := acc.ObserveDelta(ctx, f.Metric, p.dao.ID, p.tokenID, ev.Timestamp, d); err != nil {
			return err
		}
		if f.Metric == entities.MetricTreasury {
			recompute = true
		}
	}

	if sign := p.classifier.SupplyFlow(from, to); sign != 0 {
		delta := new(big.Int).Set(ev.Value)
		if sign < 0 {
			delta.Neg(delta)
		}
		d, err := updater.ApplyDelta(ctx, TokenKey(p.tokenID, entities.FieldTotalSupply), delta)
		if err != nil {
			return err
		}
		if err := acc.ObserveDelta(ctx, entities.MetricTotalSupply, p.dao.ID, p.tokenID, ev.Timestamp, d); err != nil {
			return err
		}
		recompute = true
	}

	if recompute {
		return p.recomputeCirculating(ctx, tx, updater, acc, ev.Ref)
	}
	return nil
}

// moveBalances credits the receiver and debits the sender. Mint/burn addresses
// hold no balance, so the sum of balances stays equal to total supply.
func (p *Processor) moveBalances(ctx context.Context, tx repositories.LedgerTx, ev events.Transfer, from, to string) error {
	updater := NewUpdater(tx)

	if !p.classifier.IsBurn(to) {
		d, err := updater.ApplyDelta(ctx, BalanceKey(to, p.tokenID), ev.Value)
		if err != nil {
			return err
		}
		if err := tx.TouchBalance(ctx, to, p.tokenID, ev.Timestamp); err != nil {
			return err
		}
		if err := p.appendBalanceHistory(ctx, tx, ev.Ref, to, d); err != nil {
			return err
		}
	}

	if !p.classifier.IsBurn(from) {
		d, err := updater.ApplyDelta(ctx, BalanceKey(from, p.tokenID), new(big.Int).Neg(ev.Value))
		if err != nil {
			return err
		}
		if err := tx.TouchBalance(ctx, from, p.tokenID, ev.Timestamp); err != nil {
			return err
		}
		if err := p.appendBalanceHistory(ctx, tx, ev.Ref, from, d); err != nil {
			return err
		}
		if d.After.Sign() < 0 {
			p.warn++
			negativeBalances.WithLabelValues(string(p.dao.ID)).Inc()
			p.logger.Warn("Balance went negative, events may be out of order",
				zap.String("account", from),
				zap.String("token", p.tokenID),
				zap.String("balance", d.After.String()),
				zap.String("tx_hash", ev.TxHash),
				zap.Int("log_index", ev.LogIndex))
		}
	}

	return nil
}

func (p *Processor) appendBalanceHistory(ctx context.Context, tx repositories.LedgerTx, ref events.Ref, account string, d repositories.Delta) error {
	_, err := tx.InsertBalanceHistory(ctx, &entities.BalanceHistory{
		TxHash:      ref.TxHash,
		LogIndex:    ref.LogIndex,
		AccountID:   account,
		TokenID:     p.tokenID,
		Balance:     d.After,
		Delta:       new(big.Int).Sub(d.After, d.Before),
		BlockNumber: ref.BlockNumber,
		Timestamp:   ref.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert balance history: %w", err)
	}
	return nil
}

// recomputeCirculating sets circulatingSupply = totalSupply - treasury
func (p *Processor) recomputeCirculating(ctx context.Context, tx repositories.LedgerTx, updater Updater, acc Accumulator, ref events.Ref) error {
	token, err := tx.GetToken(ctx, p.tokenID)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	d, err := updater.Replace(ctx, TokenKey(p.tokenID, entities.FieldCirculatingSupply), token.ExpectedCirculating())
	if err != nil {
		return err
	}
	return acc.ObserveDelta(ctx, entities.MetricCirculatingSupply, p.dao.ID, p.tokenID, ref.Timestamp, d)
}
