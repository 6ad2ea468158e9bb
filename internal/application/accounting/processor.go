package accounting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// ReasonCode reports how an event was handled
type ReasonCode string

const (
	ReasonOK                ReasonCode = "ok"
	ReasonDuplicate         ReasonCode = "duplicate"
	ReasonInvalidEvent      ReasonCode = "invalid_event"
	ReasonInvalidTransition ReasonCode = "invalid_transition"
	ReasonStorageError      ReasonCode = "storage_error"
)

// errDuplicate aborts the transaction of an event whose fact row already exists
var errDuplicate = errors.New("duplicate event")

// Result is the outcome of one Process call
type Result struct {
	Kind     events.Kind
	Ref      events.Ref
	Reason   ReasonCode
	Warnings int // negative balances seen while applying the event
}

// Processor applies chain events of one DAO to the ledger.
// Calls to Process are serialized so every aggregate row has a single writer.
type Processor struct {
	dao        config.DAO
	tokenID    string
	quorum     *big.Int
	classifier *Classifier
	store      repositories.LedgerStore
	logger     *zap.Logger

	mu   sync.Mutex
	txn  txContext
	warn int
}

// txContext remembers the trigger events of the chain transaction being processed,
// so voting power snapshots can link to them.
type txContext struct {
	hash          string
	transferLog   *int
	delegationLog *int
}

// NewProcessor creates a processor for one DAO
func NewProcessor(dao config.DAO, store repositories.LedgerStore, logger *zap.Logger) *Processor {
	return &Processor{
		dao:        dao,
		tokenID:    dao.TokenID(),
		quorum:     dao.Governance.QuorumAmount(),
		classifier: NewClassifier(dao.Addresses),
		store:      store,
		logger:     logger.With(zap.String("dao", string(dao.ID))),
	}
}

// DAO returns the DAO the processor serves
func (p *Processor) DAO() config.DAO {
	return p.dao
}

// Process handles one event atomically. Only storage failures are returned as errors;
// the whole transaction has been rolled back when that happens and the event can be retried.
func (p *Processor) Process(ctx context.Context, ev events.Event) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	ref := ev.Meta()
	res := Result{Kind: ev.Kind(), Ref: ref}
	p.warn = 0

	err := p.validateRef(ref)
	if err == nil {
		err = p.store.WithTx(ctx, func(tx repositories.LedgerTx) error {
			return p.dispatch(ctx, tx, ev)
		})
	}

	res.Warnings = p.warn
	switch {
	case err == nil:
		res.Reason = ReasonOK
		p.remember(ev)
		lastProcessedBlock.WithLabelValues(string(p.dao.ID)).Set(float64(ref.BlockNumber))
	case errors.Is(err, errDuplicate):
		res.Reason = ReasonDuplicate
		p.remember(ev)
		p.logger.Debug("Skipping duplicate event",
			zap.String("kind", string(res.Kind)),
			zap.String("tx_hash", ref.TxHash),
			zap.Int("log_index", ref.LogIndex))
	case errors.Is(err, entities.ErrInvalidEvent):
		res.Reason = ReasonInvalidEvent
		p.logger.Warn("Skipping invalid event",
			zap.String("kind", string(res.Kind)),
			zap.String("tx_hash", ref.TxHash),
			zap.Int("log_index", ref.LogIndex),
			zap.Error(err))
	case errors.Is(err, entities.ErrInvalidTransition):
		res.Reason = ReasonInvalidTransition
		p.logger.Warn("Skipping proposal event with invalid transition",
			zap.String("kind", string(res.Kind)),
			zap.String("tx_hash", ref.TxHash),
			zap.Error(err))
	default:
		res.Reason = ReasonStorageError
		p.logger.Error("Failed to apply event",
			zap.String("kind", string(res.Kind)),
			zap.String("tx_hash", ref.TxHash),
			zap.Int("log_index", ref.LogIndex),
			zap.Error(err))
	}

	eventsProcessed.WithLabelValues(string(p.dao.ID), string(res.Kind), string(res.Reason)).Inc()
	eventDuration.WithLabelValues(string(p.dao.ID), string(res.Kind)).Observe(time.Since(start).Seconds())

	if res.Reason == ReasonStorageError {
		return res, fmt.Errorf("failed to process %s %s/%d: %w", res.Kind, ref.TxHash, ref.LogIndex, err)
	}
	return res, nil
}

func (p *Processor) validateRef(ref events.Ref) error {
	if ref.DaoID != p.dao.ID {
		return fmt.Errorf("%w: event for dao %q delivered to %s", entities.ErrInvalidEvent, ref.DaoID, p.dao.ID)
	}
	if ref.TxHash == "" || ref.LogIndex < 0 {
		return fmt.Errorf("%w: missing event position", entities.ErrInvalidEvent)
	}
	if ref.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing block timestamp", entities.ErrInvalidEvent)
	}
	return nil
}

func (p *Processor) dispatch(ctx context.Context, tx repositories.LedgerTx, ev events.Event) error {
	switch e := ev.(type) {
	case events.Transfer:
		return p.handleTransfer(ctx, tx, e)
	case events.DelegateChanged:
		return p.handleDelegationChanged(ctx, tx, e)
	case events.DelegateVotesChanged:
		return p.handleVotingPowerChanged(ctx, tx, e)
	case events.ProposalCreated:
		return p.handleProposalCreated(ctx, tx, e)
	case events.VoteCast:
		return p.handleVoteCast(ctx, tx, e)
	case events.ProposalCanceled:
		return p.handleProposalStatus(ctx, tx, e.Ref, e.ProposalID, entities.StatusCanceled)
	case events.ProposalQueued:
		return p.handleProposalStatus(ctx, tx, e.Ref, e.ProposalID, entities.StatusQueued)
	case events.ProposalExecuted:
		return p.handleProposalStatus(ctx, tx, e.Ref, e.ProposalID, entities.StatusExecuted)
	}
	return fmt.Errorf("%w: unsupported event %T", entities.ErrInvalidEvent, ev)
}

// remember tracks Transfer/DelegateChanged log indexes of the current chain transaction
func (p *Processor) remember(ev events.Event) {
	ref := ev.Meta()
	if ref.TxHash != p.txn.hash {
		p.txn = txContext{hash: ref.TxHash}
	}
	idx := ref.LogIndex
	switch ev.(type) {
	case events.Transfer:
		p.txn.transferLog = &idx
	case events.DelegateChanged:
		p.txn.delegationLog = &idx
	}
}

// links returns the trigger log indexes recorded earlier in the same chain transaction
func (p *Processor) links(ref events.Ref) (transferLog, delegationLog *int) {
	if ref.TxHash != p.txn.hash {
		return nil, nil
	}
	return p.txn.transferLog, p.txn.delegationLog
}

func (p *Processor) ensureToken(ctx context.Context, tx repositories.LedgerTx) error {
	if err := tx.EnsureToken(ctx, entities.NewToken(p.tokenID, p.dao.ID, p.dao.Decimals)); err != nil {
		return fmt.Errorf("failed to ensure token: %w", err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", entities.ErrInvalidEvent, fmt.Sprintf(format, args...))
}
