package testutil

import (
	"fmt"
	"math/big"
	"time"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
)

// Common test addresses
const (
	TokenAddress    = "0xc18360217d8f7ab5e7c516566761ea12ce7f9d72"
	GovernorAddress = "0x323a76393544d5ecca80cd6ef2a560c6a395b7e3"
	AliceAddress    = "0x1111111111111111111111111111111111111111"
	BobAddress      = "0x2222222222222222222222222222222222222222"
	CharlieAddr     = "0x3333333333333333333333333333333333333333"
	CexAddress      = "0xcec0000000000000000000000000000000000001"
	CexAddress2     = "0xcec0000000000000000000000000000000000002"
	DexAddress      = "0xdec0000000000000000000000000000000000001"
	LendingAddress  = "0x1e40000000000000000000000000000000000001"
	TreasuryAddress = "0x7e40000000000000000000000000000000000001"
	BurnAddress     = "0x000000000000000000000000000000000000dead"
)

// BaseTime is the block timestamp fixtures start from
var BaseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// CreateTestDAO creates an ENS-like DAO with one address per classified set
func CreateTestDAO(opts ...DAOOption) config.DAO {
	d := config.DAO{
		ID:              entities.DaoENS,
		ChainID:         1,
		TokenAddress:    TokenAddress,
		GovernorAddress: GovernorAddress,
		Decimals:        18,
		Addresses: config.AddressSets{
			CEX:      []string{CexAddress, CexAddress2},
			DEX:      []string{DexAddress},
			Lending:  []string{LendingAddress},
			Treasury: []string{TreasuryAddress},
			Burn:     []string{BurnAddress},
		},
		Governance: config.Governance{
			VotingPeriodSeconds: 3 * 24 * 3600,
			Quorum:              "100",
			SecondsPerBlock:     12,
		},
		BucketOrdering: entities.OrderArrival,
	}

	for _, opt := range opts {
		opt(&d)
	}

	return d
}

type DAOOption func(*config.DAO)

func DAOWithDecrementPreviousDelegate() DAOOption {
	return func(d *config.DAO) {
		d.DecrementPreviousDelegate = true
	}
}

func DAOWithOrdering(o entities.BucketOrdering) DAOOption {
	return func(d *config.DAO) {
		d.BucketOrdering = o
	}
}

// EventOption adjusts the chain position of a test event
type EventOption func(*events.Ref)

func AtTime(ts time.Time) EventOption {
	return func(r *events.Ref) {
		r.Timestamp = ts
	}
}

func InTx(hash string, logIndex int) EventOption {
	return func(r *events.Ref) {
		r.TxHash = hash
		r.LogIndex = logIndex
	}
}

func ForDAO(id entities.DaoID) EventOption {
	return func(r *events.Ref) {
		r.DaoID = id
	}
}

// NewRef builds an event position; each seq gets its own tx hash and block
func NewRef(seq int, opts ...EventOption) events.Ref {
	r := events.Ref{
		DaoID:       entities.DaoENS,
		Contract:    TokenAddress,
		TxHash:      generateTxHash(seq),
		LogIndex:    0,
		BlockNumber: int64(19000000 + seq),
		Timestamp:   BaseTime.Add(time.Duration(seq) * time.Minute),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// TransferEvent builds a Transfer of value wei
func TransferEvent(seq int, from, to string, value int64, opts ...EventOption) events.Transfer {
	return events.Transfer{Ref: NewRef(seq, opts...), From: from, To: to, Value: big.NewInt(value)}
}

// DelegateChangedEvent builds a DelegateChanged
func DelegateChangedEvent(seq int, delegator, fromDelegate, toDelegate string, opts ...EventOption) events.DelegateChanged {
	return events.DelegateChanged{Ref: NewRef(seq, opts...), Delegator: delegator, FromDelegate: fromDelegate, ToDelegate: toDelegate}
}

// VotesChangedEvent builds a DelegateVotesChanged
func VotesChangedEvent(seq int, delegate string, previous, next int64, opts ...EventOption) events.DelegateVotesChanged {
	return events.DelegateVotesChanged{
		Ref:             NewRef(seq, opts...),
		Delegate:        delegate,
		PreviousBalance: big.NewInt(previous),
		NewBalance:      big.NewInt(next),
	}
}

// ProposalCreatedEvent builds a ProposalCreated spanning blocks blocks of voting
func ProposalCreatedEvent(seq int, proposalID, proposer string, blocks int64, opts ...EventOption) events.ProposalCreated {
	ref := NewRef(seq, opts...)
	ref.Contract = GovernorAddress
	return events.ProposalCreated{
		Ref:         ref,
		ProposalID:  proposalID,
		Proposer:    proposer,
		Targets:     []string{TokenAddress},
		Values:      []string{"0"},
		Signatures:  []string{""},
		Calldatas:   []string{"0x"},
		StartBlock:  ref.BlockNumber + 1,
		EndBlock:    ref.BlockNumber + 1 + blocks,
		Description: "# Proposal " + proposalID,
	}
}

// VoteCastEvent builds a VoteCast
func VoteCastEvent(seq int, proposalID, voter string, support entities.VoteSupport, weight int64, opts ...EventOption) events.VoteCast {
	ref := NewRef(seq, opts...)
	ref.Contract = GovernorAddress
	return events.VoteCast{Ref: ref, Voter: voter, ProposalID: proposalID, Support: support, Weight: big.NewInt(weight)}
}

// CreateTestTransfer creates a test transfer fact with default values
func CreateTestTransfer(opts ...TransferOption) entities.Transfer {
	t := entities.Transfer{
		TxHash:         "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		LogIndex:       0,
		BlockNumber:    19000000,
		BlockTimestamp: BaseTime,
		DaoID:          entities.DaoENS,
		TokenAddress:   TokenAddress,
		FromAddress:    AliceAddress,
		ToAddress:      BobAddress,
		Value:          big.NewInt(1000000),
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

type TransferOption func(*entities.Transfer)

func WithTxHash(hash string) TransferOption {
	return func(t *entities.Transfer) {
		t.TxHash = hash
	}
}

func WithBlockTimestamp(ts time.Time) TransferOption {
	return func(t *entities.Transfer) {
		t.BlockTimestamp = ts
	}
}

func WithFromAddress(addr string) TransferOption {
	return func(t *entities.Transfer) {
		t.FromAddress = addr
	}
}

func WithToAddress(addr string) TransferOption {
	return func(t *entities.Transfer) {
		t.ToAddress = addr
	}
}

func WithValue(val *big.Int) TransferOption {
	return func(t *entities.Transfer) {
		t.Value = val
	}
}

func WithCex() TransferOption {
	return func(t *entities.Transfer) {
		t.IsCex = true
	}
}

// CreateTestIndexerState creates a test indexer state
func CreateTestIndexerState(opts ...IndexerStateOption) *entities.IndexerState {
	s := &entities.IndexerState{
		DaoID:            entities.DaoENS,
		LastIndexedBlock: 19000000,
		UpdatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type IndexerStateOption func(*entities.IndexerState)

func StateWithDao(id entities.DaoID) IndexerStateOption {
	return func(s *entities.IndexerState) {
		s.DaoID = id
	}
}

func StateWithLastIndexedBlock(block int64) IndexerStateOption {
	return func(s *entities.IndexerState) {
		s.LastIndexedBlock = block
	}
}

// CreateMultipleTransfers creates multiple test transfers for testing pagination
func CreateMultipleTransfers(count int, opts ...TransferOption) []entities.Transfer {
	transfers := make([]entities.Transfer, count)
	for i := 0; i < count; i++ {
		t := CreateTestTransfer(opts...)
		t.LogIndex = i
		t.BlockNumber = int64(19000000 + i)
		t.BlockTimestamp = t.BlockTimestamp.Add(time.Duration(i) * time.Minute)
		t.TxHash = generateTxHash(i)
		t.Value = big.NewInt(int64(1000 * (i + 1)))
		transfers[i] = t
	}
	return transfers
}

func generateTxHash(index int) string {
	return fmt.Sprintf("0x%064x", index+1)
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}

func timeMinutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
