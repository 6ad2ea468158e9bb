// Package events holds the typed chain events consumed by the accounting engine.
package events

import (
	"math/big"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// Kind names a chain event type
type Kind string

const (
	KindTransfer             Kind = "Transfer"
	KindDelegateChanged      Kind = "DelegateChanged"
	KindDelegateVotesChanged Kind = "DelegateVotesChanged"
	KindProposalCreated      Kind = "ProposalCreated"
	KindVoteCast             Kind = "VoteCast"
	KindProposalCanceled     Kind = "ProposalCanceled"
	KindProposalQueued       Kind = "ProposalQueued"
	KindProposalExecuted     Kind = "ProposalExecuted"
)

// Ref locates an event on chain. (TxHash, LogIndex) is the idempotency key.
type Ref struct {
	DaoID       entities.DaoID
	Contract    string
	TxHash      string
	LogIndex    int
	BlockNumber int64
	Timestamp   time.Time
}

// Event is implemented by every typed chain event
type Event interface {
	Kind() Kind
	Meta() Ref
}

// Meta returns the event position
func (r Ref) Meta() Ref { return r }

// Before reports whether r sorts before o in (block, logIndex) order
func (r Ref) Before(o Ref) bool {
	if r.BlockNumber != o.BlockNumber {
		return r.BlockNumber < o.BlockNumber
	}
	return r.LogIndex < o.LogIndex
}

// Transfer is an ERC-20 Transfer
type Transfer struct {
	Ref
	From  string
	To    string
	Value *big.Int
}

func (Transfer) Kind() Kind { return KindTransfer }

// DelegateChanged is emitted when a delegator picks a new delegate
type DelegateChanged struct {
	Ref
	Delegator    string
	FromDelegate string
	ToDelegate   string
}

func (DelegateChanged) Kind() Kind { return KindDelegateChanged }

// DelegateVotesChanged carries the new absolute voting power of a delegate
type DelegateVotesChanged struct {
	Ref
	Delegate        string
	PreviousBalance *big.Int
	NewBalance      *big.Int
}

func (DelegateVotesChanged) Kind() Kind { return KindDelegateVotesChanged }

// ProposalCreated is a governor ProposalCreated
type ProposalCreated struct {
	Ref
	ProposalID  string
	Proposer    string
	Targets     []string
	Values      []string
	Signatures  []string
	Calldatas   []string
	StartBlock  int64
	EndBlock    int64
	Description string
}

func (ProposalCreated) Kind() Kind { return KindProposalCreated }

// VoteCast is a governor VoteCast
type VoteCast struct {
	Ref
	Voter      string
	ProposalID string
	Support    entities.VoteSupport
	Weight     *big.Int
	Reason     string
}

func (VoteCast) Kind() Kind { return KindVoteCast }

// ProposalCanceled is a governor ProposalCanceled
type ProposalCanceled struct {
	Ref
	ProposalID string
}

func (ProposalCanceled) Kind() Kind { return KindProposalCanceled }

// ProposalQueued is a governor ProposalQueued
type ProposalQueued struct {
	Ref
	ProposalID string
	ETA        time.Time
}

func (ProposalQueued) Kind() Kind { return KindProposalQueued }

// ProposalExecuted is a governor ProposalExecuted
type ProposalExecuted struct {
	Ref
	ProposalID string
}

func (ProposalExecuted) Kind() Kind { return KindProposalExecuted }
