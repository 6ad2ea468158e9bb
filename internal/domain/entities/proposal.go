package entities

import (
	"fmt"
	"math/big"
	"time"
)

// ProposalStatus is the lifecycle state of an onchain proposal
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "PENDING"
	StatusActive   ProposalStatus = "ACTIVE"
	StatusCanceled ProposalStatus = "CANCELED"
	StatusDefeated ProposalStatus = "DEFEATED"
	StatusQueued   ProposalStatus = "QUEUED"
	StatusExecuted ProposalStatus = "EXECUTED"
)

// Valid reports whether s is a known status
func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCanceled, StatusDefeated, StatusQueued, StatusExecuted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s ProposalStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusDefeated || s == StatusExecuted
}

// CanTransitionTo reports whether s -> next is a legal lifecycle step
func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusCanceled:
		return true
	case StatusActive:
		return s == StatusPending
	case StatusDefeated, StatusQueued:
		return s == StatusPending || s == StatusActive
	case StatusExecuted:
		return s == StatusQueued
	}
	return false
}

// successPath orders the states a passing proposal moves through
var successPath = map[ProposalStatus]int{
	StatusPending:  0,
	StatusActive:   1,
	StatusQueued:   2,
	StatusExecuted: 3,
}

// HasPassed reports whether s lies beyond earlier on the success path,
// e.g. EXECUTED has passed QUEUED.
func (s ProposalStatus) HasPassed(earlier ProposalStatus) bool {
	a, okA := successPath[s]
	b, okB := successPath[earlier]
	return okA && okB && a > b
}

// VoteSupport is the three-way exclusive choice of a vote
type VoteSupport int

const (
	SupportAgainst VoteSupport = 0
	SupportFor     VoteSupport = 1
	SupportAbstain VoteSupport = 2
)

// Valid reports whether v is against, for or abstain
func (v VoteSupport) Valid() bool {
	return v == SupportAgainst || v == SupportFor || v == SupportAbstain
}

func (v VoteSupport) String() string {
	switch v {
	case SupportAgainst:
		return "against"
	case SupportFor:
		return "for"
	case SupportAbstain:
		return "abstain"
	}
	return fmt.Sprintf("support(%d)", int(v))
}

// Proposal represents a governor proposal
type Proposal struct {
	ID           string // ProposalKey(DaoID, ProposalID)
	ProposalID   string
	DaoID        DaoID
	TxHash       string
	Proposer     string
	Targets      []string
	Values       []string
	Signatures   []string
	Calldatas    []string
	StartBlock   int64
	EndBlock     int64
	Description  string
	Timestamp    time.Time
	EndTimestamp time.Time
	Status       ProposalStatus
	ForVotes     *big.Int
	AgainstVotes *big.Int
	AbstainVotes *big.Int
}

// ProposalKey builds the storage id of a proposal
func ProposalKey(daoID DaoID, proposalID string) string {
	return proposalID + "-" + string(daoID)
}

// EstimateEndTimestamp projects the end of the voting window from block numbers
func EstimateEndTimestamp(created time.Time, startBlock, endBlock int64, secondsPerBlock float64) time.Time {
	blocks := endBlock - startBlock
	if blocks < 0 {
		blocks = 0
	}
	return created.Add(time.Duration(float64(blocks) * secondsPerBlock * float64(time.Second))).UTC()
}

// Tally returns the counter that support increments
func (p *Proposal) Tally(support VoteSupport) **big.Int {
	switch support {
	case SupportFor:
		return &p.ForVotes
	case SupportAgainst:
		return &p.AgainstVotes
	case SupportAbstain:
		return &p.AbstainVotes
	}
	return nil
}

// Clone returns a deep copy
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.Targets = append([]string(nil), p.Targets...)
	c.Values = append([]string(nil), p.Values...)
	c.Signatures = append([]string(nil), p.Signatures...)
	c.Calldatas = append([]string(nil), p.Calldatas...)
	c.ForVotes = CopyAmount(p.ForVotes)
	c.AgainstVotes = CopyAmount(p.AgainstVotes)
	c.AbstainVotes = CopyAmount(p.AbstainVotes)
	return &c
}

// DeriveStatus resolves the time-dependent part of the lifecycle.
// Stored QUEUED and terminal statuses are returned unchanged. A PENDING or ACTIVE
// proposal is ACTIVE until its voting window closes, then QUEUED when quorum
// (for + abstain) is reached and for > against, otherwise DEFEATED.
func DeriveStatus(p *Proposal, votingPeriodSeconds int64, quorum *big.Int, now time.Time) ProposalStatus {
	if p.Status.IsTerminal() || p.Status == StatusQueued {
		return p.Status
	}

	end := p.EndTimestamp
	if end.IsZero() {
		end = p.Timestamp.Add(time.Duration(votingPeriodSeconds) * time.Second)
	}

	if now.Before(p.Timestamp) {
		return StatusPending
	}
	if now.Before(end) {
		return StatusActive
	}

	forVotes := orZero(p.ForVotes)
	participation := new(big.Int).Add(forVotes, orZero(p.AbstainVotes))
	if participation.Cmp(orZero(quorum)) >= 0 && forVotes.Cmp(orZero(p.AgainstVotes)) > 0 {
		return StatusQueued
	}
	return StatusDefeated
}

// Vote is an immutable VoteCast fact
type Vote struct {
	TxHash      string
	LogIndex    int
	DaoID       DaoID
	ProposalID  string
	VoterID     string
	Support     VoteSupport
	VotingPower *big.Int
	Reason      string
	BlockNumber int64
	Timestamp   time.Time
}
