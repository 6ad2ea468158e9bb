package entities

import (
	"math/big"
	"time"
)

// Account is created lazily on first reference and never deleted
type Account struct {
	Address   string
	CreatedAt time.Time
}

// AccountBalance is the running balance of one account for one token
type AccountBalance struct {
	AccountID      string
	TokenID        string
	Balance        *big.Int
	Delegate       string
	// block timestamp of the latest event that touched this row
	LastActivityAt *time.Time
	UpdatedAt      time.Time
}

// BalanceHistory is an append-only snapshot written on every balance change
type BalanceHistory struct {
	TxHash      string
	LogIndex    int
	AccountID   string
	TokenID     string
	Balance     *big.Int
	Delta       *big.Int
	BlockNumber int64
	Timestamp   time.Time
}

// AccountPowerField names an additive counter on AccountPower
type AccountPowerField string

const (
	FieldVotingPower      AccountPowerField = "voting_power"
	FieldDelegationsCount AccountPowerField = "delegations_count"
	FieldVotesCount       AccountPowerField = "votes_count"
	FieldProposalsCount   AccountPowerField = "proposals_count"
)

// Valid reports whether f is a known power counter
func (f AccountPowerField) Valid() bool {
	switch f {
	case FieldVotingPower, FieldDelegationsCount, FieldVotesCount, FieldProposalsCount:
		return true
	}
	return false
}

// AccountPower tracks governance participation for one account in one DAO
type AccountPower struct {
	AccountID          string
	DaoID              DaoID
	VotingPower        *big.Int
	DelegationsCount   int64
	VotesCount         int64
	ProposalsCount     int64
	FirstVoteTimestamp *time.Time
	LastVoteTimestamp  *time.Time
	// position of the DelegateVotesChanged that set VotingPower
	PowerBlockNumber int64
	PowerLogIndex    int
	LastActivityAt   *time.Time
	UpdatedAt        time.Time
}

// NewAccountPower returns an empty power record
func NewAccountPower(account string, daoID DaoID) *AccountPower {
	return &AccountPower{AccountID: account, DaoID: daoID, VotingPower: new(big.Int)}
}

// Counter returns the value of f as a big integer
func (p *AccountPower) Counter(f AccountPowerField) *big.Int {
	switch f {
	case FieldVotingPower:
		return CopyAmount(p.VotingPower)
	case FieldDelegationsCount:
		return big.NewInt(p.DelegationsCount)
	case FieldVotesCount:
		return big.NewInt(p.VotesCount)
	case FieldProposalsCount:
		return big.NewInt(p.ProposalsCount)
	}
	return new(big.Int)
}

// SetCounter replaces the value of f
func (p *AccountPower) SetCounter(f AccountPowerField, v *big.Int) {
	switch f {
	case FieldVotingPower:
		p.VotingPower = CopyAmount(v)
	case FieldDelegationsCount:
		p.DelegationsCount = v.Int64()
	case FieldVotesCount:
		p.VotesCount = v.Int64()
	case FieldProposalsCount:
		p.ProposalsCount = v.Int64()
	}
}

// SupersededBy reports whether an assertion at (block, logIndex) is newer than
// the one VotingPower currently reflects
func (p *AccountPower) SupersededBy(block int64, logIndex int) bool {
	if p.PowerBlockNumber == 0 && p.PowerLogIndex == 0 {
		return true
	}
	if block != p.PowerBlockNumber {
		return block > p.PowerBlockNumber
	}
	return logIndex > p.PowerLogIndex
}

// RecordVote updates the first/last vote timestamps
func (p *AccountPower) RecordVote(ts time.Time) {
	ts = ts.UTC()
	if p.FirstVoteTimestamp == nil || ts.Before(*p.FirstVoteTimestamp) {
		first := ts
		p.FirstVoteTimestamp = &first
	}
	if p.LastVoteTimestamp == nil || ts.After(*p.LastVoteTimestamp) {
		last := ts
		p.LastVoteTimestamp = &last
	}
}

// Clone returns a deep copy
func (p *AccountPower) Clone() *AccountPower {
	c := *p
	c.VotingPower = CopyAmount(p.VotingPower)
	if p.FirstVoteTimestamp != nil {
		v := *p.FirstVoteTimestamp
		c.FirstVoteTimestamp = &v
	}
	if p.LastVoteTimestamp != nil {
		v := *p.LastVoteTimestamp
		c.LastVoteTimestamp = &v
	}
	if p.LastActivityAt != nil {
		v := *p.LastActivityAt
		c.LastActivityAt = &v
	}
	return &c
}

// LaterActivity returns the later of current and at. It never moves backwards,
// so replays and out-of-order backfills keep the newest chain time.
func LaterActivity(current *time.Time, at time.Time) *time.Time {
	at = at.UTC()
	if current != nil && !at.After(*current) {
		v := *current
		return &v
	}
	return &at
}

// ActiveSince reports whether a row with the given activity marker passes a
// fromDate filter. Rows never touched by an event do not.
func ActiveSince(lastActivity *time.Time, from time.Time) bool {
	return lastActivity != nil && !lastActivity.Before(from)
}

// VotingPowerHistory is an append-only point-in-time voting power snapshot
type VotingPowerHistory struct {
	TxHash      string
	LogIndex    int
	DaoID       DaoID
	AccountID   string
	VotingPower *big.Int
	Delta       *big.Int
	BlockNumber int64
	Timestamp   time.Time
	// TransferLogIndex / DelegationLogIndex link the snapshot to the event
	// in the same transaction that triggered it, when one was seen.
	TransferLogIndex   *int
	DelegationLogIndex *int
}

// Delegation is an immutable DelegateChanged fact
type Delegation struct {
	TxHash           string
	LogIndex         int
	DaoID            DaoID
	DelegatorID      string
	DelegateID       string
	PreviousDelegate string
	DelegatedValue   *big.Int
	BlockNumber      int64
	Timestamp        time.Time
}
