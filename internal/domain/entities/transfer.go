package entities

import (
	"math/big"
	"time"
)

// Transfer represents an ERC-20 Transfer event with its classification flags.
// Keyed by (TxHash, LogIndex); written once.
type Transfer struct {
	TxHash         string
	LogIndex       int
	BlockNumber    int64
	BlockTimestamp time.Time
	DaoID          DaoID
	TokenAddress   string
	FromAddress    string
	ToAddress      string
	Value          *big.Int
	IsCex          bool
	IsDex          bool
	IsLending      bool
	IsTreasury     bool
	IsTotal        bool // mint or burn
	CreatedAt      time.Time
}

// TransferSort selects the ordering of transfer queries
type TransferSort string

const (
	SortByTimestamp TransferSort = "timestamp"
	SortByAmount    TransferSort = "amount"
)

// TransferFilter contains filters for querying transfers
type TransferFilter struct {
	DaoID        *DaoID
	TokenAddress *string
	FromAddress  *string
	ToAddress    *string
	Address      *string // matches either from or to
	FromBlock    *int64
	ToBlock      *int64
	FromTime     *time.Time
	ToTime       *time.Time
	MinAmount    *big.Int
	MaxAmount    *big.Int
	IsCex        *bool
	IsDex        *bool
	IsLending    *bool
	IsTreasury   *bool
	IsTotal      *bool
	SortBy       TransferSort
	SortDesc     bool
	Limit        int
	Offset       int
}

// DefaultTransferFilter returns a filter with sensible defaults
func DefaultTransferFilter() TransferFilter {
	return TransferFilter{
		SortBy:   SortByTimestamp,
		SortDesc: true,
		Limit:    100,
		Offset:   0,
	}
}

// Matches reports whether t satisfies every set criterion of the filter.
// Pagination and ordering are not considered.
func (f TransferFilter) Matches(t Transfer) bool {
	if f.DaoID != nil && t.DaoID != *f.DaoID {
		return false
	}
	if f.TokenAddress != nil && t.TokenAddress != *f.TokenAddress {
		return false
	}
	if f.FromAddress != nil && t.FromAddress != *f.FromAddress {
		return false
	}
	if f.ToAddress != nil && t.ToAddress != *f.ToAddress {
		return false
	}
	if f.Address != nil && t.FromAddress != *f.Address && t.ToAddress != *f.Address {
		return false
	}
	if f.FromBlock != nil && t.BlockNumber < *f.FromBlock {
		return false
	}
	if f.ToBlock != nil && t.BlockNumber > *f.ToBlock {
		return false
	}
	if f.FromTime != nil && t.BlockTimestamp.Before(*f.FromTime) {
		return false
	}
	if f.ToTime != nil && t.BlockTimestamp.After(*f.ToTime) {
		return false
	}
	if f.MinAmount != nil && t.Value.Cmp(f.MinAmount) < 0 {
		return false
	}
	if f.MaxAmount != nil && t.Value.Cmp(f.MaxAmount) > 0 {
		return false
	}
	return flagMatches(f.IsCex, t.IsCex) &&
		flagMatches(f.IsDex, t.IsDex) &&
		flagMatches(f.IsLending, t.IsLending) &&
		flagMatches(f.IsTreasury, t.IsTreasury) &&
		flagMatches(f.IsTotal, t.IsTotal)
}

func flagMatches(want *bool, got bool) bool {
	return want == nil || *want == got
}
