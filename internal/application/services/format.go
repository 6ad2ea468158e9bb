package services

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

const (
	timeLayout = "2006-01-02T15:04:05Z"
	dateLayout = "2006-01-02"

	defaultLimit = 100
	maxLimit     = 1000
)

// PaginationResponse contains pagination metadata
type PaginationResponse struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

func newPagination(total int64, limit, offset, page int) PaginationResponse {
	return PaginationResponse{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+page) < total,
	}
}

// clampLimit applies the default and maximum page size
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// formatUnits renders a base-unit amount in token units, e.g. 1500000000000000000 -> "1.5"
func formatUnits(v *big.Int, decimals int) string {
	return decimal.NewFromBigInt(entities.CopyAmount(v), -int32(decimals)).String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// changeRate computes current/old - 1 in fixed point with 10^decimals as one.
// Returns zero when old is zero.
func changeRate(old, current *big.Int, decimals int) *big.Int {
	if old == nil || old.Sign() == 0 {
		return new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rate := new(big.Int).Mul(entities.CopyAmount(current), scale)
	rate.Quo(rate, old)
	return rate.Sub(rate, scale)
}

// MaxHistoricalAddresses bounds point-in-time lookups per request
const MaxHistoricalAddresses = 100

// normalizeAddresses lower-cases, trims and de-duplicates addresses keeping their order
func normalizeAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = entities.NormalizeAddress(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
