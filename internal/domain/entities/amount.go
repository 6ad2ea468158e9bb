package entities

import (
	"fmt"
	"math/big"
	"strings"
)

// ZeroAddress is the mint/burn counterparty of ERC-20 transfers
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lower-cases a hex address so it can be used as a key
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ParseAmount parses a base-10 integer amount
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// MustAmount parses s and panics on malformed input. Intended for constants and tests.
func MustAmount(s string) *big.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// AmountString renders a possibly nil amount as a decimal string
func AmountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// AbsDiff returns |a - b|
func AbsDiff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(orZero(a), orZero(b))
	return d.Abs(d)
}

// CopyAmount returns a copy of v, treating nil as zero
func CopyAmount(v *big.Int) *big.Int {
	return new(big.Int).Set(orZero(v))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
