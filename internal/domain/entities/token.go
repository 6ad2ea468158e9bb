package entities

import (
	"fmt"
	"math/big"
	"time"
)

// TokenField names one of the running supply counters kept on a Token
type TokenField string

const (
	FieldTotalSupply       TokenField = "total_supply"
	FieldDelegatedSupply   TokenField = "delegated_supply"
	FieldCexSupply         TokenField = "cex_supply"
	FieldDexSupply         TokenField = "dex_supply"
	FieldLendingSupply     TokenField = "lending_supply"
	FieldCirculatingSupply TokenField = "circulating_supply"
	FieldTreasury          TokenField = "treasury"
)

// TokenFields lists every supply counter in a stable order
var TokenFields = []TokenField{
	FieldTotalSupply,
	FieldDelegatedSupply,
	FieldCexSupply,
	FieldDexSupply,
	FieldLendingSupply,
	FieldCirculatingSupply,
	FieldTreasury,
}

// Valid reports whether f is a known supply counter
func (f TokenField) Valid() bool {
	for _, known := range TokenFields {
		if f == known {
			return true
		}
	}
	return false
}

// Token represents a governance token and its running supply counters
type Token struct {
	ID                string // token contract address
	DaoID             DaoID
	Decimals          int
	TotalSupply       *big.Int
	DelegatedSupply   *big.Int
	CexSupply         *big.Int
	DexSupply         *big.Int
	LendingSupply     *big.Int
	CirculatingSupply *big.Int
	Treasury          *big.Int
	UpdatedAt         time.Time
}

// NewToken creates a token with every counter at zero
func NewToken(id string, daoID DaoID, decimals int) *Token {
	t := &Token{ID: NormalizeAddress(id), DaoID: daoID, Decimals: decimals}
	for _, f := range TokenFields {
		_ = t.SetField(f, new(big.Int))
	}
	return t
}

// Field returns the current value of a supply counter
func (t *Token) Field(f TokenField) (*big.Int, error) {
	p, err := t.fieldPtr(f)
	if err != nil {
		return nil, err
	}
	return orZero(*p), nil
}

// SetField replaces the value of a supply counter
func (t *Token) SetField(f TokenField, v *big.Int) error {
	p, err := t.fieldPtr(f)
	if err != nil {
		return err
	}
	*p = CopyAmount(v)
	return nil
}

// ExpectedCirculating computes totalSupply - treasury
func (t *Token) ExpectedCirculating() *big.Int {
	return new(big.Int).Sub(orZero(t.TotalSupply), orZero(t.Treasury))
}

// Clone returns a deep copy of the token
func (t *Token) Clone() *Token {
	c := *t
	for _, f := range TokenFields {
		v, _ := t.Field(f)
		_ = c.SetField(f, v)
	}
	return &c
}

func (t *Token) fieldPtr(f TokenField) (**big.Int, error) {
	switch f {
	case FieldTotalSupply:
		return &t.TotalSupply, nil
	case FieldDelegatedSupply:
		return &t.DelegatedSupply, nil
	case FieldCexSupply:
		return &t.CexSupply, nil
	case FieldDexSupply:
		return &t.DexSupply, nil
	case FieldLendingSupply:
		return &t.LendingSupply, nil
	case FieldCirculatingSupply:
		return &t.CirculatingSupply, nil
	case FieldTreasury:
		return &t.Treasury, nil
	}
	return nil, fmt.Errorf("unknown token field %q", f)
}
