package entities

import (
	"fmt"
	"strings"
)

// DaoID identifies a supported DAO. The set is closed and shared with the API layer.
type DaoID string

const (
	DaoENS  DaoID = "ENS"
	DaoUNI  DaoID = "UNI"
	DaoARB  DaoID = "ARB"
	DaoOP   DaoID = "OP"
	DaoGTC  DaoID = "GTC"
	DaoCOMP DaoID = "COMP"
	DaoSCR  DaoID = "SCR"
)

var knownDaos = map[DaoID]struct{}{
	DaoENS:  {},
	DaoUNI:  {},
	DaoARB:  {},
	DaoOP:   {},
	DaoGTC:  {},
	DaoCOMP: {},
	DaoSCR:  {},
}

// Valid reports whether d is one of the supported DAOs
func (d DaoID) Valid() bool {
	_, ok := knownDaos[d]
	return ok
}

// ParseDaoID converts user input into a DaoID
func ParseDaoID(s string) (DaoID, error) {
	d := DaoID(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown dao %q", s)
	}
	return d, nil
}
