package accounting

import (
	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

type addressSet map[string]struct{}

func newAddressSet(addrs []string) addressSet {
	s := make(addressSet, len(addrs))
	for _, a := range addrs {
		s[entities.NormalizeAddress(a)] = struct{}{}
	}
	return s
}

func (s addressSet) has(addr string) bool {
	_, ok := s[addr]
	return ok
}

// Flow is a net movement of tokens into (+1) or out of (-1) a classified set
type Flow struct {
	Metric entities.MetricType
	Sign   int
}

// Classifier tags transfers against a DAO's known address sets
type Classifier struct {
	sets []classifiedSet
	burn addressSet
}

type classifiedSet struct {
	metric  entities.MetricType
	members addressSet
}

// NewClassifier builds a classifier from DAO configuration.
// The zero address is always a mint/burn address.
func NewClassifier(sets config.AddressSets) *Classifier {
	burn := newAddressSet(sets.Burn)
	burn[entities.ZeroAddress] = struct{}{}
	return &Classifier{
		sets: []classifiedSet{
			{metric: entities.MetricCexSupply, members: newAddressSet(sets.CEX)},
			{metric: entities.MetricDexSupply, members: newAddressSet(sets.DEX)},
			{metric: entities.MetricLendingSupply, members: newAddressSet(sets.Lending)},
			{metric: entities.MetricTreasury, members: newAddressSet(sets.Treasury)},
		},
		burn: burn,
	}
}

// IsBurn reports whether addr mints or burns supply
func (c *Classifier) IsBurn(addr string) bool {
	return c.burn.has(addr)
}

// Flows returns the sets with exactly one side of the transfer inside them.
// A transfer within one set is not a net flow for that set.
func (c *Classifier) Flows(from, to string) []Flow {
	var flows []Flow
	for _, s := range c.sets {
		in, out := s.members.has(to), s.members.has(from)
		if in == out {
			continue
		}
		sign := 1
		if out {
			sign = -1
		}
		flows = append(flows, Flow{Metric: s.metric, Sign: sign})
	}
	return flows
}

// SupplyFlow returns +1 for a mint, -1 for a burn and 0 otherwise
func (c *Classifier) SupplyFlow(from, to string) int {
	fromBurn, toBurn := c.IsBurn(from), c.IsBurn(to)
	switch {
	case fromBurn && !toBurn:
		return 1
	case toBurn && !fromBurn:
		return -1
	}
	return 0
}

// Tag sets the classification flags of a transfer
func (c *Classifier) Tag(t *entities.Transfer) {
	for _, f := range c.Flows(t.FromAddress, t.ToAddress) {
		switch f.Metric {
		case entities.MetricCexSupply:
			t.IsCex = true
		case entities.MetricDexSupply:
			t.IsDex = true
		case entities.MetricLendingSupply:
			t.IsLending = true
		case entities.MetricTreasury:
			t.IsTreasury = true
		}
	}
	t.IsTotal = c.SupplyFlow(t.FromAddress, t.ToAddress) != 0
}
