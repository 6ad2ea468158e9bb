package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// DAOFile is the layout of the DAO configuration file
type DAOFile struct {
	DAOs []DAO `yaml:"daos" validate:"required,min=1,dive"`
}

// DAO holds static classification data and governance parameters for one DAO
type DAO struct {
	ID              entities.DaoID `yaml:"id" validate:"required,oneof=ENS UNI ARB OP GTC COMP SCR"`
	ChainID         int64          `yaml:"chainId" default:"1" validate:"gt=0"`
	TokenAddress    string         `yaml:"tokenAddress" validate:"required,eth_addr"`
	GovernorAddress string         `yaml:"governorAddress" validate:"omitempty,eth_addr"`
	Decimals        int            `yaml:"decimals" default:"18" validate:"gte=0,lte=36"`
	StartBlock      int64          `yaml:"startBlock" validate:"gte=0"`

	Addresses  AddressSets `yaml:"addresses"`
	Governance Governance  `yaml:"governance"`
	Fields     FieldMap    `yaml:"fields"`

	// DecrementPreviousDelegate also lowers the previous delegate's delegationsCount
	// on redelegation. Off by default: counts only ever increase.
	DecrementPreviousDelegate bool `yaml:"decrementPreviousDelegate"`

	BucketOrdering entities.BucketOrdering `yaml:"bucketOrdering" default:"arrival" validate:"oneof=arrival timestamp"`
}

// AddressSets tags known addresses for supply classification
type AddressSets struct {
	CEX      []string `yaml:"cex" validate:"dive,eth_addr"`
	DEX      []string `yaml:"dex" validate:"dive,eth_addr"`
	Lending  []string `yaml:"lending" validate:"dive,eth_addr"`
	Treasury []string `yaml:"treasury" validate:"dive,eth_addr"`
	// Burn addresses besides the zero address, which is always a mint/burn address
	Burn []string `yaml:"burn" validate:"dive,eth_addr"`
}

// Governance holds the parameters of derived proposal status
type Governance struct {
	VotingPeriodSeconds int64   `yaml:"votingPeriodSeconds" default:"604800" validate:"gt=0"`
	Quorum              string  `yaml:"quorum" default:"0" validate:"numeric"`
	SecondsPerBlock     float64 `yaml:"secondsPerBlock" default:"12" validate:"gt=0"`
}

// FieldMap names the event arguments of one DAO's contracts
type FieldMap struct {
	TransferFrom  string `yaml:"transferFrom" default:"from"`
	TransferTo    string `yaml:"transferTo" default:"to"`
	TransferValue string `yaml:"transferValue" default:"value"`

	Delegator    string `yaml:"delegator" default:"delegator"`
	FromDelegate string `yaml:"fromDelegate" default:"fromDelegate"`
	ToDelegate   string `yaml:"toDelegate" default:"toDelegate"`

	Delegate        string `yaml:"delegate" default:"delegate"`
	PreviousBalance string `yaml:"previousBalance" default:"previousBalance"`
	NewBalance      string `yaml:"newBalance" default:"newBalance"`

	ProposalID string `yaml:"proposalId" default:"proposalId"`
	Proposer   string `yaml:"proposer" default:"proposer"`
	// startBlock/endBlock on Bravo-style governors, voteStart/voteEnd on newer ones
	StartBlock string `yaml:"startBlock" default:"startBlock"`
	EndBlock   string `yaml:"endBlock" default:"endBlock"`
	Voter      string `yaml:"voter" default:"voter"`
	Support    string `yaml:"support" default:"support"`
	Weight     string `yaml:"weight" default:"weight"`
	Reason     string `yaml:"reason" default:"reason"`
	ETA        string `yaml:"eta" default:"eta"`
}

// QuorumAmount returns the quorum as an integer amount
func (g Governance) QuorumAmount() *big.Int {
	q, err := entities.ParseAmount(g.Quorum)
	if err != nil {
		return new(big.Int)
	}
	return q
}

// TokenID returns the storage id of the DAO token
func (d DAO) TokenID() string {
	return entities.NormalizeAddress(d.TokenAddress)
}

// LoadDAOs reads, defaults and validates the DAO configuration file
func LoadDAOs(path string) ([]DAO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dao config %s: %w", path, err)
	}
	return ParseDAOs(data)
}

// ParseDAOs decodes DAO configuration from YAML
func ParseDAOs(data []byte) ([]DAO, error) {
	var file DAOFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode dao config: %w", err)
	}

	for i := range file.DAOs {
		if err := defaults.Set(&file.DAOs[i]); err != nil {
			return nil, fmt.Errorf("failed to apply defaults: %w", err)
		}
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid dao config: %w", err)
	}

	seen := make(map[entities.DaoID]struct{}, len(file.DAOs))
	for i := range file.DAOs {
		d := &file.DAOs[i]
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("invalid dao config: duplicate dao %s", d.ID)
		}
		seen[d.ID] = struct{}{}
		if _, err := entities.ParseAmount(d.Governance.Quorum); err != nil {
			return nil, fmt.Errorf("invalid dao config: dao %s quorum: %w", d.ID, err)
		}
		d.normalize()
	}

	return file.DAOs, nil
}

func (d *DAO) normalize() {
	d.TokenAddress = entities.NormalizeAddress(d.TokenAddress)
	d.GovernorAddress = entities.NormalizeAddress(d.GovernorAddress)
	for _, set := range []*[]string{&d.Addresses.CEX, &d.Addresses.DEX, &d.Addresses.Lending, &d.Addresses.Treasury, &d.Addresses.Burn} {
		for i, a := range *set {
			(*set)[i] = entities.NormalizeAddress(a)
		}
	}
}

// Registry indexes the configured DAOs by id
type Registry struct {
	daos  map[entities.DaoID]DAO
	order []entities.DaoID
}

// NewRegistry builds a registry, keeping configuration order
func NewRegistry(daos []DAO) *Registry {
	r := &Registry{daos: make(map[entities.DaoID]DAO, len(daos))}
	for _, d := range daos {
		if _, ok := r.daos[d.ID]; !ok {
			r.order = append(r.order, d.ID)
		}
		r.daos[d.ID] = d
	}
	return r
}

// Get returns the DAO with the given id
func (r *Registry) Get(id entities.DaoID) (DAO, bool) {
	d, ok := r.daos[id]
	return d, ok
}

// All returns every DAO in configuration order
func (r *Registry) All() []DAO {
	out := make([]DAO, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.daos[id])
	}
	return out
}
