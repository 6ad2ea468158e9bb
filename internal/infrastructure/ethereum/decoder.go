package ethereum

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
)

// TransferEventSignature is the keccak256 hash of Transfer(address,address,uint256)
var TransferEventSignature = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// source tells which contract may emit an event
type source int

const (
	fromToken source = iota
	fromGovernor
)

type eventSpec struct {
	event  abi.Event
	kind   events.Kind
	source source
}

// Decoder turns raw logs of one DAO into typed events. Event argument names
// come from the DAO field map; topic hashes depend only on argument types.
type Decoder struct {
	dao      config.DAO
	fields   config.FieldMap
	token    common.Address
	governor common.Address
	specs    map[common.Hash]eventSpec
}

// NewDecoder builds the event ABI of a DAO
func NewDecoder(dao config.DAO) (*Decoder, error) {
	fields := dao.Fields
	if err := defaults.Set(&fields); err != nil {
		return nil, fmt.Errorf("failed to apply field defaults: %w", err)
	}

	d := &Decoder{
		dao:    dao,
		fields: fields,
		token:  common.HexToAddress(dao.TokenAddress),
		specs:  make(map[common.Hash]eventSpec),
	}
	if dao.GovernorAddress != "" {
		d.governor = common.HexToAddress(dao.GovernorAddress)
	}

	f := fields
	defs := []struct {
		kind   events.Kind
		source source
		args   abi.Arguments
	}{
		{events.KindTransfer, fromToken, abi.Arguments{
			arg(f.TransferFrom, "address", true),
			arg(f.TransferTo, "address", true),
			arg(f.TransferValue, "uint256", false),
		}},
		{events.KindDelegateChanged, fromToken, abi.Arguments{
			arg(f.Delegator, "address", true),
			arg(f.FromDelegate, "address", true),
			arg(f.ToDelegate, "address", true),
		}},
		{events.KindDelegateVotesChanged, fromToken, abi.Arguments{
			arg(f.Delegate, "address", true),
			arg(f.PreviousBalance, "uint256", false),
			arg(f.NewBalance, "uint256", false),
		}},
		{events.KindProposalCreated, fromGovernor, abi.Arguments{
			arg(f.ProposalID, "uint256", false),
			arg(f.Proposer, "address", false),
			arg("targets", "address[]", false),
			arg("values", "uint256[]", false),
			arg("signatures", "string[]", false),
			arg("calldatas", "bytes[]", false),
			arg(f.StartBlock, "uint256", false),
			arg(f.EndBlock, "uint256", false),
			arg("description", "string", false),
		}},
		{events.KindVoteCast, fromGovernor, abi.Arguments{
			arg(f.Voter, "address", true),
			arg(f.ProposalID, "uint256", false),
			arg(f.Support, "uint8", false),
			arg(f.Weight, "uint256", false),
			arg(f.Reason, "string", false),
		}},
		{events.KindProposalCanceled, fromGovernor, abi.Arguments{
			arg(f.ProposalID, "uint256", false),
		}},
		{events.KindProposalQueued, fromGovernor, abi.Arguments{
			arg(f.ProposalID, "uint256", false),
			arg(f.ETA, "uint256", false),
		}},
		{events.KindProposalExecuted, fromGovernor, abi.Arguments{
			arg(f.ProposalID, "uint256", false),
		}},
	}

	for _, def := range defs {
		name := string(def.kind)
		ev := abi.NewEvent(name, name, false, def.args)
		d.specs[ev.ID] = eventSpec{event: ev, kind: def.kind, source: def.source}
	}

	return d, nil
}

var abiTypes = map[string]abi.Type{}

func init() {
	for _, t := range []string{"address", "uint8", "uint256", "string", "address[]", "uint256[]", "string[]", "bytes[]"} {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %s: %v", t, err))
		}
		abiTypes[t] = typ
	}
}

func arg(name, typ string, indexed bool) abi.Argument {
	return abi.Argument{Name: name, Type: abiTypes[typ], Indexed: indexed}
}

// Topics returns the topic0 hashes of every decodable event
func (d *Decoder) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.specs))
	for id := range d.specs {
		topics = append(topics, id)
	}
	return topics
}

// Addresses returns the contracts whose logs the decoder accepts
func (d *Decoder) Addresses() []common.Address {
	addrs := []common.Address{d.token}
	if d.governor != (common.Address{}) {
		addrs = append(addrs, d.governor)
	}
	return addrs
}

// Decode parses a raw log. Logs that cannot be decoded wrap entities.ErrInvalidEvent.
func (d *Decoder) Decode(log types.Log, blockTimestamp time.Time) (events.Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", entities.ErrInvalidEvent)
	}
	spec, ok := d.specs[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("%w: unknown topic %s", entities.ErrInvalidEvent, log.Topics[0].Hex())
	}

	want := d.token
	if spec.source == fromGovernor {
		want = d.governor
	}
	if log.Address != want {
		return nil, fmt.Errorf("%w: %s from unexpected contract %s", entities.ErrInvalidEvent, spec.kind, log.Address.Hex())
	}

	var indexed abi.Arguments
	for _, a := range spec.event.Inputs {
		if a.Indexed {
			indexed = append(indexed, a)
		}
	}
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%w: %s expects %d topics, got %d", entities.ErrInvalidEvent, spec.kind, len(indexed)+1, len(log.Topics))
	}

	values := make(map[string]interface{})
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %s topics: %v", entities.ErrInvalidEvent, spec.kind, err)
	}
	if err := spec.event.Inputs.UnpackIntoMap(values, log.Data); err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", entities.ErrInvalidEvent, spec.kind, err)
	}

	ref := events.Ref{
		DaoID:       d.dao.ID,
		Contract:    strings.ToLower(log.Address.Hex()),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    int(log.Index),
		BlockNumber: int64(log.BlockNumber),
		Timestamp:   blockTimestamp.UTC(),
	}

	v := argValues(values)
	f := d.fields
	var ev events.Event
	switch spec.kind {
	case events.KindTransfer:
		ev = events.Transfer{Ref: ref, From: v.address(f.TransferFrom), To: v.address(f.TransferTo), Value: v.uint(f.TransferValue)}
	case events.KindDelegateChanged:
		ev = events.DelegateChanged{
			Ref:          ref,
			Delegator:    v.address(f.Delegator),
			FromDelegate: v.address(f.FromDelegate),
			ToDelegate:   v.address(f.ToDelegate),
		}
	case events.KindDelegateVotesChanged:
		ev = events.DelegateVotesChanged{
			Ref:             ref,
			Delegate:        v.address(f.Delegate),
			PreviousBalance: v.uint(f.PreviousBalance),
			NewBalance:      v.uint(f.NewBalance),
		}
	case events.KindProposalCreated:
		ev = events.ProposalCreated{
			Ref:         ref,
			ProposalID:  v.id(f.ProposalID),
			Proposer:    v.address(f.Proposer),
			Targets:     v.addresses("targets"),
			Values:      v.uints("values"),
			Signatures:  v.strings("signatures"),
			Calldatas:   v.bytesList("calldatas"),
			StartBlock:  v.int64(f.StartBlock),
			EndBlock:    v.int64(f.EndBlock),
			Description: v.string("description"),
		}
	case events.KindVoteCast:
		ev = events.VoteCast{
			Ref:        ref,
			Voter:      v.address(f.Voter),
			ProposalID: v.id(f.ProposalID),
			Support:    entities.VoteSupport(v.uint8(f.Support)),
			Weight:     v.uint(f.Weight),
			Reason:     v.string(f.Reason),
		}
	case events.KindProposalCanceled:
		ev = events.ProposalCanceled{Ref: ref, ProposalID: v.id(f.ProposalID)}
	case events.KindProposalQueued:
		ev = events.ProposalQueued{Ref: ref, ProposalID: v.id(f.ProposalID), ETA: time.Unix(v.int64(f.ETA), 0).UTC()}
	case events.KindProposalExecuted:
		ev = events.ProposalExecuted{Ref: ref, ProposalID: v.id(f.ProposalID)}
	}

	if v.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entities.ErrInvalidEvent, spec.kind, v.err)
	}
	return ev, nil
}

// argReader extracts typed values from an unpacked argument map and keeps the first error
type argReader struct {
	values map[string]interface{}
	err    error
}

func argValues(values map[string]interface{}) *argReader {
	return &argReader{values: values}
}

func (r *argReader) get(name string) interface{} {
	v, ok := r.values[name]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing argument %q", name)
	}
	return v
}

func (r *argReader) fail(name string, v interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf("argument %q has unexpected type %T", name, v)
	}
}

func (r *argReader) address(name string) string {
	v := r.get(name)
	a, ok := v.(common.Address)
	if !ok {
		r.fail(name, v)
		return ""
	}
	return strings.ToLower(a.Hex())
}

func (r *argReader) uint(name string) *big.Int {
	v := r.get(name)
	n, ok := v.(*big.Int)
	if !ok {
		r.fail(name, v)
		return nil
	}
	return n
}

func (r *argReader) id(name string) string {
	n := r.uint(name)
	if n == nil {
		return ""
	}
	return n.String()
}

func (r *argReader) int64(name string) int64 {
	n := r.uint(name)
	if n == nil {
		return 0
	}
	if !n.IsInt64() {
		r.fail(name, n)
		return 0
	}
	return n.Int64()
}

func (r *argReader) uint8(name string) uint8 {
	v := r.get(name)
	n, ok := v.(uint8)
	if !ok {
		r.fail(name, v)
	}
	return n
}

func (r *argReader) string(name string) string {
	v := r.get(name)
	s, ok := v.(string)
	if !ok {
		r.fail(name, v)
	}
	return s
}

func (r *argReader) addresses(name string) []string {
	v := r.get(name)
	list, ok := v.([]common.Address)
	if !ok {
		r.fail(name, v)
		return nil
	}
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = strings.ToLower(a.Hex())
	}
	return out
}

func (r *argReader) uints(name string) []string {
	v := r.get(name)
	list, ok := v.([]*big.Int)
	if !ok {
		r.fail(name, v)
		return nil
	}
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.String()
	}
	return out
}

func (r *argReader) strings(name string) []string {
	v := r.get(name)
	list, ok := v.([]string)
	if !ok {
		r.fail(name, v)
	}
	return list
}

func (r *argReader) bytesList(name string) []string {
	v := r.get(name)
	list, ok := v.([][]byte)
	if !ok {
		r.fail(name, v)
		return nil
	}
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = "0x" + common.Bytes2Hex(b)
	}
	return out
}
