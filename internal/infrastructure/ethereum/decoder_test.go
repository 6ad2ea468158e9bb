package ethereum

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

var (
	testTxHash    = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	testTimestamp = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
)

func newTestDecoder(t *testing.T, opts ...testutil.DAOOption) *Decoder {
	t.Helper()
	d, err := NewDecoder(testutil.CreateTestDAO(opts...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

// buildLog packs the non-indexed values of kind and attaches the indexed topics
func buildLog(t *testing.T, d *Decoder, kind events.Kind, contract string, indexed []common.Hash, data ...interface{}) types.Log {
	t.Helper()
	for id, spec := range d.specs {
		if spec.kind != kind {
			continue
		}
		packed, err := spec.event.Inputs.NonIndexed().Pack(data...)
		if err != nil {
			t.Fatalf("failed to pack %s: %v", kind, err)
		}
		return types.Log{
			Address:     common.HexToAddress(contract),
			Topics:      append([]common.Hash{id}, indexed...),
			Data:        packed,
			BlockNumber: 12345678,
			TxHash:      testTxHash,
			Index:       5,
		}
	}
	t.Fatalf("no event %s", kind)
	return types.Log{}
}

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func TestDecoder_TopicHashes(t *testing.T) {
	d := newTestDecoder(t)

	want := map[events.Kind]common.Hash{
		events.KindTransfer:             TransferEventSignature,
		events.KindDelegateChanged:      common.HexToHash("0x3134e8a2e6d97e929a7e54011ea5485d7d196dd5f0ba4d4ef95803e8e3fc257f"),
		events.KindDelegateVotesChanged: common.HexToHash("0xdec2bacdd2f05b59de34da9b523dff8be42e5e38e818c82fdb0bae774387a724"),
	}

	for id, spec := range d.specs {
		if expected, ok := want[spec.kind]; ok && id != expected {
			t.Errorf("%s topic mismatch: expected %s, got %s", spec.kind, expected.Hex(), id.Hex())
		}
	}
	if len(d.Topics()) != 8 {
		t.Errorf("expected 8 topics, got %d", len(d.Topics()))
	}
	if len(d.Addresses()) != 2 {
		t.Errorf("expected token and governor addresses, got %d", len(d.Addresses()))
	}
}

func TestDecoder_Transfer(t *testing.T) {
	d := newTestDecoder(t)
	value := big.NewInt(1000000)

	log := buildLog(t, d, events.KindTransfer, testutil.TokenAddress,
		[]common.Hash{addressTopic(testutil.AliceAddress), addressTopic(testutil.BobAddress)},
		value,
	)

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transfer, ok := ev.(events.Transfer)
	if !ok {
		t.Fatalf("expected Transfer, got %T", ev)
	}
	if transfer.From != testutil.AliceAddress {
		t.Errorf("From mismatch: got %s", transfer.From)
	}
	if transfer.To != testutil.BobAddress {
		t.Errorf("To mismatch: got %s", transfer.To)
	}
	if transfer.Value.Cmp(value) != 0 {
		t.Errorf("Value mismatch: expected %s, got %s", value, transfer.Value)
	}

	ref := transfer.Meta()
	if ref.DaoID != entities.DaoENS {
		t.Errorf("DaoID mismatch: got %s", ref.DaoID)
	}
	if ref.Contract != testutil.TokenAddress {
		t.Errorf("Contract mismatch: expected lowercase, got %s", ref.Contract)
	}
	if ref.TxHash != testTxHash.Hex() {
		t.Errorf("TxHash mismatch: got %s", ref.TxHash)
	}
	if ref.LogIndex != 5 || ref.BlockNumber != 12345678 {
		t.Errorf("position mismatch: got block %d log %d", ref.BlockNumber, ref.LogIndex)
	}
	if !ref.Timestamp.Equal(testTimestamp) {
		t.Errorf("Timestamp mismatch: got %v", ref.Timestamp)
	}
}

func TestDecoder_DelegateChanged(t *testing.T) {
	d := newTestDecoder(t)

	log := buildLog(t, d, events.KindDelegateChanged, testutil.TokenAddress, []common.Hash{
		addressTopic(testutil.AliceAddress),
		addressTopic(entities.ZeroAddress),
		addressTopic(testutil.BobAddress),
	})
	if len(log.Data) != 0 {
		t.Fatalf("expected empty data, got %d bytes", len(log.Data))
	}

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dc := ev.(events.DelegateChanged)
	if dc.Delegator != testutil.AliceAddress || dc.FromDelegate != entities.ZeroAddress || dc.ToDelegate != testutil.BobAddress {
		t.Errorf("unexpected delegation: %+v", dc)
	}
}

func TestDecoder_DelegateVotesChanged(t *testing.T) {
	d := newTestDecoder(t)

	log := buildLog(t, d, events.KindDelegateVotesChanged, testutil.TokenAddress,
		[]common.Hash{addressTopic(testutil.BobAddress)},
		big.NewInt(100), big.NewInt(350),
	)

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vc := ev.(events.DelegateVotesChanged)
	if vc.Delegate != testutil.BobAddress {
		t.Errorf("Delegate mismatch: got %s", vc.Delegate)
	}
	if vc.PreviousBalance.Int64() != 100 || vc.NewBalance.Int64() != 350 {
		t.Errorf("balances mismatch: got %s -> %s", vc.PreviousBalance, vc.NewBalance)
	}
}

func TestDecoder_ProposalCreated(t *testing.T) {
	d := newTestDecoder(t)

	log := buildLog(t, d, events.KindProposalCreated, testutil.GovernorAddress, nil,
		big.NewInt(42),
		common.HexToAddress(testutil.AliceAddress),
		[]common.Address{common.HexToAddress(testutil.TreasuryAddress)},
		[]*big.Int{big.NewInt(0)},
		[]string{"transfer(address,uint256)"},
		[][]byte{{0xde, 0xad}},
		big.NewInt(19000010),
		big.NewInt(19045000),
		"Fund the grants program",
	)

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pc := ev.(events.ProposalCreated)
	if pc.ProposalID != "42" {
		t.Errorf("ProposalID mismatch: got %s", pc.ProposalID)
	}
	if pc.Proposer != testutil.AliceAddress {
		t.Errorf("Proposer mismatch: got %s", pc.Proposer)
	}
	if len(pc.Targets) != 1 || pc.Targets[0] != testutil.TreasuryAddress {
		t.Errorf("Targets mismatch: got %v", pc.Targets)
	}
	if len(pc.Values) != 1 || pc.Values[0] != "0" {
		t.Errorf("Values mismatch: got %v", pc.Values)
	}
	if len(pc.Calldatas) != 1 || pc.Calldatas[0] != "0xdead" {
		t.Errorf("Calldatas mismatch: got %v", pc.Calldatas)
	}
	if pc.StartBlock != 19000010 || pc.EndBlock != 19045000 {
		t.Errorf("window mismatch: got %d-%d", pc.StartBlock, pc.EndBlock)
	}
	if pc.Description != "Fund the grants program" {
		t.Errorf("Description mismatch: got %q", pc.Description)
	}
}

func TestDecoder_VoteCast(t *testing.T) {
	d := newTestDecoder(t)

	log := buildLog(t, d, events.KindVoteCast, testutil.GovernorAddress,
		[]common.Hash{addressTopic(testutil.BobAddress)},
		big.NewInt(42), uint8(1), big.NewInt(250), "lgtm",
	)

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vote := ev.(events.VoteCast)
	if vote.Voter != testutil.BobAddress || vote.ProposalID != "42" {
		t.Errorf("unexpected vote: %+v", vote)
	}
	if vote.Support != entities.SupportFor {
		t.Errorf("Support mismatch: got %v", vote.Support)
	}
	if vote.Weight.Int64() != 250 || vote.Reason != "lgtm" {
		t.Errorf("weight/reason mismatch: got %s %q", vote.Weight, vote.Reason)
	}
}

func TestDecoder_ProposalQueued(t *testing.T) {
	d := newTestDecoder(t)
	eta := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	log := buildLog(t, d, events.KindProposalQueued, testutil.GovernorAddress, nil,
		big.NewInt(42), big.NewInt(eta.Unix()),
	)

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queued := ev.(events.ProposalQueued)
	if queued.ProposalID != "42" || !queued.ETA.Equal(eta) {
		t.Errorf("unexpected queue event: %+v", queued)
	}
}

func TestDecoder_CustomFieldNames(t *testing.T) {
	d := newTestDecoder(t, func(dao *config.DAO) {
		dao.Fields.StartBlock = "voteStart"
		dao.Fields.EndBlock = "voteEnd"
	})

	log := buildLog(t, d, events.KindProposalCreated, testutil.GovernorAddress, nil,
		big.NewInt(7),
		common.HexToAddress(testutil.AliceAddress),
		[]common.Address{},
		[]*big.Int{},
		[]string{},
		[][]byte{},
		big.NewInt(100),
		big.NewInt(200),
		"",
	)

	ev, err := d.Decode(log, testTimestamp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pc := ev.(events.ProposalCreated)
	if pc.StartBlock != 100 || pc.EndBlock != 200 {
		t.Errorf("window mismatch: got %d-%d", pc.StartBlock, pc.EndBlock)
	}
}

func TestDecoder_InvalidLogs(t *testing.T) {
	d := newTestDecoder(t)

	valid := buildLog(t, d, events.KindTransfer, testutil.TokenAddress,
		[]common.Hash{addressTopic(testutil.AliceAddress), addressTopic(testutil.BobAddress)},
		big.NewInt(1),
	)

	tests := []struct {
		name   string
		modify func(log types.Log) types.Log
	}{
		{
			name: "no topics",
			modify: func(log types.Log) types.Log {
				log.Topics = nil
				return log
			},
		},
		{
			name: "unknown topic",
			modify: func(log types.Log) types.Log {
				log.Topics = []common.Hash{common.HexToHash("0x1234"), log.Topics[1], log.Topics[2]}
				return log
			},
		},
		{
			name: "missing indexed topic",
			modify: func(log types.Log) types.Log {
				log.Topics = log.Topics[:2]
				return log
			},
		},
		{
			name: "token event from governor",
			modify: func(log types.Log) types.Log {
				log.Address = common.HexToAddress(testutil.GovernorAddress)
				return log
			},
		},
		{
			name: "empty data",
			modify: func(log types.Log) types.Log {
				log.Data = nil
				return log
			},
		},
		{
			name: "truncated data",
			modify: func(log types.Log) types.Log {
				log.Data = log.Data[:16]
				return log
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := valid
			log.Topics = append([]common.Hash(nil), valid.Topics...)
			log.Data = append([]byte(nil), valid.Data...)

			_, err := d.Decode(tt.modify(log), testTimestamp)
			if !errors.Is(err, entities.ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}
