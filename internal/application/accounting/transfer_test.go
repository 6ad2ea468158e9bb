package accounting

import (
	"context"
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func newTestProcessor(t *testing.T, opts ...testutil.DAOOption) (*Processor, *testutil.MemoryLedger) {
	t.Helper()
	ledger := testutil.NewMemoryLedger()
	return NewProcessor(testutil.CreateTestDAO(opts...), ledger, zap.NewNop()), ledger
}

func mustProcess(t *testing.T, p *Processor, ev events.Event, want ReasonCode) Result {
	t.Helper()
	res, err := p.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected error processing %s: %v", ev.Kind(), err)
	}
	if res.Reason != want {
		t.Fatalf("expected reason %s for %s, got %s", want, ev.Kind(), res.Reason)
	}
	return res
}

func bucketKey(metric entities.MetricType) entities.BucketKey {
	return entities.BucketKey{
		Date:       entities.DayStart(testutil.BaseTime),
		MetricType: metric,
		DaoID:      entities.DaoENS,
		TokenID:    testutil.TokenAddress,
	}
}

func assertInt(t *testing.T, name string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Errorf("%s: expected %d, got %v", name, want, got)
	}
}

func TestProcessor_MintTreasuryCexScenario(t *testing.T) {
	p, ledger := newTestProcessor(t)
	token := testutil.TokenAddress

	mustProcess(t, p, testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 1000), ReasonOK)
	tok := ledger.Token(token)
	assertInt(t, "total after mint", tok.TotalSupply, 1000)
	assertInt(t, "circulating after mint", tok.CirculatingSupply, 1000)
	assertInt(t, "treasury after mint", tok.Treasury, 0)

	mustProcess(t, p, testutil.TransferEvent(2, testutil.AliceAddress, testutil.TreasuryAddress, 400), ReasonOK)
	tok = ledger.Token(token)
	assertInt(t, "treasury", tok.Treasury, 400)
	assertInt(t, "circulating", tok.CirculatingSupply, 600)
	assertInt(t, "total unchanged", tok.TotalSupply, 1000)

	mustProcess(t, p, testutil.TransferEvent(3, testutil.AliceAddress, testutil.CexAddress, 100), ReasonOK)
	tok = ledger.Token(token)
	assertInt(t, "cex", tok.CexSupply, 100)
	assertInt(t, "alice balance", ledger.Balance(testutil.AliceAddress, token), 500)
	assertInt(t, "sum of balances", ledger.SumBalances(token), 1000)

	circ := ledger.Bucket(bucketKey(entities.MetricCirculatingSupply))
	if circ == nil {
		t.Fatal("expected circulating supply bucket")
	}
	assertInt(t, "circulating open", circ.Open, 1000)
	assertInt(t, "circulating close", circ.Close, 600)
	assertInt(t, "circulating low", circ.Low, 600)
	assertInt(t, "circulating average", circ.Average, 800)
	assertInt(t, "circulating volume", circ.Volume, 1400)
	if circ.Count != 2 {
		t.Errorf("expected 2 circulating observations, got %d", circ.Count)
	}

	total := ledger.Bucket(bucketKey(entities.MetricTotalSupply))
	if total == nil || total.Count != 1 {
		t.Fatalf("expected one total supply observation, got %+v", total)
	}
	assertInt(t, "total supply volume", total.Volume, 1000)

	transfers := ledger.Transfers()
	if len(transfers) != 3 {
		t.Fatalf("expected 3 transfers, got %d", len(transfers))
	}
	if !transfers[0].IsTotal || !transfers[1].IsTreasury || !transfers[2].IsCex {
		t.Errorf("unexpected classification flags %+v", transfers)
	}
}

func TestProcessor_ConservationAndCirculating(t *testing.T) {
	p, ledger := newTestProcessor(t)
	token := testutil.TokenAddress

	steps := []events.Transfer{
		testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 5000),
		testutil.TransferEvent(2, entities.ZeroAddress, testutil.TreasuryAddress, 2000),
		testutil.TransferEvent(3, testutil.AliceAddress, testutil.BobAddress, 1200),
		testutil.TransferEvent(4, testutil.TreasuryAddress, testutil.CharlieAddr, 300),
		testutil.TransferEvent(5, testutil.BobAddress, testutil.DexAddress, 700),
		testutil.TransferEvent(6, testutil.DexAddress, testutil.LendingAddress, 100),
		testutil.TransferEvent(7, testutil.AliceAddress, testutil.BurnAddress, 800),
		testutil.TransferEvent(8, testutil.CharlieAddr, entities.ZeroAddress, 50),
		testutil.TransferEvent(9, testutil.LendingAddress, testutil.CexAddress, 100),
		testutil.TransferEvent(10, testutil.CexAddress, testutil.CexAddress2, 60),
	}

	for i, ev := range steps {
		mustProcess(t, p, ev, ReasonOK)
		tok := ledger.Token(token)
		if ledger.SumBalances(token).Cmp(tok.TotalSupply) != 0 {
			t.Fatalf("step %d: sum of balances %s != total supply %s", i, ledger.SumBalances(token), tok.TotalSupply)
		}
		if tok.CirculatingSupply.Cmp(tok.ExpectedCirculating()) != 0 {
			t.Fatalf("step %d: circulating %s != total - treasury %s", i, tok.CirculatingSupply, tok.ExpectedCirculating())
		}
	}

	tok := ledger.Token(token)
	assertInt(t, "total", tok.TotalSupply, 6150)
	assertInt(t, "treasury", tok.Treasury, 1700)
	assertInt(t, "dex", tok.DexSupply, 600)
	assertInt(t, "lending", tok.LendingSupply, 0)
	assertInt(t, "cex", tok.CexSupply, 100)
	assertInt(t, "burn address holds nothing", ledger.Balance(testutil.BurnAddress, token), 0)
}

func TestProcessor_TransferIdempotent(t *testing.T) {
	p, ledger := newTestProcessor(t)
	mint := testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 1000)
	move := testutil.TransferEvent(2, testutil.AliceAddress, testutil.CexAddress, 250)

	mustProcess(t, p, mint, ReasonOK)
	mustProcess(t, p, move, ReasonOK)
	before := ledger.Token(testutil.TokenAddress)
	bucketBefore := ledger.Bucket(bucketKey(entities.MetricCexSupply))

	mustProcess(t, p, move, ReasonDuplicate)
	mustProcess(t, p, mint, ReasonDuplicate)

	after := ledger.Token(testutil.TokenAddress)
	for _, f := range entities.TokenFields {
		b, _ := before.Field(f)
		a, _ := after.Field(f)
		if a.Cmp(b) != 0 {
			t.Errorf("%s changed on replay: %s -> %s", f, b, a)
		}
	}
	assertInt(t, "alice", ledger.Balance(testutil.AliceAddress, testutil.TokenAddress), 750)
	if got := ledger.Bucket(bucketKey(entities.MetricCexSupply)); got.Count != bucketBefore.Count {
		t.Errorf("bucket count changed on replay: %d -> %d", bucketBefore.Count, got.Count)
	}
	if len(ledger.Transfers()) != 2 {
		t.Errorf("expected 2 transfers, got %d", len(ledger.Transfers()))
	}
}

func TestProcessor_XorClassification(t *testing.T) {
	p, ledger := newTestProcessor(t)

	mustProcess(t, p, testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 1000), ReasonOK)
	mustProcess(t, p, testutil.TransferEvent(2, testutil.AliceAddress, testutil.CexAddress, 300), ReasonOK)
	assertInt(t, "cex after deposit", ledger.Token(testutil.TokenAddress).CexSupply, 300)

	mustProcess(t, p, testutil.TransferEvent(3, testutil.CexAddress, testutil.CexAddress2, 200), ReasonOK)
	assertInt(t, "cex after internal move", ledger.Token(testutil.TokenAddress).CexSupply, 300)

	mustProcess(t, p, testutil.TransferEvent(4, testutil.CexAddress2, testutil.BobAddress, 50), ReasonOK)
	assertInt(t, "cex after withdrawal", ledger.Token(testutil.TokenAddress).CexSupply, 250)

	b := ledger.Bucket(bucketKey(entities.MetricCexSupply))
	if b.Count != 2 {
		t.Errorf("expected 2 cex observations, got %d", b.Count)
	}
}

func TestProcessor_ZeroAndSelfTransfers(t *testing.T) {
	p, ledger := newTestProcessor(t)

	mustProcess(t, p, testutil.TransferEvent(1, testutil.AliceAddress, testutil.CexAddress, 0), ReasonOK)
	mustProcess(t, p, testutil.TransferEvent(2, testutil.CexAddress, testutil.CexAddress, 10), ReasonOK)

	if n := len(ledger.Transfers()); n != 2 {
		t.Errorf("expected both transfers recorded, got %d", n)
	}
	if n := ledger.BucketCount(); n != 0 {
		t.Errorf("expected no bucket observations, got %d", n)
	}
	assertInt(t, "cex", ledger.Token(testutil.TokenAddress).CexSupply, 0)
	assertInt(t, "cex balance", ledger.Balance(testutil.CexAddress, testutil.TokenAddress), 0)
}

func TestProcessor_NegativeBalanceIsWarning(t *testing.T) {
	p, ledger := newTestProcessor(t)

	res := mustProcess(t, p, testutil.TransferEvent(1, testutil.AliceAddress, testutil.BobAddress, 50), ReasonOK)
	if res.Warnings != 1 {
		t.Errorf("expected 1 warning, got %d", res.Warnings)
	}
	assertInt(t, "alice", ledger.Balance(testutil.AliceAddress, testutil.TokenAddress), -50)

	// the late mint reconciles the balance
	mustProcess(t, p, testutil.TransferEvent(0, entities.ZeroAddress, testutil.AliceAddress, 50), ReasonOK)
	assertInt(t, "alice reconciled", ledger.Balance(testutil.AliceAddress, testutil.TokenAddress), 0)
}

func TestProcessor_BalanceHistory(t *testing.T) {
	p, ledger := newTestProcessor(t)

	mustProcess(t, p, testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 1000), ReasonOK)
	mustProcess(t, p, testutil.TransferEvent(2, testutil.AliceAddress, testutil.BobAddress, 300), ReasonOK)

	rows := ledger.BalanceHistory()
	if len(rows) != 3 {
		t.Fatalf("expected 3 balance history rows, got %d", len(rows))
	}
	last := rows[2]
	if last.AccountID != testutil.AliceAddress {
		t.Fatalf("expected sender row last, got %s", last.AccountID)
	}
	assertInt(t, "alice snapshot", last.Balance, 700)
	assertInt(t, "alice delta", last.Delta, -300)
}

func TestProcessor_TimestampOrderedBuckets(t *testing.T) {
	p, ledger := newTestProcessor(t, testutil.DAOWithOrdering(entities.OrderTimestamp))
	day := testutil.BaseTime

	mustProcess(t, p, testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 1000, testutil.AtTime(day.Add(3*time.Hour))), ReasonOK)
	// delivered later but mined earlier the same day
	mustProcess(t, p, testutil.TransferEvent(2, entities.ZeroAddress, testutil.AliceAddress, 500, testutil.AtTime(day.Add(-time.Hour))), ReasonOK)

	b := ledger.Bucket(bucketKey(entities.MetricTotalSupply))
	if b == nil {
		t.Fatal("expected bucket")
	}
	assertInt(t, "open", b.Open, 1500)
	assertInt(t, "close", b.Close, 1000)
}
