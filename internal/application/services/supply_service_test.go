package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func setupSupplyServiceTest() (*SupplyService, *testutil.MemoryLedger) {
	ledger := testutil.NewMemoryLedger()
	service := NewSupplyService(ledger, ledger, ledger, testRegistry(), nil, zap.NewNop())
	service.now = fixedClock(testutil.BaseTime)
	return service, ledger
}

func seedToken(ledger *testutil.MemoryLedger, field entities.TokenField, v int64) {
	token := entities.NewToken(testutil.TokenAddress, entities.DaoENS, 18)
	_ = token.SetField(field, amount(v))
	ledger.PutToken(token)
}

func TestSupplyService_GetSupplyComparison(t *testing.T) {
	service, ledger := setupSupplyServiceTest()
	ctx := context.Background()

	seedToken(ledger, entities.FieldCirculatingSupply, 1500)
	ledger.PutBucket(testBucket(testutil.BaseTime.AddDate(0, 0, -7), entities.MetricCirculatingSupply, 1000))
	// newer than the comparison date, must be ignored
	ledger.PutBucket(testBucket(testutil.BaseTime.AddDate(0, 0, -2), entities.MetricCirculatingSupply, 1400))

	response, err := service.GetSupplyComparison(ctx, entities.DaoENS, entities.MetricCirculatingSupply, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response == nil {
		t.Fatal("expected non-nil response")
	}

	got := response.Data
	if got.OldValue != "1000" {
		t.Errorf("expected old value 1000, got %s", got.OldValue)
	}
	if got.CurrentValue != "1500" {
		t.Errorf("expected current value 1500, got %s", got.CurrentValue)
	}
	if got.ChangeRate != "500000000000000000" {
		t.Errorf("expected change rate 500000000000000000, got %s", got.ChangeRate)
	}
	if got.ChangeRateDecimal != "0.5" {
		t.Errorf("expected change rate decimal 0.5, got %s", got.ChangeRateDecimal)
	}
	if got.Days != 7 || got.Metric != "CIRCULATING_SUPPLY" || got.DaoID != "ENS" {
		t.Errorf("unexpected echo fields: %+v", got)
	}
}

func TestSupplyService_GetSupplyComparison_NoHistory(t *testing.T) {
	service, ledger := setupSupplyServiceTest()
	ctx := context.Background()

	seedToken(ledger, entities.FieldTreasury, 800)

	response, err := service.GetSupplyComparison(ctx, entities.DaoENS, entities.MetricTreasury, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if response.Data.OldValue != "0" {
		t.Errorf("expected old value 0, got %s", response.Data.OldValue)
	}
	if response.Data.ChangeRate != "0" {
		t.Errorf("expected change rate 0 when old value is 0, got %s", response.Data.ChangeRate)
	}
	if response.Data.ChangeRateDecimal != "0" {
		t.Errorf("expected change rate decimal 0, got %s", response.Data.ChangeRateDecimal)
	}
}

func TestSupplyService_GetSupplyComparison_FallsBackToLatestBucket(t *testing.T) {
	service, ledger := setupSupplyServiceTest()
	ctx := context.Background()

	ledger.PutBucket(testBucket(testutil.BaseTime.AddDate(0, 0, -10), entities.MetricCexSupply, 2000))
	ledger.PutBucket(testBucket(testutil.BaseTime, entities.MetricCexSupply, 1500))

	response, err := service.GetSupplyComparison(ctx, entities.DaoENS, entities.MetricCexSupply, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if response.Data.CurrentValue != "1500" {
		t.Errorf("expected current value from today's bucket, got %s", response.Data.CurrentValue)
	}
	if response.Data.OldValue != "2000" {
		t.Errorf("expected old value 2000, got %s", response.Data.OldValue)
	}
	if response.Data.ChangeRateDecimal != "-0.25" {
		t.Errorf("expected change rate decimal -0.25, got %s", response.Data.ChangeRateDecimal)
	}
}

func TestSupplyService_GetSupplyComparison_UnknownDAO(t *testing.T) {
	service, _ := setupSupplyServiceTest()

	response, err := service.GetSupplyComparison(context.Background(), entities.DaoUNI, entities.MetricTotalSupply, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != nil {
		t.Error("expected nil response for unconfigured dao")
	}
}

func TestSupplyService_GetSupplyComparison_UnknownMetric(t *testing.T) {
	service, _ := setupSupplyServiceTest()

	_, err := service.GetSupplyComparison(context.Background(), entities.DaoENS, entities.MetricType("VOTES"), 7)
	if err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestSupplyService_GetActiveSupply(t *testing.T) {
	service, ledger := setupSupplyServiceTest()
	ctx := context.Background()

	recent := testutil.BaseTime.AddDate(0, 0, -10)
	old := testutil.BaseTime.AddDate(0, 0, -200)

	voter := entities.NewAccountPower(testutil.AliceAddress, entities.DaoENS)
	voter.VotingPower = amount(2500000000000000000)
	voter.RecordVote(recent)
	ledger.PutPower(voter)

	stale := entities.NewAccountPower(testutil.BobAddress, entities.DaoENS)
	stale.VotingPower = amount(700)
	stale.RecordVote(old)
	ledger.PutPower(stale)

	silent := entities.NewAccountPower(testutil.CharlieAddr, entities.DaoENS)
	silent.VotingPower = amount(900)
	ledger.PutPower(silent)

	response, err := service.GetActiveSupply(ctx, entities.DaoENS, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if response.Data.Days != 90 {
		t.Errorf("expected default of 90 days, got %d", response.Data.Days)
	}
	if response.Data.ActiveSupply != "2500000000000000000" {
		t.Errorf("expected active supply 2500000000000000000, got %s", response.Data.ActiveSupply)
	}
	if response.Data.ActiveSupplyFormatted != "2.5" {
		t.Errorf("expected formatted 2.5, got %s", response.Data.ActiveSupplyFormatted)
	}

	response, err = service.GetActiveSupply(ctx, entities.DaoENS, 365)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Data.ActiveSupply != "2500000000000000700" {
		t.Errorf("expected both voters within a year, got %s", response.Data.ActiveSupply)
	}
}

func TestSupplyService_GetDailyMetrics(t *testing.T) {
	service, ledger := setupSupplyServiceTest()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ledger.PutBucket(testBucket(testutil.BaseTime.AddDate(0, 0, -i), entities.MetricTotalSupply, int64(100*(i+1))))
	}
	ledger.PutBucket(testBucket(testutil.BaseTime, entities.MetricTreasury, 1))

	from := testutil.BaseTime.AddDate(0, 0, -3)
	to := testutil.BaseTime.AddDate(0, 0, -1)

	response, err := service.GetDailyMetrics(ctx, entities.DaoENS, entities.MetricTotalSupply, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(response.Data) != 3 {
		t.Fatalf("expected 3 days, got %d", len(response.Data))
	}
	if response.Data[0].Date != "2024-01-12" || response.Data[2].Date != "2024-01-14" {
		t.Errorf("expected 2024-01-12..2024-01-14, got %s..%s", response.Data[0].Date, response.Data[2].Date)
	}
	if response.Data[0].Close != "400" {
		t.Errorf("expected first close 400, got %s", response.Data[0].Close)
	}
}

func TestSupplyService_GetDailyMetrics_Defaults(t *testing.T) {
	service, ledger := setupSupplyServiceTest()

	ledger.PutBucket(testBucket(testutil.BaseTime.AddDate(0, 0, -29), entities.MetricTotalSupply, 1))
	ledger.PutBucket(testBucket(testutil.BaseTime.AddDate(0, 0, -31), entities.MetricTotalSupply, 2))

	response, err := service.GetDailyMetrics(context.Background(), entities.DaoENS, entities.MetricTotalSupply, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(response.Data) != 1 {
		t.Errorf("expected only buckets of the last 30 days, got %d", len(response.Data))
	}
}

func TestSupplyService_GetDailyMetrics_InvertedRange(t *testing.T) {
	service, _ := setupSupplyServiceTest()

	_, err := service.GetDailyMetrics(context.Background(), entities.DaoENS, entities.MetricTotalSupply,
		testutil.BaseTime, testutil.BaseTime.AddDate(0, 0, -1))
	if err == nil {
		t.Fatal("expected error when from is after to")
	}
}
