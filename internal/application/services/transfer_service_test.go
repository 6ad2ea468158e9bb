package services

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func setupTransferServiceTest() (*TransferService, *testutil.MemoryLedger) {
	ledger := testutil.NewMemoryLedger()
	return NewTransferService(ledger, testRegistry(), nil, zap.NewNop()), ledger
}

func TestTransferService_GetTransactions(t *testing.T) {
	service, ledger := setupTransferServiceTest()

	ledger.AddTransfers(testutil.CreateMultipleTransfers(5)...)
	other := testutil.CreateTestTransfer(testutil.WithTxHash("0xuni"))
	other.DaoID = entities.DaoUNI
	ledger.AddTransfers(other)

	filter := entities.DefaultTransferFilter()
	filter.Limit = 2

	response, err := service.GetTransactions(context.Background(), entities.DaoENS, filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if response.Total != 5 {
		t.Errorf("expected 5 ENS transfers, got %d", response.Total)
	}
	if len(response.Transfers) != 2 {
		t.Fatalf("expected page of 2, got %d", len(response.Transfers))
	}
	if !response.HasMore {
		t.Error("expected more pages")
	}
	// newest first
	if response.Transfers[0].Value != "5000" || response.Transfers[1].Value != "4000" {
		t.Errorf("unexpected order: %s, %s", response.Transfers[0].Value, response.Transfers[1].Value)
	}
	if response.Transfers[0].BlockTimestamp != "2024-01-15T10:34:00Z" {
		t.Errorf("unexpected timestamp %s", response.Transfers[0].BlockTimestamp)
	}
}

func TestTransferService_GetTransactions_Filters(t *testing.T) {
	service, ledger := setupTransferServiceTest()

	ledger.AddTransfers(
		testutil.CreateTestTransfer(testutil.WithTxHash("0x01"), testutil.WithValue(amount(10)), testutil.WithCex()),
		testutil.CreateTestTransfer(testutil.WithTxHash("0x02"), testutil.WithValue(amount(20)), testutil.WithFromAddress(testutil.CharlieAddr)),
		testutil.CreateTestTransfer(testutil.WithTxHash("0x03"), testutil.WithValue(amount(30)), testutil.WithToAddress(testutil.CharlieAddr)),
	)

	tests := []struct {
		name   string
		filter entities.TransferFilter
		want   int64
	}{
		{"cex only", entities.TransferFilter{IsCex: testutil.PointerTo(true)}, 1},
		{"either side", entities.TransferFilter{Address: testutil.PointerTo(testutil.CharlieAddr)}, 2},
		{"min amount", entities.TransferFilter{MinAmount: amount(20)}, 2},
		{"amount window", entities.TransferFilter{MinAmount: amount(15), MaxAmount: amount(25)}, 1},
		{"sender", entities.TransferFilter{FromAddress: testutil.PointerTo(testutil.AliceAddress)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := service.GetTransactions(context.Background(), entities.DaoENS, tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if response.Total != tt.want {
				t.Errorf("expected %d transfers, got %d", tt.want, response.Total)
			}
		})
	}
}

func TestTransferService_GetTransactions_Flags(t *testing.T) {
	service, ledger := setupTransferServiceTest()

	tr := testutil.CreateTestTransfer(testutil.WithCex())
	tr.IsTreasury = true
	ledger.AddTransfers(tr)

	response, err := service.GetTransactions(context.Background(), entities.DaoENS, entities.TransferFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := response.Transfers[0]
	if !got.IsCex || !got.IsTreasury || got.IsDex || got.IsLending || got.IsTotal {
		t.Errorf("unexpected flags: %+v", got)
	}
	if response.Limit != defaultLimit {
		t.Errorf("expected default limit, got %d", response.Limit)
	}
}

func TestTransferService_GetTransactions_UnknownDAO(t *testing.T) {
	service, _ := setupTransferServiceTest()

	response, err := service.GetTransactions(context.Background(), entities.DaoSCR, entities.TransferFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != nil {
		t.Error("expected nil response for unconfigured dao")
	}
}

func TestGenerateCacheKey(t *testing.T) {
	service, _ := setupTransferServiceTest()

	base := entities.DefaultTransferFilter()
	withCex := base
	withCex.IsCex = testutil.PointerTo(true)
	withMin := base
	withMin.MinAmount = amount(5)

	keys := map[string]string{
		"base":     service.generateCacheKey(entities.DaoENS, base),
		"cex":      service.generateCacheKey(entities.DaoENS, withCex),
		"min":      service.generateCacheKey(entities.DaoENS, withMin),
		"otherDao": service.generateCacheKey(entities.DaoUNI, base),
	}

	seen := make(map[string]string)
	for name, key := range keys {
		if prev, dup := seen[key]; dup {
			t.Errorf("filters %s and %s share cache key %s", prev, name, key)
		}
		seen[key] = name
	}

	if !strings.HasPrefix(keys["base"], "dao:ENS:transfers:") {
		t.Errorf("unexpected key format %s", keys["base"])
	}
	if again := service.generateCacheKey(entities.DaoENS, base); again != keys["base"] {
		t.Error("expected deterministic cache key")
	}
}
