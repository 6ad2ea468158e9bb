package services

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func setupHoldersServiceTest() (*HoldersService, *testutil.MemoryLedger) {
	ledger := testutil.NewMemoryLedger()
	return NewHoldersService(ledger, testRegistry(), nil, zap.NewNop()), ledger
}

func seedHolders(ledger *testutil.MemoryLedger) {
	ledger.PutBalance(entities.AccountBalance{AccountID: testutil.AliceAddress, TokenID: testutil.TokenAddress, Balance: amount(500), Delegate: testutil.BobAddress})
	ledger.PutBalance(entities.AccountBalance{AccountID: testutil.BobAddress, TokenID: testutil.TokenAddress, Balance: amount(1500)})
	ledger.PutBalance(entities.AccountBalance{AccountID: testutil.CharlieAddr, TokenID: testutil.TokenAddress, Balance: amount(0)})
	ledger.PutBalance(entities.AccountBalance{AccountID: testutil.CexAddress, TokenID: testutil.TokenAddress, Balance: amount(100)})
}

func TestHoldersService_GetHolders(t *testing.T) {
	service, ledger := setupHoldersServiceTest()
	seedHolders(ledger)

	response, err := service.GetHolders(context.Background(), entities.DaoENS, HolderQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(response.Data) != 3 {
		t.Fatalf("expected 3 holders with positive balance, got %d", len(response.Data))
	}
	if response.Data[0].Address != testutil.BobAddress || response.Data[0].Rank != 1 {
		t.Errorf("expected bob ranked first, got %+v", response.Data[0])
	}
	if response.Data[1].Delegate != testutil.BobAddress {
		t.Errorf("expected alice to delegate to bob, got %q", response.Data[1].Delegate)
	}
	if response.Pagination.Total != 3 || response.Pagination.HasMore {
		t.Errorf("unexpected pagination: %+v", response.Pagination)
	}
	if response.Pagination.Limit != defaultLimit {
		t.Errorf("expected default limit, got %d", response.Pagination.Limit)
	}
}

func TestHoldersService_GetHolders_AscendingPage(t *testing.T) {
	service, ledger := setupHoldersServiceTest()
	seedHolders(ledger)

	response, err := service.GetHolders(context.Background(), entities.DaoENS, HolderQuery{Asc: true, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(response.Data) != 1 {
		t.Fatalf("expected a single holder, got %d", len(response.Data))
	}
	if response.Data[0].Address != testutil.AliceAddress {
		t.Errorf("expected alice second smallest, got %s", response.Data[0].Address)
	}
	if response.Data[0].Rank != 2 {
		t.Errorf("expected rank 2, got %d", response.Data[0].Rank)
	}
	if !response.Pagination.HasMore {
		t.Error("expected more pages")
	}
}

func TestHoldersService_GetHolders_UnknownDAO(t *testing.T) {
	service, _ := setupHoldersServiceTest()

	response, err := service.GetHolders(context.Background(), entities.DaoARB, HolderQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != nil {
		t.Error("expected nil response for unconfigured dao")
	}
}

func TestHoldersService_GetHistoricalBalances(t *testing.T) {
	service, ledger := setupHoldersServiceTest()

	ledger.AddBalanceHistory(
		entities.BalanceHistory{TxHash: "0x01", AccountID: testutil.AliceAddress, TokenID: testutil.TokenAddress, Balance: amount(1000), Delta: amount(1000), BlockNumber: 100, Timestamp: testutil.BaseTime},
		entities.BalanceHistory{TxHash: "0x02", AccountID: testutil.AliceAddress, TokenID: testutil.TokenAddress, Balance: amount(600), Delta: amount(-400), BlockNumber: 150, Timestamp: testutil.BaseTime},
		entities.BalanceHistory{TxHash: "0x03", AccountID: testutil.AliceAddress, TokenID: testutil.TokenAddress, Balance: amount(100), Delta: amount(-500), BlockNumber: 300, Timestamp: testutil.BaseTime},
	)

	response, err := service.GetHistoricalBalances(context.Background(), entities.DaoENS,
		[]string{"0x1111111111111111111111111111111111111111", testutil.BobAddress}, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if response.BlockNumber != 200 {
		t.Errorf("expected block 200 echoed, got %d", response.BlockNumber)
	}
	if len(response.Data) != 2 {
		t.Fatalf("expected one entry per address, got %d", len(response.Data))
	}

	alice := response.Data[0]
	if alice.Balance != "600" {
		t.Errorf("expected alice balance 600 at block 200, got %s", alice.Balance)
	}
	if alice.BlockNumber == nil || *alice.BlockNumber != 150 {
		t.Errorf("expected snapshot block 150, got %v", alice.BlockNumber)
	}
	if alice.Timestamp == nil || *alice.Timestamp != "2024-01-15T10:30:00Z" {
		t.Errorf("unexpected timestamp %v", alice.Timestamp)
	}

	bob := response.Data[1]
	if bob.Balance != "0" || bob.BlockNumber != nil {
		t.Errorf("expected zero balance without snapshot for bob, got %+v", bob)
	}
}

func TestHoldersService_GetHistoricalBalances_Validation(t *testing.T) {
	service, _ := setupHoldersServiceTest()
	ctx := context.Background()

	tooMany := make([]string, MaxHistoricalAddresses+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("0x%040x", i+1)
	}

	tests := []struct {
		name      string
		addresses []string
		block     int64
	}{
		{"no addresses", nil, 10},
		{"blank addresses", []string{" ", ""}, 10},
		{"too many addresses", tooMany, 10},
		{"negative block", []string{testutil.AliceAddress}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.GetHistoricalBalances(ctx, entities.DaoENS, tt.addresses, tt.block); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
