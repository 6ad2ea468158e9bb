package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func setupPortfolioServiceTest() (*PortfolioService, *testutil.MemoryLedger) {
	ledger := testutil.NewMemoryLedger()
	return NewPortfolioService(ledger, ledger, testRegistry(), nil, zap.NewNop()), ledger
}

func TestPortfolioService_GetAccount(t *testing.T) {
	service, ledger := setupPortfolioServiceTest()

	ledger.PutBalance(entities.AccountBalance{
		AccountID: testutil.AliceAddress,
		TokenID:   testutil.TokenAddress,
		Balance:   amount(1500000000000000000),
		Delegate:  testutil.BobAddress,
	})
	power := entities.NewAccountPower(testutil.AliceAddress, entities.DaoENS)
	power.VotingPower = amount(250)
	power.VotesCount = 2
	power.ProposalsCount = 1
	power.RecordVote(testutil.BaseTime)
	ledger.PutPower(power)

	ledger.AddTransfers(
		testutil.CreateTestTransfer(testutil.WithTxHash("0x01")),
		testutil.CreateTestTransfer(testutil.WithTxHash("0x02")),
		testutil.CreateTestTransfer(testutil.WithTxHash("0x03"), testutil.WithFromAddress(testutil.BobAddress), testutil.WithToAddress(testutil.AliceAddress)),
	)

	response, err := service.GetAccount(context.Background(), entities.DaoENS, "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := response.Data
	if got.Balance != "1500000000000000000" || got.BalanceFormatted != "1.5" {
		t.Errorf("unexpected balance %s (%s)", got.Balance, got.BalanceFormatted)
	}
	if got.Delegate != testutil.BobAddress {
		t.Errorf("expected delegate bob, got %s", got.Delegate)
	}
	if got.VotingPower != "250" || got.VotesCount != 2 || got.ProposalsCount != 1 {
		t.Errorf("unexpected power fields: %+v", got)
	}
	if got.LastVoteAt == nil || *got.LastVoteAt != "2024-01-15T10:30:00Z" {
		t.Errorf("unexpected last vote %v", got.LastVoteAt)
	}
	if got.TransfersOut != 2 || got.TransfersIn != 1 {
		t.Errorf("expected 2 out and 1 in, got %d out %d in", got.TransfersOut, got.TransfersIn)
	}
}

func TestPortfolioService_GetAccount_Unknown(t *testing.T) {
	service, _ := setupPortfolioServiceTest()
	ctx := context.Background()

	response, err := service.GetAccount(ctx, entities.DaoENS, testutil.CharlieAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Data.Balance != "0" || response.Data.VotingPower != "0" || response.Data.Delegate != "" {
		t.Errorf("expected zero profile, got %+v", response.Data)
	}

	response, err = service.GetAccount(ctx, entities.DaoUNI, testutil.CharlieAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != nil {
		t.Error("expected nil response for unconfigured dao")
	}
}
