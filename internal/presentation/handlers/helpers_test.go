package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/accounting"
	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

// testAPI is the full /api/v1 router over an in-memory ledger
type testAPI struct {
	router http.Handler
	ledger *testutil.MemoryLedger
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	ledger := testutil.NewMemoryLedger()
	daos := config.NewRegistry([]config.DAO{testutil.CreateTestDAO()})
	logger := zap.NewNop()

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewTokenHandler(services.NewTokenService(ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewSupplyHandler(services.NewSupplyService(ledger, ledger, ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewDelegatesHandler(services.NewDelegatesService(ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewHoldersHandler(services.NewHoldersService(ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewTransferHandler(services.NewTransferService(ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewProposalHandler(services.NewProposalService(ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewStatsHandler(services.NewStatsService(ledger, ledger, daos, nil, logger), logger).RegisterRoutes(r)
		NewPortfolioHandler(services.NewPortfolioService(ledger, ledger, daos, nil, logger), logger).RegisterRoutes(r)
	})

	return &testAPI{router: r, ledger: ledger}
}

// seedGovernance runs a small history through the processor:
// a mint to alice, alice sending 300 to an exchange, alice delegating to bob
// and bob voting on proposal 42 an hour ago.
func (a *testAPI) seedGovernance(t *testing.T) {
	t.Helper()

	p := accounting.NewProcessor(testutil.CreateTestDAO(), a.ledger, zap.NewNop())
	recent := time.Now().UTC().Add(-time.Hour)

	seq := []events.Event{
		testutil.TransferEvent(1, entities.ZeroAddress, testutil.AliceAddress, 1000),
		testutil.TransferEvent(2, testutil.AliceAddress, testutil.CexAddress, 300),
		testutil.DelegateChangedEvent(3, testutil.AliceAddress, entities.ZeroAddress, testutil.BobAddress),
		testutil.VotesChangedEvent(4, testutil.BobAddress, 0, 700),
		testutil.ProposalCreatedEvent(5, "42", testutil.AliceAddress, 100),
		testutil.VoteCastEvent(6, "42", testutil.BobAddress, entities.SupportFor, 700, testutil.AtTime(recent)),
	}
	for _, ev := range seq {
		if _, err := p.Process(context.Background(), ev); err != nil {
			t.Fatalf("failed to process %s: %v", ev.Kind(), err)
		}
	}
}

func (a *testAPI) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// getJSON requests path, checks the status and decodes a 200 body into out
func (a *testAPI) getJSON(t *testing.T, path string, wantStatus int, out interface{}) {
	t.Helper()
	rec := a.get(t, path)
	if rec.Code != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d (%s)", path, wantStatus, rec.Code, rec.Body.String())
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("GET %s: failed to decode response: %v", path, err)
	}
}

func expectStatus(t *testing.T, a *testAPI, path string, want int) {
	t.Helper()
	a.getJSON(t, path, want, nil)
}
