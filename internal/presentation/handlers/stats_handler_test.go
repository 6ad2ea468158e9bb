package handlers

import (
	"net/http"
	"testing"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func TestStatsHandler_GetTokenStats(t *testing.T) {
	api := newTestAPI(t)
	api.seedGovernance(t)

	var response services.TokenStatsResponse
	api.getJSON(t, "/api/v1/daos/ens/stats", http.StatusOK, &response)

	stats := response.Data
	if stats.DaoID != "ENS" {
		t.Errorf("expected dao ENS, got %s", stats.DaoID)
	}
	if stats.TokenAddress != testutil.TokenAddress {
		t.Errorf("expected token %s, got %s", testutil.TokenAddress, stats.TokenAddress)
	}
	if stats.TotalTransfers != 2 {
		t.Errorf("expected 2 transfers, got %d", stats.TotalTransfers)
	}
	if stats.TotalVolume != "1300" {
		t.Errorf("expected volume 1300, got %s", stats.TotalVolume)
	}
	if stats.HolderCount != 2 {
		t.Errorf("expected 2 holders, got %d", stats.HolderCount)
	}
	// Seeded transfers are from 2024, outside the rolling windows
	if stats.Transfers24h != 0 {
		t.Errorf("expected no transfers in the last 24h, got %d", stats.Transfers24h)
	}
}

func TestStatsHandler_GetTokenStats_NotFound(t *testing.T) {
	api := newTestAPI(t)

	expectStatus(t, api, "/api/v1/daos/comp/stats", http.StatusNotFound)
	expectStatus(t, api, "/api/v1/daos/unknown/stats", http.StatusNotFound)
}
