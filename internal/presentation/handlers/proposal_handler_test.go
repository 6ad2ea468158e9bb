package handlers

import (
	"net/http"
	"testing"

	"github.com/bimakw/dao-indexer/internal/application/services"
	"github.com/bimakw/dao-indexer/internal/testutil"
)

func TestProposalHandler_GetProposals(t *testing.T) {
	api := newTestAPI(t)
	api.seedGovernance(t)

	var response services.ProposalsResponse
	api.getJSON(t, "/api/v1/daos/ens/proposals", http.StatusOK, &response)

	if len(response.Data) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(response.Data))
	}
	p := response.Data[0]
	if p.ProposalID != "42" {
		t.Errorf("expected proposal 42, got %s", p.ProposalID)
	}
	if p.Proposer != testutil.AliceAddress {
		t.Errorf("expected proposer %s, got %s", testutil.AliceAddress, p.Proposer)
	}
	// Voting closed long ago with 700 for against a quorum of 100
	if p.Status != "QUEUED" {
		t.Errorf("expected derived status QUEUED, got %s", p.Status)
	}
	if p.StoredStatus != "PENDING" {
		t.Errorf("expected stored status PENDING, got %s", p.StoredStatus)
	}
	if p.ForVotes != "700" || p.AgainstVotes != "0" || p.AbstainVotes != "0" {
		t.Errorf("unexpected tallies for=%s against=%s abstain=%s", p.ForVotes, p.AgainstVotes, p.AbstainVotes)
	}
}

func TestProposalHandler_GetProposals_StatusFilter(t *testing.T) {
	api := newTestAPI(t)
	api.seedGovernance(t)

	tests := []struct {
		status string
		want   int
	}{
		{"queued", 1},
		{"ACTIVE", 0},
		{"defeated", 0},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var response services.ProposalsResponse
			api.getJSON(t, "/api/v1/daos/ens/proposals?status="+tt.status, http.StatusOK, &response)
			if len(response.Data) != tt.want {
				t.Errorf("expected %d proposals, got %d", tt.want, len(response.Data))
			}
			if response.Pagination.Total != int64(tt.want) {
				t.Errorf("expected total %d, got %d", tt.want, response.Pagination.Total)
			}
		})
	}
}

func TestProposalHandler_GetProposal(t *testing.T) {
	api := newTestAPI(t)
	api.seedGovernance(t)

	var response services.ProposalResponse
	api.getJSON(t, "/api/v1/daos/ens/proposals/42", http.StatusOK, &response)

	if response.Data.ProposalID != "42" {
		t.Errorf("expected proposal 42, got %s", response.Data.ProposalID)
	}
	if len(response.Votes) != 1 {
		t.Fatalf("expected 1 vote, got %d", len(response.Votes))
	}
	vote := response.Votes[0]
	if vote.Voter != testutil.BobAddress {
		t.Errorf("expected voter %s, got %s", testutil.BobAddress, vote.Voter)
	}
	if vote.Support != "for" {
		t.Errorf("expected support for, got %s", vote.Support)
	}
	if vote.VotingPower != "700" {
		t.Errorf("expected weight 700, got %s", vote.VotingPower)
	}
}

func TestProposalHandler_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.seedGovernance(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown status", "/api/v1/daos/ens/proposals?status=WAITING", http.StatusBadRequest},
		{"bad limit", "/api/v1/daos/ens/proposals?limit=x", http.StatusBadRequest},
		{"non numeric id", "/api/v1/daos/ens/proposals/abc", http.StatusBadRequest},
		{"negative id", "/api/v1/daos/ens/proposals/-1", http.StatusBadRequest},
		{"missing proposal", "/api/v1/daos/ens/proposals/99", http.StatusNotFound},
		{"unconfigured dao", "/api/v1/daos/op/proposals", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, api, tt.path, tt.want)
		})
	}
}
