package database

import (
	"math/big"
	"strings"
	"testing"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

func TestBuildTransferQuery(t *testing.T) {
	dao := entities.DaoENS
	addr := "0x1111111111111111111111111111111111111111"
	cex := true

	tests := []struct {
		name      string
		filter    entities.TransferFilter
		countOnly bool
		contains  []string
		args      int
	}{
		{
			name:      "count without filters",
			filter:    entities.TransferFilter{},
			countOnly: true,
			contains:  []string{"SELECT COUNT(*) FROM transfers"},
			args:      0,
		},
		{
			name:      "address matches both sides with one argument",
			filter:    entities.TransferFilter{DaoID: &dao, Address: &addr},
			countOnly: true,
			contains:  []string{"dao_id = $1", "(from_address = $2 OR to_address = $2)"},
			args:      2,
		},
		{
			name: "amount range and flags",
			filter: entities.TransferFilter{
				MinAmount: big.NewInt(10),
				MaxAmount: big.NewInt(20),
				IsCex:     &cex,
			},
			countOnly: true,
			contains:  []string{"value >= $1::NUMERIC", "value <= $2::NUMERIC", "is_cex = $3"},
			args:      3,
		},
		{
			name: "sort by amount ascending with pagination",
			filter: entities.TransferFilter{
				DaoID:  &dao,
				SortBy: entities.SortByAmount,
				Limit:  10,
				Offset: 20,
			},
			contains: []string{"ORDER BY value ASC, log_index ASC", "LIMIT $2 OFFSET $3"},
			args:     3,
		},
		{
			name:     "default sort is newest first",
			filter:   entities.DefaultTransferFilter(),
			contains: []string{"ORDER BY block_timestamp DESC, log_index DESC", "LIMIT $1 OFFSET $2"},
			args:     2,
		},
		{
			name:     "no limit",
			filter:   entities.TransferFilter{},
			contains: []string{"LIMIT ALL OFFSET $1"},
			args:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildTransferQuery(tt.filter, tt.countOnly)

			for _, want := range tt.contains {
				if !strings.Contains(query, want) {
					t.Errorf("expected query to contain %q, got:\n%s", want, query)
				}
			}
			if len(args) != tt.args {
				t.Errorf("expected %d args, got %d", tt.args, len(args))
			}
		})
	}
}

func TestDeltaFromAfter(t *testing.T) {
	d, err := deltaFromAfter("700", big.NewInt(-300))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Before.String() != "1000" || d.After.String() != "700" {
		t.Errorf("expected 1000 -> 700, got %s -> %s", d.Before, d.After)
	}
	if !d.Changed() {
		t.Error("expected delta to report a change")
	}

	if _, err := deltaFromAfter("not-a-number", big.NewInt(1)); err == nil {
		t.Error("expected error for malformed amount")
	}
}
