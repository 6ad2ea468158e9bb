package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Ensure TransferRepo implements TransferRepository
var _ repositories.TransferRepository = (*TransferRepo)(nil)

// TransferRepo implements TransferRepository using PostgreSQL
type TransferRepo struct {
	db *sqlx.DB
}

// NewTransferRepo creates a new transfer repository
func NewTransferRepo(db *sqlx.DB) *TransferRepo {
	return &TransferRepo{db: db}
}

// GetByFilter retrieves transfers matching the given filter
func (r *TransferRepo) GetByFilter(ctx context.Context, filter entities.TransferFilter) ([]entities.Transfer, error) {
	query, args := buildTransferQuery(filter, false)

	var rows []transferRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}

	transfers := make([]entities.Transfer, 0, len(rows))
	for _, row := range rows {
		t, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}

	return transfers, nil
}

// GetCount returns the count of transfers matching the filter
func (r *TransferRepo) GetCount(ctx context.Context, filter entities.TransferFilter) (int64, error) {
	query, args := buildTransferQuery(filter, true)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to get transfer count: %w", err)
	}

	return count, nil
}

// conditionBuilder collects WHERE clauses with positional arguments
type conditionBuilder struct {
	conditions []string
	args       []interface{}
}

// add appends a condition; every "?" in clause is replaced by the next placeholder
func (b *conditionBuilder) add(clause string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conditions = append(b.conditions, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *conditionBuilder) where() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conditions, " AND ")
}

// next returns the placeholder for one more argument
func (b *conditionBuilder) next(arg interface{}) string {
	b.args = append(b.args, arg)
	return fmt.Sprintf("$%d", len(b.args))
}

// buildTransferQuery builds the SQL query for filtering transfers
func buildTransferQuery(filter entities.TransferFilter, countOnly bool) (string, []interface{}) {
	var b conditionBuilder

	if filter.DaoID != nil {
		b.add("dao_id = ?", string(*filter.DaoID))
	}
	if filter.TokenAddress != nil {
		b.add("token_address = ?", *filter.TokenAddress)
	}
	if filter.FromAddress != nil {
		b.add("from_address = ?", *filter.FromAddress)
	}
	if filter.ToAddress != nil {
		b.add("to_address = ?", *filter.ToAddress)
	}
	if filter.Address != nil {
		b.add("(from_address = ? OR to_address = ?)", *filter.Address)
	}
	if filter.FromBlock != nil {
		b.add("block_number >= ?", *filter.FromBlock)
	}
	if filter.ToBlock != nil {
		b.add("block_number <= ?", *filter.ToBlock)
	}
	if filter.FromTime != nil {
		b.add("block_timestamp >= ?", filter.FromTime.UTC())
	}
	if filter.ToTime != nil {
		b.add("block_timestamp <= ?", filter.ToTime.UTC())
	}
	if filter.MinAmount != nil {
		b.add("value >= ?::NUMERIC", filter.MinAmount.String())
	}
	if filter.MaxAmount != nil {
		b.add("value <= ?::NUMERIC", filter.MaxAmount.String())
	}

	flags := []struct {
		column string
		value  *bool
	}{
		{"is_cex", filter.IsCex},
		{"is_dex", filter.IsDex},
		{"is_lending", filter.IsLending},
		{"is_treasury", filter.IsTreasury},
		{"is_total", filter.IsTotal},
	}
	for _, f := range flags {
		if f.value != nil {
			b.add(f.column+" = ?", *f.value)
		}
	}

	if countOnly {
		return fmt.Sprintf("SELECT COUNT(*) FROM transfers %s", b.where()), b.args
	}

	orderColumn := "block_timestamp"
	if filter.SortBy == entities.SortByAmount {
		orderColumn = "value"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	where := b.where()
	limit := "ALL"
	if filter.Limit > 0 {
		limit = b.next(filter.Limit)
	}
	offset := b.next(filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM transfers
		%s
		ORDER BY %s %s, log_index %s
		LIMIT %s OFFSET %s
	`, transferColumns, where, orderColumn, direction, direction, limit, offset)

	return query, b.args
}

// statsRow holds the result of the stats query
type statsRow struct {
	TotalTransfers int64      `db:"total_transfers"`
	UniqueFrom     int64      `db:"unique_from"`
	UniqueTo       int64      `db:"unique_to"`
	TotalVolume    string     `db:"total_volume"`
	FirstTransfer  *time.Time `db:"first_transfer"`
	LastTransfer   *time.Time `db:"last_transfer"`
	Transfers24h   int64      `db:"transfers_24h"`
	Volume24h      string     `db:"volume_24h"`
	Transfers7d    int64      `db:"transfers_7d"`
	Volume7d       string     `db:"volume_7d"`
}

// GetTokenStats returns aggregated transfer statistics for a DAO.
// Windows are measured back from now.
func (r *TransferRepo) GetTokenStats(ctx context.Context, daoID entities.DaoID, now time.Time) (*repositories.TokenStatsResult, error) {
	query := `
		WITH stats AS (
			SELECT
				COUNT(*) as total_transfers,
				COUNT(DISTINCT from_address) as unique_from,
				COUNT(DISTINCT to_address) as unique_to,
				COALESCE(SUM(value), 0)::TEXT as total_volume,
				MIN(block_timestamp) as first_transfer,
				MAX(block_timestamp) as last_transfer
			FROM transfers
			WHERE dao_id = $1
		),
		stats_24h AS (
			SELECT
				COUNT(*) as transfers,
				COALESCE(SUM(value), 0)::TEXT as volume
			FROM transfers
			WHERE dao_id = $1
			AND block_timestamp >= $2::TIMESTAMPTZ - INTERVAL '24 hours'
		),
		stats_7d AS (
			SELECT
				COUNT(*) as transfers,
				COALESCE(SUM(value), 0)::TEXT as volume
			FROM transfers
			WHERE dao_id = $1
			AND block_timestamp >= $2::TIMESTAMPTZ - INTERVAL '7 days'
		)
		SELECT
			s.total_transfers, s.unique_from, s.unique_to, s.total_volume,
			s.first_transfer, s.last_transfer,
			s24.transfers as transfers_24h, s24.volume as volume_24h,
			s7.transfers as transfers_7d, s7.volume as volume_7d
		FROM stats s, stats_24h s24, stats_7d s7
	`

	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, string(daoID), now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get token stats: %w", err)
	}

	result := &repositories.TokenStatsResult{
		TotalTransfers:  row.TotalTransfers,
		UniqueFromAddrs: row.UniqueFrom,
		UniqueToAddrs:   row.UniqueTo,
		TotalVolume:     row.TotalVolume,
		Transfers24h:    row.Transfers24h,
		Volume24h:       row.Volume24h,
		Transfers7d:     row.Transfers7d,
		Volume7d:        row.Volume7d,
	}
	if row.FirstTransfer != nil {
		t := row.FirstTransfer.UTC()
		result.FirstTransferAt = &t
	}
	if row.LastTransfer != nil {
		t := row.LastTransfer.UTC()
		result.LastTransferAt = &t
	}

	return result, nil
}
