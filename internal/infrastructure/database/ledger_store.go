package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

// Ensure LedgerStore implements LedgerStore
var (
	_ repositories.LedgerStore = (*LedgerStore)(nil)
	_ repositories.LedgerTx    = (*ledgerTx)(nil)
)

// LedgerStore implements the transactional write side on PostgreSQL.
// Aggregate rows are read with FOR UPDATE and mutated with single
// UPDATE/UPSERT ... RETURNING statements; facts use ON CONFLICT DO NOTHING.
type LedgerStore struct {
	db *sqlx.DB
}

// NewLedgerStore creates a new ledger store
func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx runs fn in one database transaction and commits when fn succeeds
func (s *LedgerStore) WithTx(ctx context.Context, fn func(tx repositories.LedgerTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) EnsureAccounts(ctx context.Context, addresses ...string) error {
	seen := make(map[string]struct{}, len(addresses))
	unique := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		unique = append(unique, a)
	}
	if len(unique) == 0 {
		return nil
	}

	query := `INSERT INTO accounts (address) SELECT unnest($1::TEXT[]) ON CONFLICT (address) DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, query, pq.Array(unique)); err != nil {
		return fmt.Errorf("failed to ensure accounts: %w", err)
	}
	return nil
}

// insertFact runs a conflict-ignore insert and reports whether a row was written
func (t *ledgerTx) insertFact(ctx context.Context, what, query string, args ...interface{}) (bool, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert %s: %w", what, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *ledgerTx) InsertTransfer(ctx context.Context, tr *entities.Transfer) (bool, error) {
	query := `
		INSERT INTO transfers (tx_hash, log_index, block_number, block_timestamp, dao_id,
							   token_address, from_address, to_address, value,
							   is_cex, is_dex, is_lending, is_treasury, is_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10, $11, $12, $13, $14)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`
	return t.insertFact(ctx, "transfer", query,
		tr.TxHash, tr.LogIndex, tr.BlockNumber, tr.BlockTimestamp.UTC(), string(tr.DaoID),
		tr.TokenAddress, tr.FromAddress, tr.ToAddress, entities.AmountString(tr.Value),
		tr.IsCex, tr.IsDex, tr.IsLending, tr.IsTreasury, tr.IsTotal,
	)
}

func (t *ledgerTx) InsertDelegation(ctx context.Context, d *entities.Delegation) (bool, error) {
	query := `
		INSERT INTO delegations (tx_hash, log_index, dao_id, delegator_id, delegate_id,
								 previous_delegate, delegated_value, block_number, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`
	return t.insertFact(ctx, "delegation", query,
		d.TxHash, d.LogIndex, string(d.DaoID), d.DelegatorID, d.DelegateID,
		d.PreviousDelegate, entities.AmountString(d.DelegatedValue), d.BlockNumber, d.Timestamp.UTC(),
	)
}

func (t *ledgerTx) InsertVotingPowerHistory(ctx context.Context, h *entities.VotingPowerHistory) (bool, error) {
	query := `
		INSERT INTO voting_power_history (tx_hash, log_index, dao_id, account_id, voting_power, delta,
										  block_number, timestamp, transfer_log_index, delegation_log_index)
		VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`
	return t.insertFact(ctx, "voting power history", query,
		h.TxHash, h.LogIndex, string(h.DaoID), h.AccountID,
		entities.AmountString(h.VotingPower), entities.AmountString(h.Delta),
		h.BlockNumber, h.Timestamp.UTC(), optionalInt(h.TransferLogIndex), optionalInt(h.DelegationLogIndex),
	)
}

func (t *ledgerTx) InsertBalanceHistory(ctx context.Context, h *entities.BalanceHistory) (bool, error) {
	query := `
		INSERT INTO balance_history (tx_hash, log_index, account_id, token_id, balance, delta,
									 block_number, timestamp)
		VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8)
		ON CONFLICT (tx_hash, log_index, account_id) DO NOTHING
	`
	return t.insertFact(ctx, "balance history", query,
		h.TxHash, h.LogIndex, h.AccountID, h.TokenID,
		entities.AmountString(h.Balance), entities.AmountString(h.Delta),
		h.BlockNumber, h.Timestamp.UTC(),
	)
}

func (t *ledgerTx) InsertVote(ctx context.Context, v *entities.Vote) (bool, error) {
	query := `
		INSERT INTO votes (tx_hash, log_index, dao_id, proposal_id, voter_id, support,
						   voting_power, reason, block_number, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9, $10)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`
	return t.insertFact(ctx, "vote", query,
		v.TxHash, v.LogIndex, string(v.DaoID), v.ProposalID, v.VoterID, int(v.Support),
		entities.AmountString(v.VotingPower), v.Reason, v.BlockNumber, v.Timestamp.UTC(),
	)
}

func (t *ledgerTx) InsertProposal(ctx context.Context, p *entities.Proposal) (bool, error) {
	query := `
		INSERT INTO proposals (id, proposal_id, dao_id, tx_hash, proposer,
							   targets, call_values, signatures, calldatas,
							   start_block, end_block, description, timestamp, end_timestamp, status,
							   for_votes, against_votes, abstain_votes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16::NUMERIC, $17::NUMERIC, $18::NUMERIC)
		ON CONFLICT (id) DO NOTHING
	`
	return t.insertFact(ctx, "proposal", query,
		entities.ProposalKey(p.DaoID, p.ProposalID), p.ProposalID, string(p.DaoID), p.TxHash, p.Proposer,
		pq.StringArray(nonNil(p.Targets)), pq.StringArray(nonNil(p.Values)),
		pq.StringArray(nonNil(p.Signatures)), pq.StringArray(nonNil(p.Calldatas)),
		p.StartBlock, p.EndBlock, p.Description, p.Timestamp.UTC(), p.EndTimestamp.UTC(), string(p.Status),
		entities.AmountString(p.ForVotes), entities.AmountString(p.AgainstVotes), entities.AmountString(p.AbstainVotes),
	)
}

func (t *ledgerTx) EnsureToken(ctx context.Context, token *entities.Token) error {
	query := `
		INSERT INTO tokens (id, dao_id, decimals)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, query, token.ID, string(token.DaoID), token.Decimals); err != nil {
		return fmt.Errorf("failed to ensure token: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetToken(ctx context.Context, tokenID string) (*entities.Token, error) {
	var row tokenRow
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &row, query, tokenID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return row.toEntity()
}

func (t *ledgerTx) ApplyTokenDelta(ctx context.Context, tokenID string, field entities.TokenField, delta *big.Int) (repositories.Delta, error) {
	if !field.Valid() {
		return repositories.Delta{}, fmt.Errorf("unknown token field %q", field)
	}

	query := fmt.Sprintf(`
		UPDATE tokens SET %[1]s = %[1]s + $2::NUMERIC, updated_at = NOW()
		WHERE id = $1
		RETURNING %[1]s::TEXT
	`, field)

	var after string
	if err := t.tx.GetContext(ctx, &after, query, tokenID, entities.AmountString(delta)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repositories.Delta{}, fmt.Errorf("token %s: %w", tokenID, entities.ErrNotFound)
		}
		return repositories.Delta{}, fmt.Errorf("failed to apply token delta: %w", err)
	}
	return deltaFromAfter(after, delta)
}

func (t *ledgerTx) GetBalance(ctx context.Context, account, tokenID string) (*entities.AccountBalance, error) {
	var row balanceRow
	query := `SELECT ` + balanceColumns + ` FROM account_balance WHERE account_id = $1 AND token_id = $2 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &row, query, account, tokenID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &entities.AccountBalance{AccountID: account, TokenID: tokenID, Balance: new(big.Int)}, nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return row.toEntity()
}

func (t *ledgerTx) ApplyBalanceDelta(ctx context.Context, account, tokenID string, delta *big.Int) (repositories.Delta, error) {
	query := `
		INSERT INTO account_balance (account_id, token_id, balance, updated_at)
		VALUES ($1, $2, $3::NUMERIC, NOW())
		ON CONFLICT (account_id, token_id) DO UPDATE SET
			balance = account_balance.balance + EXCLUDED.balance,
			updated_at = NOW()
		RETURNING balance::TEXT
	`
	var after string
	if err := t.tx.GetContext(ctx, &after, query, account, tokenID, entities.AmountString(delta)); err != nil {
		return repositories.Delta{}, fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return deltaFromAfter(after, delta)
}

func (t *ledgerTx) SetDelegate(ctx context.Context, account, tokenID, delegate string) error {
	query := `
		INSERT INTO account_balance (account_id, token_id, delegate, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id, token_id) DO UPDATE SET
			delegate = EXCLUDED.delegate,
			updated_at = NOW()
	`
	if _, err := t.tx.ExecContext(ctx, query, account, tokenID, delegate); err != nil {
		return fmt.Errorf("failed to set delegate: %w", err)
	}
	return nil
}

func (t *ledgerTx) TouchBalance(ctx context.Context, account, tokenID string, at time.Time) error {
	// GREATEST skips NULL, so the first touch sets the marker
	query := `
		INSERT INTO account_balance (account_id, token_id, last_activity_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id, token_id) DO UPDATE SET
			last_activity_at = GREATEST(account_balance.last_activity_at, EXCLUDED.last_activity_at)
	`
	if _, err := t.tx.ExecContext(ctx, query, account, tokenID, at.UTC()); err != nil {
		return fmt.Errorf("failed to touch balance: %w", err)
	}
	return nil
}

func (t *ledgerTx) TouchPower(ctx context.Context, account string, daoID entities.DaoID, at time.Time) error {
	query := `
		INSERT INTO account_power (account_id, dao_id, last_activity_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id, dao_id) DO UPDATE SET
			last_activity_at = GREATEST(account_power.last_activity_at, EXCLUDED.last_activity_at)
	`
	if _, err := t.tx.ExecContext(ctx, query, account, string(daoID), at.UTC()); err != nil {
		return fmt.Errorf("failed to touch account power: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetAccountPower(ctx context.Context, account string, daoID entities.DaoID) (*entities.AccountPower, error) {
	var row powerRow
	query := `SELECT ` + powerColumns + ` FROM account_power WHERE account_id = $1 AND dao_id = $2 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &row, query, account, string(daoID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.NewAccountPower(account, daoID), nil
		}
		return nil, fmt.Errorf("failed to get account power: %w", err)
	}
	return row.toEntity()
}

func (t *ledgerTx) ApplyPowerDelta(ctx context.Context, account string, daoID entities.DaoID, field entities.AccountPowerField, delta *big.Int) (repositories.Delta, error) {
	if !field.Valid() {
		return repositories.Delta{}, fmt.Errorf("unknown power field %q", field)
	}
	columnType := "BIGINT"
	if field == entities.FieldVotingPower {
		columnType = "NUMERIC"
	}

	query := fmt.Sprintf(`
		INSERT INTO account_power (account_id, dao_id, %[1]s, updated_at)
		VALUES ($1, $2, $3::%[2]s, NOW())
		ON CONFLICT (account_id, dao_id) DO UPDATE SET
			%[1]s = account_power.%[1]s + EXCLUDED.%[1]s,
			updated_at = NOW()
		RETURNING %[1]s::TEXT
	`, field, columnType)

	var after string
	if err := t.tx.GetContext(ctx, &after, query, account, string(daoID), entities.AmountString(delta)); err != nil {
		return repositories.Delta{}, fmt.Errorf("failed to apply power delta: %w", err)
	}
	return deltaFromAfter(after, delta)
}

func (t *ledgerTx) SetPowerPosition(ctx context.Context, account string, daoID entities.DaoID, block int64, logIndex int) error {
	query := `
		INSERT INTO account_power (account_id, dao_id, power_block_number, power_log_index, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id, dao_id) DO UPDATE SET
			power_block_number = EXCLUDED.power_block_number,
			power_log_index = EXCLUDED.power_log_index
	`
	if _, err := t.tx.ExecContext(ctx, query, account, string(daoID), block, logIndex); err != nil {
		return fmt.Errorf("failed to set power position: %w", err)
	}
	return nil
}

func (t *ledgerTx) RecordVote(ctx context.Context, account string, daoID entities.DaoID, ts time.Time) error {
	// LEAST/GREATEST skip NULLs, so the first vote fills both timestamps
	query := `
		INSERT INTO account_power (account_id, dao_id, votes_count, first_vote_timestamp, last_vote_timestamp, updated_at)
		VALUES ($1, $2, 1, $3, $3, NOW())
		ON CONFLICT (account_id, dao_id) DO UPDATE SET
			votes_count = account_power.votes_count + 1,
			first_vote_timestamp = LEAST(account_power.first_vote_timestamp, EXCLUDED.first_vote_timestamp),
			last_vote_timestamp = GREATEST(account_power.last_vote_timestamp, EXCLUDED.last_vote_timestamp),
			updated_at = NOW()
	`
	if _, err := t.tx.ExecContext(ctx, query, account, string(daoID), ts.UTC()); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

func (t *ledgerTx) AccumulateBucket(ctx context.Context, o entities.Observation, ordering entities.BucketOrdering) (*entities.DayBucket, error) {
	key := o.Key()
	date := key.Date.Format("2006-01-02")

	var row bucketRow
	query := `
		SELECT ` + bucketColumns + ` FROM day_buckets
		WHERE date = $1::DATE AND metric_type = $2 AND dao_id = $3 AND token_id = $4
		FOR UPDATE
	`
	err := t.tx.GetContext(ctx, &row, query, date, string(key.MetricType), string(key.DaoID), key.TokenID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		bucket := entities.NewDayBucket(o)
		if err := t.writeBucket(ctx, bucket, true); err != nil {
			return nil, err
		}
		return bucket, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	bucket, err := row.toEntity()
	if err != nil {
		return nil, err
	}
	bucket.Fold(o, ordering)
	if err := t.writeBucket(ctx, bucket, false); err != nil {
		return nil, err
	}
	return bucket, nil
}

func (t *ledgerTx) writeBucket(ctx context.Context, b *entities.DayBucket, insert bool) error {
	args := []interface{}{
		b.Date.Format("2006-01-02"), string(b.MetricType), string(b.DaoID), b.TokenID,
		entities.AmountString(b.Open), entities.AmountString(b.Close),
		entities.AmountString(b.Low), entities.AmountString(b.High),
		entities.AmountString(b.Average), entities.AmountString(b.Volume),
		b.Count, b.FirstUpdate, b.LastUpdate,
	}

	query := `
		UPDATE day_buckets SET
			open = $5::NUMERIC, close = $6::NUMERIC, low = $7::NUMERIC, high = $8::NUMERIC,
			average = $9::NUMERIC, volume = $10::NUMERIC, count = $11,
			first_update = $12, last_update = $13
		WHERE date = $1::DATE AND metric_type = $2 AND dao_id = $3 AND token_id = $4
	`
	if insert {
		query = `
			INSERT INTO day_buckets (date, metric_type, dao_id, token_id,
									 open, close, low, high, average, volume, count,
									 first_update, last_update)
			VALUES ($1::DATE, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
					$9::NUMERIC, $10::NUMERIC, $11, $12, $13)
		`
	}

	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write bucket: %w", err)
	}
	return nil
}

func (t *ledgerTx) GetProposal(ctx context.Context, daoID entities.DaoID, proposalID string) (*entities.Proposal, error) {
	var row proposalRow
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1 FOR UPDATE`
	if err := t.tx.GetContext(ctx, &row, query, entities.ProposalKey(daoID, proposalID)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return row.toEntity()
}

func (t *ledgerTx) UpdateProposalStatus(ctx context.Context, daoID entities.DaoID, proposalID string, status entities.ProposalStatus) error {
	query := `UPDATE proposals SET status = $2 WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, entities.ProposalKey(daoID, proposalID), string(status))
	if err != nil {
		return fmt.Errorf("failed to update proposal status: %w", err)
	}
	return requireRow(result)
}

func (t *ledgerTx) AddProposalVotes(ctx context.Context, daoID entities.DaoID, proposalID string, support entities.VoteSupport, weight *big.Int) error {
	var column string
	switch support {
	case entities.SupportFor:
		column = "for_votes"
	case entities.SupportAgainst:
		column = "against_votes"
	case entities.SupportAbstain:
		column = "abstain_votes"
	default:
		return fmt.Errorf("unknown support %d", support)
	}

	query := fmt.Sprintf(`UPDATE proposals SET %[1]s = %[1]s + $2::NUMERIC WHERE id = $1`, column)
	result, err := t.tx.ExecContext(ctx, query, entities.ProposalKey(daoID, proposalID), entities.AmountString(weight))
	if err != nil {
		return fmt.Errorf("failed to add proposal votes: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// deltaFromAfter rebuilds the before value from the RETURNING column
func deltaFromAfter(after string, delta *big.Int) (repositories.Delta, error) {
	a, err := entities.ParseAmount(after)
	if err != nil {
		return repositories.Delta{}, err
	}
	before := new(big.Int).Sub(a, entities.CopyAmount(delta))
	return repositories.Delta{Before: before, After: a}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
