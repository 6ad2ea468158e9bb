package database

import (
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/lib/pq"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
)

// NUMERIC columns are selected as ::TEXT and written as decimal strings so
// no precision is lost in the driver.

type tokenRow struct {
	ID                string    `db:"id"`
	DaoID             string    `db:"dao_id"`
	Decimals          int       `db:"decimals"`
	TotalSupply       string    `db:"total_supply"`
	DelegatedSupply   string    `db:"delegated_supply"`
	CexSupply         string    `db:"cex_supply"`
	DexSupply         string    `db:"dex_supply"`
	LendingSupply     string    `db:"lending_supply"`
	CirculatingSupply string    `db:"circulating_supply"`
	Treasury          string    `db:"treasury"`
	UpdatedAt         time.Time `db:"updated_at"`
}

const tokenColumns = `id, dao_id, decimals,
	total_supply::TEXT AS total_supply, delegated_supply::TEXT AS delegated_supply,
	cex_supply::TEXT AS cex_supply, dex_supply::TEXT AS dex_supply,
	lending_supply::TEXT AS lending_supply, circulating_supply::TEXT AS circulating_supply,
	treasury::TEXT AS treasury, updated_at`

func (r tokenRow) toEntity() (*entities.Token, error) {
	t := &entities.Token{
		ID:        r.ID,
		DaoID:     entities.DaoID(r.DaoID),
		Decimals:  r.Decimals,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	values := map[entities.TokenField]string{
		entities.FieldTotalSupply:       r.TotalSupply,
		entities.FieldDelegatedSupply:   r.DelegatedSupply,
		entities.FieldCexSupply:         r.CexSupply,
		entities.FieldDexSupply:         r.DexSupply,
		entities.FieldLendingSupply:     r.LendingSupply,
		entities.FieldCirculatingSupply: r.CirculatingSupply,
		entities.FieldTreasury:          r.Treasury,
	}
	for field, s := range values {
		v, err := entities.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("token %s %s: %w", r.ID, field, err)
		}
		if err := t.SetField(field, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

type balanceRow struct {
	AccountID      string       `db:"account_id"`
	TokenID        string       `db:"token_id"`
	Balance        string       `db:"balance"`
	Delegate       string       `db:"delegate"`
	LastActivityAt sql.NullTime `db:"last_activity_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

const balanceColumns = `account_id, token_id, balance::TEXT AS balance, delegate, last_activity_at, updated_at`

func (r balanceRow) toEntity() (*entities.AccountBalance, error) {
	v, err := entities.ParseAmount(r.Balance)
	if err != nil {
		return nil, err
	}
	return &entities.AccountBalance{
		AccountID:      r.AccountID,
		TokenID:        r.TokenID,
		Balance:        v,
		Delegate:       r.Delegate,
		LastActivityAt: nullTime(r.LastActivityAt),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}, nil
}

type powerRow struct {
	AccountID          string       `db:"account_id"`
	DaoID              string       `db:"dao_id"`
	VotingPower        string       `db:"voting_power"`
	DelegationsCount   int64        `db:"delegations_count"`
	VotesCount         int64        `db:"votes_count"`
	ProposalsCount     int64        `db:"proposals_count"`
	FirstVoteTimestamp sql.NullTime `db:"first_vote_timestamp"`
	LastVoteTimestamp  sql.NullTime `db:"last_vote_timestamp"`
	PowerBlockNumber   int64        `db:"power_block_number"`
	PowerLogIndex      int          `db:"power_log_index"`
	LastActivityAt     sql.NullTime `db:"last_activity_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

const powerColumns = `account_id, dao_id, voting_power::TEXT AS voting_power,
	delegations_count, votes_count, proposals_count,
	first_vote_timestamp, last_vote_timestamp,
	power_block_number, power_log_index, last_activity_at, updated_at`

func (r powerRow) toEntity() (*entities.AccountPower, error) {
	v, err := entities.ParseAmount(r.VotingPower)
	if err != nil {
		return nil, err
	}
	return &entities.AccountPower{
		AccountID:          r.AccountID,
		DaoID:              entities.DaoID(r.DaoID),
		VotingPower:        v,
		DelegationsCount:   r.DelegationsCount,
		VotesCount:         r.VotesCount,
		ProposalsCount:     r.ProposalsCount,
		FirstVoteTimestamp: nullTime(r.FirstVoteTimestamp),
		LastVoteTimestamp:  nullTime(r.LastVoteTimestamp),
		PowerBlockNumber:   r.PowerBlockNumber,
		PowerLogIndex:      r.PowerLogIndex,
		LastActivityAt:     nullTime(r.LastActivityAt),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}, nil
}

type balanceHistoryRow struct {
	TxHash      string    `db:"tx_hash"`
	LogIndex    int       `db:"log_index"`
	AccountID   string    `db:"account_id"`
	TokenID     string    `db:"token_id"`
	Balance     string    `db:"balance"`
	Delta       string    `db:"delta"`
	BlockNumber int64     `db:"block_number"`
	Timestamp   time.Time `db:"timestamp"`
}

func (r balanceHistoryRow) toEntity() (entities.BalanceHistory, error) {
	balance, err := entities.ParseAmount(r.Balance)
	if err != nil {
		return entities.BalanceHistory{}, err
	}
	delta, err := entities.ParseAmount(r.Delta)
	if err != nil {
		return entities.BalanceHistory{}, err
	}
	return entities.BalanceHistory{
		TxHash:      r.TxHash,
		LogIndex:    r.LogIndex,
		AccountID:   r.AccountID,
		TokenID:     r.TokenID,
		Balance:     balance,
		Delta:       delta,
		BlockNumber: r.BlockNumber,
		Timestamp:   r.Timestamp.UTC(),
	}, nil
}

type powerHistoryRow struct {
	TxHash             string        `db:"tx_hash"`
	LogIndex           int           `db:"log_index"`
	DaoID              string        `db:"dao_id"`
	AccountID          string        `db:"account_id"`
	VotingPower        string        `db:"voting_power"`
	Delta              string        `db:"delta"`
	BlockNumber        int64         `db:"block_number"`
	Timestamp          time.Time     `db:"timestamp"`
	TransferLogIndex   sql.NullInt32 `db:"transfer_log_index"`
	DelegationLogIndex sql.NullInt32 `db:"delegation_log_index"`
}

func (r powerHistoryRow) toEntity() (entities.VotingPowerHistory, error) {
	power, err := entities.ParseAmount(r.VotingPower)
	if err != nil {
		return entities.VotingPowerHistory{}, err
	}
	delta, err := entities.ParseAmount(r.Delta)
	if err != nil {
		return entities.VotingPowerHistory{}, err
	}
	return entities.VotingPowerHistory{
		TxHash:             r.TxHash,
		LogIndex:           r.LogIndex,
		DaoID:              entities.DaoID(r.DaoID),
		AccountID:          r.AccountID,
		VotingPower:        power,
		Delta:              delta,
		BlockNumber:        r.BlockNumber,
		Timestamp:          r.Timestamp.UTC(),
		TransferLogIndex:   nullInt(r.TransferLogIndex),
		DelegationLogIndex: nullInt(r.DelegationLogIndex),
	}, nil
}

type transferRow struct {
	TxHash         string    `db:"tx_hash"`
	LogIndex       int       `db:"log_index"`
	BlockNumber    int64     `db:"block_number"`
	BlockTimestamp time.Time `db:"block_timestamp"`
	DaoID          string    `db:"dao_id"`
	TokenAddress   string    `db:"token_address"`
	FromAddress    string    `db:"from_address"`
	ToAddress      string    `db:"to_address"`
	Value          string    `db:"value"`
	IsCex          bool      `db:"is_cex"`
	IsDex          bool      `db:"is_dex"`
	IsLending      bool      `db:"is_lending"`
	IsTreasury     bool      `db:"is_treasury"`
	IsTotal        bool      `db:"is_total"`
	CreatedAt      time.Time `db:"created_at"`
}

const transferColumns = `tx_hash, log_index, block_number, block_timestamp, dao_id,
	token_address, from_address, to_address, value::TEXT AS value,
	is_cex, is_dex, is_lending, is_treasury, is_total, created_at`

func (r transferRow) toEntity() (entities.Transfer, error) {
	v, err := entities.ParseAmount(r.Value)
	if err != nil {
		return entities.Transfer{}, err
	}
	return entities.Transfer{
		TxHash:         r.TxHash,
		LogIndex:       r.LogIndex,
		BlockNumber:    r.BlockNumber,
		BlockTimestamp: r.BlockTimestamp.UTC(),
		DaoID:          entities.DaoID(r.DaoID),
		TokenAddress:   r.TokenAddress,
		FromAddress:    r.FromAddress,
		ToAddress:      r.ToAddress,
		Value:          v,
		IsCex:          r.IsCex,
		IsDex:          r.IsDex,
		IsLending:      r.IsLending,
		IsTreasury:     r.IsTreasury,
		IsTotal:        r.IsTotal,
		CreatedAt:      r.CreatedAt.UTC(),
	}, nil
}

type proposalRow struct {
	ID           string         `db:"id"`
	ProposalID   string         `db:"proposal_id"`
	DaoID        string         `db:"dao_id"`
	TxHash       string         `db:"tx_hash"`
	Proposer     string         `db:"proposer"`
	Targets      pq.StringArray `db:"targets"`
	Values       pq.StringArray `db:"call_values"`
	Signatures   pq.StringArray `db:"signatures"`
	Calldatas    pq.StringArray `db:"calldatas"`
	StartBlock   int64          `db:"start_block"`
	EndBlock     int64          `db:"end_block"`
	Description  string         `db:"description"`
	Timestamp    time.Time      `db:"timestamp"`
	EndTimestamp time.Time      `db:"end_timestamp"`
	Status       string         `db:"status"`
	ForVotes     string         `db:"for_votes"`
	AgainstVotes string         `db:"against_votes"`
	AbstainVotes string         `db:"abstain_votes"`
}

const proposalColumns = `id, proposal_id, dao_id, tx_hash, proposer,
	targets, call_values, signatures, calldatas,
	start_block, end_block, description, timestamp, end_timestamp, status,
	for_votes::TEXT AS for_votes, against_votes::TEXT AS against_votes,
	abstain_votes::TEXT AS abstain_votes`

func (r proposalRow) toEntity() (*entities.Proposal, error) {
	tallies := make([]*big.Int, 3)
	for i, s := range []string{r.ForVotes, r.AgainstVotes, r.AbstainVotes} {
		v, err := entities.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("proposal %s tally: %w", r.ID, err)
		}
		tallies[i] = v
	}
	return &entities.Proposal{
		ID:           r.ID,
		ProposalID:   r.ProposalID,
		DaoID:        entities.DaoID(r.DaoID),
		TxHash:       r.TxHash,
		Proposer:     r.Proposer,
		Targets:      []string(r.Targets),
		Values:       []string(r.Values),
		Signatures:   []string(r.Signatures),
		Calldatas:    []string(r.Calldatas),
		StartBlock:   r.StartBlock,
		EndBlock:     r.EndBlock,
		Description:  r.Description,
		Timestamp:    r.Timestamp.UTC(),
		EndTimestamp: r.EndTimestamp.UTC(),
		Status:       entities.ProposalStatus(r.Status),
		ForVotes:     tallies[0],
		AgainstVotes: tallies[1],
		AbstainVotes: tallies[2],
	}, nil
}

type voteRow struct {
	TxHash      string    `db:"tx_hash"`
	LogIndex    int       `db:"log_index"`
	DaoID       string    `db:"dao_id"`
	ProposalID  string    `db:"proposal_id"`
	VoterID     string    `db:"voter_id"`
	Support     int       `db:"support"`
	VotingPower string    `db:"voting_power"`
	Reason      string    `db:"reason"`
	BlockNumber int64     `db:"block_number"`
	Timestamp   time.Time `db:"timestamp"`
}

func (r voteRow) toEntity() (entities.Vote, error) {
	v, err := entities.ParseAmount(r.VotingPower)
	if err != nil {
		return entities.Vote{}, err
	}
	return entities.Vote{
		TxHash:      r.TxHash,
		LogIndex:    r.LogIndex,
		DaoID:       entities.DaoID(r.DaoID),
		ProposalID:  r.ProposalID,
		VoterID:     r.VoterID,
		Support:     entities.VoteSupport(r.Support),
		VotingPower: v,
		Reason:      r.Reason,
		BlockNumber: r.BlockNumber,
		Timestamp:   r.Timestamp.UTC(),
	}, nil
}

type bucketRow struct {
	Date        time.Time `db:"date"`
	MetricType  string    `db:"metric_type"`
	DaoID       string    `db:"dao_id"`
	TokenID     string    `db:"token_id"`
	Open        string    `db:"open"`
	Close       string    `db:"close"`
	Low         string    `db:"low"`
	High        string    `db:"high"`
	Average     string    `db:"average"`
	Volume      string    `db:"volume"`
	Count       int64     `db:"count"`
	FirstUpdate time.Time `db:"first_update"`
	LastUpdate  time.Time `db:"last_update"`
}

const bucketColumns = `date, metric_type, dao_id, token_id,
	open::TEXT AS open, close::TEXT AS close, low::TEXT AS low, high::TEXT AS high,
	average::TEXT AS average, volume::TEXT AS volume, count, first_update, last_update`

func (r bucketRow) toEntity() (*entities.DayBucket, error) {
	values := make([]*big.Int, 6)
	for i, s := range []string{r.Open, r.Close, r.Low, r.High, r.Average, r.Volume} {
		v, err := entities.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("bucket %s %s: %w", r.MetricType, r.Date.Format("2006-01-02"), err)
		}
		values[i] = v
	}
	return &entities.DayBucket{
		Date:        entities.DayStart(r.Date),
		MetricType:  entities.MetricType(r.MetricType),
		DaoID:       entities.DaoID(r.DaoID),
		TokenID:     r.TokenID,
		Open:        values[0],
		Close:       values[1],
		Low:         values[2],
		High:        values[3],
		Average:     values[4],
		Volume:      values[5],
		Count:       r.Count,
		FirstUpdate: r.FirstUpdate.UTC(),
		LastUpdate:  r.LastUpdate.UTC(),
	}, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

