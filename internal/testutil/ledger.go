package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

var (
	_ repositories.LedgerStore        = (*MemoryLedger)(nil)
	_ repositories.LedgerTx           = (*memoryTx)(nil)
	_ repositories.TokenRepository    = (*MemoryLedger)(nil)
	_ repositories.TransferRepository = (*MemoryLedger)(nil)
	_ repositories.AccountRepository  = (*MemoryLedger)(nil)
	_ repositories.MetricsRepository  = (*MemoryLedger)(nil)
	_ repositories.ProposalRepository = (*MemoryLedger)(nil)
)

type factKey struct {
	txHash   string
	logIndex int
}

type accountKey struct {
	account string
	scope   string // token id or dao id
}

type historyKey struct {
	factKey
	account string
}

type ledgerState struct {
	accounts       map[string]time.Time
	tokens         map[string]*entities.Token
	balances       map[accountKey]*entities.AccountBalance
	powers         map[accountKey]*entities.AccountPower
	proposals      map[string]*entities.Proposal
	buckets        map[entities.BucketKey]*entities.DayBucket
	transfers      []entities.Transfer
	delegations    []entities.Delegation
	votes          []entities.Vote
	balanceHistory []entities.BalanceHistory
	powerHistory   []entities.VotingPowerHistory
	facts          map[string]map[factKey]struct{}
	historyFacts   map[historyKey]struct{}
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		accounts:     make(map[string]time.Time),
		tokens:       make(map[string]*entities.Token),
		balances:     make(map[accountKey]*entities.AccountBalance),
		powers:       make(map[accountKey]*entities.AccountPower),
		proposals:    make(map[string]*entities.Proposal),
		buckets:      make(map[entities.BucketKey]*entities.DayBucket),
		facts:        make(map[string]map[factKey]struct{}),
		historyFacts: make(map[historyKey]struct{}),
	}
}

// clone copies mutable rows deeply. Fact rows are immutable and shared.
func (s *ledgerState) clone() *ledgerState {
	c := newLedgerState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v.Clone()
	}
	for k, v := range s.balances {
		b := *v
		b.Balance = entities.CopyAmount(v.Balance)
		c.balances[k] = &b
	}
	for k, v := range s.powers {
		c.powers[k] = v.Clone()
	}
	for k, v := range s.proposals {
		c.proposals[k] = v.Clone()
	}
	for k, v := range s.buckets {
		c.buckets[k] = v.Clone()
	}
	for table, keys := range s.facts {
		m := make(map[factKey]struct{}, len(keys))
		for k := range keys {
			m[k] = struct{}{}
		}
		c.facts[table] = m
	}
	for k := range s.historyFacts {
		c.historyFacts[k] = struct{}{}
	}
	c.transfers = append([]entities.Transfer(nil), s.transfers...)
	c.delegations = append([]entities.Delegation(nil), s.delegations...)
	c.votes = append([]entities.Vote(nil), s.votes...)
	c.balanceHistory = append([]entities.BalanceHistory(nil), s.balanceHistory...)
	c.powerHistory = append([]entities.VotingPowerHistory(nil), s.powerHistory...)
	return c
}

func (s *ledgerState) insertFact(table, txHash string, logIndex int) bool {
	keys, ok := s.facts[table]
	if !ok {
		keys = make(map[factKey]struct{})
		s.facts[table] = keys
	}
	k := factKey{txHash: txHash, logIndex: logIndex}
	if _, dup := keys[k]; dup {
		return false
	}
	keys[k] = struct{}{}
	return true
}

// MemoryLedger is an in-memory LedgerStore with copy-on-begin transactions:
// a transaction works on a snapshot that replaces the ledger state on commit.
// It also serves the read repositories over the committed state.
type MemoryLedger struct {
	mu    sync.RWMutex
	state *ledgerState

	// FailOn is consulted by every transactional write; a non-nil error aborts the transaction
	FailOn func(method string) error
	// Clock stamps UpdatedAt fields
	Clock func() time.Time

	Commits   int
	Rollbacks int
	Calls     []MockCall
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		state: newLedgerState(),
		Clock: time.Now,
		Calls: make([]MockCall, 0),
	}
}

// WithTx runs fn against a snapshot and commits it when fn succeeds
func (m *MemoryLedger) WithTx(ctx context.Context, fn func(tx repositories.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{s: m.state.clone(), ledger: m}
	if err := fn(tx); err != nil {
		m.Rollbacks++
		return err
	}
	m.state = tx.s
	m.Commits++
	return nil
}

func (m *MemoryLedger) record(method string, args ...interface{}) {
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

type memoryTx struct {
	s      *ledgerState
	ledger *MemoryLedger
}

func (t *memoryTx) check(method string, args ...interface{}) error {
	t.ledger.record(method, args...)
	if t.ledger.FailOn != nil {
		return t.ledger.FailOn(method)
	}
	return nil
}

func (t *memoryTx) now() time.Time {
	return t.ledger.Clock().UTC()
}

func (t *memoryTx) EnsureAccounts(ctx context.Context, addresses ...string) error {
	if err := t.check("EnsureAccounts", addresses); err != nil {
		return err
	}
	for _, a := range addresses {
		if _, ok := t.s.accounts[a]; !ok {
			t.s.accounts[a] = t.now()
		}
	}
	return nil
}

func (t *memoryTx) InsertTransfer(ctx context.Context, tr *entities.Transfer) (bool, error) {
	if err := t.check("InsertTransfer", tr); err != nil {
		return false, err
	}
	if !t.s.insertFact("transfers", tr.TxHash, tr.LogIndex) {
		return false, nil
	}
	c := *tr
	c.Value = entities.CopyAmount(tr.Value)
	c.CreatedAt = t.now()
	t.s.transfers = append(t.s.transfers, c)
	return true, nil
}

func (t *memoryTx) InsertDelegation(ctx context.Context, d *entities.Delegation) (bool, error) {
	if err := t.check("InsertDelegation", d); err != nil {
		return false, err
	}
	if !t.s.insertFact("delegations", d.TxHash, d.LogIndex) {
		return false, nil
	}
	c := *d
	c.DelegatedValue = entities.CopyAmount(d.DelegatedValue)
	t.s.delegations = append(t.s.delegations, c)
	return true, nil
}

func (t *memoryTx) InsertVotingPowerHistory(ctx context.Context, h *entities.VotingPowerHistory) (bool, error) {
	if err := t.check("InsertVotingPowerHistory", h); err != nil {
		return false, err
	}
	if !t.s.insertFact("voting_power_history", h.TxHash, h.LogIndex) {
		return false, nil
	}
	t.s.powerHistory = append(t.s.powerHistory, *h)
	return true, nil
}

func (t *memoryTx) InsertBalanceHistory(ctx context.Context, h *entities.BalanceHistory) (bool, error) {
	if err := t.check("InsertBalanceHistory", h); err != nil {
		return false, err
	}
	k := historyKey{factKey: factKey{txHash: h.TxHash, logIndex: h.LogIndex}, account: h.AccountID}
	if _, dup := t.s.historyFacts[k]; dup {
		return false, nil
	}
	t.s.historyFacts[k] = struct{}{}
	t.s.balanceHistory = append(t.s.balanceHistory, *h)
	return true, nil
}

func (t *memoryTx) InsertVote(ctx context.Context, v *entities.Vote) (bool, error) {
	if err := t.check("InsertVote", v); err != nil {
		return false, err
	}
	if !t.s.insertFact("votes", v.TxHash, v.LogIndex) {
		return false, nil
	}
	t.s.votes = append(t.s.votes, *v)
	return true, nil
}

func (t *memoryTx) InsertProposal(ctx context.Context, p *entities.Proposal) (bool, error) {
	if err := t.check("InsertProposal", p); err != nil {
		return false, err
	}
	key := entities.ProposalKey(p.DaoID, p.ProposalID)
	if _, ok := t.s.proposals[key]; ok {
		return false, nil
	}
	t.s.proposals[key] = p.Clone()
	return true, nil
}

func (t *memoryTx) EnsureToken(ctx context.Context, token *entities.Token) error {
	if err := t.check("EnsureToken", token.ID); err != nil {
		return err
	}
	if _, ok := t.s.tokens[token.ID]; !ok {
		c := token.Clone()
		c.UpdatedAt = t.now()
		t.s.tokens[token.ID] = c
	}
	return nil
}

func (t *memoryTx) GetToken(ctx context.Context, tokenID string) (*entities.Token, error) {
	if err := t.check("GetToken", tokenID); err != nil {
		return nil, err
	}
	token, ok := t.s.tokens[tokenID]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return token.Clone(), nil
}

func (t *memoryTx) ApplyTokenDelta(ctx context.Context, tokenID string, field entities.TokenField, delta *big.Int) (repositories.Delta, error) {
	if err := t.check("ApplyTokenDelta", tokenID, field, delta); err != nil {
		return repositories.Delta{}, err
	}
	token, ok := t.s.tokens[tokenID]
	if !ok {
		return repositories.Delta{}, fmt.Errorf("token %s: %w", tokenID, entities.ErrNotFound)
	}
	before, err := token.Field(field)
	if err != nil {
		return repositories.Delta{}, err
	}
	after := new(big.Int).Add(before, delta)
	if err := token.SetField(field, after); err != nil {
		return repositories.Delta{}, err
	}
	token.UpdatedAt = t.now()
	return repositories.Delta{Before: before, After: entities.CopyAmount(after)}, nil
}

func (t *memoryTx) balance(account, tokenID string) *entities.AccountBalance {
	k := accountKey{account: account, scope: tokenID}
	b, ok := t.s.balances[k]
	if !ok {
		b = &entities.AccountBalance{AccountID: account, TokenID: tokenID, Balance: new(big.Int)}
		t.s.balances[k] = b
	}
	return b
}

func (t *memoryTx) GetBalance(ctx context.Context, account, tokenID string) (*entities.AccountBalance, error) {
	if err := t.check("GetBalance", account, tokenID); err != nil {
		return nil, err
	}
	if b, ok := t.s.balances[accountKey{account: account, scope: tokenID}]; ok {
		c := *b
		c.Balance = entities.CopyAmount(b.Balance)
		return &c, nil
	}
	return &entities.AccountBalance{AccountID: account, TokenID: tokenID, Balance: new(big.Int)}, nil
}

func (t *memoryTx) ApplyBalanceDelta(ctx context.Context, account, tokenID string, delta *big.Int) (repositories.Delta, error) {
	if err := t.check("ApplyBalanceDelta", account, tokenID, delta); err != nil {
		return repositories.Delta{}, err
	}
	b := t.balance(account, tokenID)
	before := entities.CopyAmount(b.Balance)
	b.Balance = new(big.Int).Add(before, delta)
	b.UpdatedAt = t.now()
	return repositories.Delta{Before: before, After: entities.CopyAmount(b.Balance)}, nil
}

func (t *memoryTx) SetDelegate(ctx context.Context, account, tokenID, delegate string) error {
	if err := t.check("SetDelegate", account, tokenID, delegate); err != nil {
		return err
	}
	b := t.balance(account, tokenID)
	b.Delegate = delegate
	b.UpdatedAt = t.now()
	return nil
}

func (t *memoryTx) TouchBalance(ctx context.Context, account, tokenID string, at time.Time) error {
	if err := t.check("TouchBalance", account, tokenID, at); err != nil {
		return err
	}
	b := t.balance(account, tokenID)
	b.LastActivityAt = entities.LaterActivity(b.LastActivityAt, at)
	return nil
}

func (t *memoryTx) TouchPower(ctx context.Context, account string, daoID entities.DaoID, at time.Time) error {
	if err := t.check("TouchPower", account, daoID, at); err != nil {
		return err
	}
	p := t.power(account, daoID)
	p.LastActivityAt = entities.LaterActivity(p.LastActivityAt, at)
	return nil
}

func (t *memoryTx) power(account string, daoID entities.DaoID) *entities.AccountPower {
	k := accountKey{account: account, scope: string(daoID)}
	p, ok := t.s.powers[k]
	if !ok {
		p = entities.NewAccountPower(account, daoID)
		t.s.powers[k] = p
	}
	return p
}

func (t *memoryTx) GetAccountPower(ctx context.Context, account string, daoID entities.DaoID) (*entities.AccountPower, error) {
	if err := t.check("GetAccountPower", account, daoID); err != nil {
		return nil, err
	}
	if p, ok := t.s.powers[accountKey{account: account, scope: string(daoID)}]; ok {
		return p.Clone(), nil
	}
	return entities.NewAccountPower(account, daoID), nil
}

func (t *memoryTx) ApplyPowerDelta(ctx context.Context, account string, daoID entities.DaoID, field entities.AccountPowerField, delta *big.Int) (repositories.Delta, error) {
	if err := t.check("ApplyPowerDelta", account, daoID, field, delta); err != nil {
		return repositories.Delta{}, err
	}
	if !field.Valid() {
		return repositories.Delta{}, fmt.Errorf("unknown power field %q", field)
	}
	p := t.power(account, daoID)
	before := p.Counter(field)
	after := new(big.Int).Add(before, delta)
	p.SetCounter(field, after)
	p.UpdatedAt = t.now()
	return repositories.Delta{Before: before, After: after}, nil
}

func (t *memoryTx) SetPowerPosition(ctx context.Context, account string, daoID entities.DaoID, block int64, logIndex int) error {
	if err := t.check("SetPowerPosition", account, daoID, block, logIndex); err != nil {
		return err
	}
	p := t.power(account, daoID)
	p.PowerBlockNumber = block
	p.PowerLogIndex = logIndex
	return nil
}

func (t *memoryTx) RecordVote(ctx context.Context, account string, daoID entities.DaoID, ts time.Time) error {
	if err := t.check("RecordVote", account, daoID, ts); err != nil {
		return err
	}
	p := t.power(account, daoID)
	p.VotesCount++
	p.RecordVote(ts)
	p.UpdatedAt = t.now()
	return nil
}

func (t *memoryTx) AccumulateBucket(ctx context.Context, o entities.Observation, ordering entities.BucketOrdering) (*entities.DayBucket, error) {
	if err := t.check("AccumulateBucket", o); err != nil {
		return nil, err
	}
	k := o.Key()
	b, ok := t.s.buckets[k]
	if !ok {
		b = entities.NewDayBucket(o)
		t.s.buckets[k] = b
	} else {
		b.Fold(o, ordering)
	}
	return b.Clone(), nil
}

func (t *memoryTx) GetProposal(ctx context.Context, daoID entities.DaoID, proposalID string) (*entities.Proposal, error) {
	if err := t.check("GetProposal", daoID, proposalID); err != nil {
		return nil, err
	}
	p, ok := t.s.proposals[entities.ProposalKey(daoID, proposalID)]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *memoryTx) UpdateProposalStatus(ctx context.Context, daoID entities.DaoID, proposalID string, status entities.ProposalStatus) error {
	if err := t.check("UpdateProposalStatus", daoID, proposalID, status); err != nil {
		return err
	}
	p, ok := t.s.proposals[entities.ProposalKey(daoID, proposalID)]
	if !ok {
		return entities.ErrNotFound
	}
	p.Status = status
	return nil
}

func (t *memoryTx) AddProposalVotes(ctx context.Context, daoID entities.DaoID, proposalID string, support entities.VoteSupport, weight *big.Int) error {
	if err := t.check("AddProposalVotes", daoID, proposalID, support, weight); err != nil {
		return err
	}
	p, ok := t.s.proposals[entities.ProposalKey(daoID, proposalID)]
	if !ok {
		return entities.ErrNotFound
	}
	tally := p.Tally(support)
	if tally == nil {
		return fmt.Errorf("unknown support %d", support)
	}
	*tally = new(big.Int).Add(entities.CopyAmount(*tally), weight)
	return nil
}

// Read repositories over the committed state

func (m *MemoryLedger) GetByDao(ctx context.Context, daoID entities.DaoID) (*entities.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.state.tokens {
		if t.DaoID == daoID {
			return t.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MemoryLedger) GetAll(ctx context.Context) ([]entities.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tokens := make([]entities.Token, 0, len(m.state.tokens))
	for _, t := range m.state.tokens {
		tokens = append(tokens, *t.Clone())
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].DaoID < tokens[j].DaoID })
	return tokens, nil
}

func (m *MemoryLedger) GetByFilter(ctx context.Context, filter entities.TransferFilter) ([]entities.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Transfer, 0)
	for _, t := range m.state.transfers {
		if filter.Matches(t) {
			result = append(result, t)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		var c int
		if filter.SortBy == entities.SortByAmount {
			c = a.Value.Cmp(b.Value)
		} else {
			c = a.BlockTimestamp.Compare(b.BlockTimestamp)
		}
		if c == 0 {
			c = a.LogIndex - b.LogIndex
		}
		if filter.SortDesc {
			return c > 0
		}
		return c < 0
	})

	return paginate(result, filter.Limit, filter.Offset), nil
}

func (m *MemoryLedger) GetCount(ctx context.Context, filter entities.TransferFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, t := range m.state.transfers {
		if filter.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryLedger) GetTokenStats(ctx context.Context, daoID entities.DaoID, now time.Time) (*repositories.TokenStatsResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := &repositories.TokenStatsResult{}
	from, to := map[string]struct{}{}, map[string]struct{}{}
	total, vol24, vol7 := new(big.Int), new(big.Int), new(big.Int)
	for _, t := range m.state.transfers {
		if t.DaoID != daoID {
			continue
		}
		res.TotalTransfers++
		from[t.FromAddress] = struct{}{}
		to[t.ToAddress] = struct{}{}
		total.Add(total, t.Value)
		if !t.BlockTimestamp.Before(now.Add(-24 * time.Hour)) {
			res.Transfers24h++
			vol24.Add(vol24, t.Value)
		}
		if !t.BlockTimestamp.Before(now.Add(-7 * 24 * time.Hour)) {
			res.Transfers7d++
			vol7.Add(vol7, t.Value)
		}
		ts := t.BlockTimestamp
		if res.FirstTransferAt == nil || ts.Before(*res.FirstTransferAt) {
			res.FirstTransferAt = &ts
		}
		if res.LastTransferAt == nil || ts.After(*res.LastTransferAt) {
			res.LastTransferAt = &ts
		}
	}
	res.UniqueFromAddrs = int64(len(from))
	res.UniqueToAddrs = int64(len(to))
	res.TotalVolume = total.String()
	res.Volume24h = vol24.String()
	res.Volume7d = vol7.String()
	return res, nil
}

func (m *MemoryLedger) ListDelegates(ctx context.Context, filter repositories.DelegateFilter) ([]entities.AccountPower, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.AccountPower, 0)
	for _, p := range m.state.powers {
		if p.DaoID != filter.DaoID {
			continue
		}
		if filter.FromDate != nil && !entities.ActiveSince(p.LastActivityAt, *filter.FromDate) {
			continue
		}
		result = append(result, *p.Clone())
	}

	field := entities.FieldVotingPower
	switch filter.OrderBy {
	case repositories.OrderByDelegations:
		field = entities.FieldDelegationsCount
	case repositories.OrderByVotes:
		field = entities.FieldVotesCount
	}
	sort.SliceStable(result, func(i, j int) bool {
		c := result[i].Counter(field).Cmp(result[j].Counter(field))
		if c == 0 {
			return result[i].AccountID < result[j].AccountID
		}
		if filter.Desc {
			return c > 0
		}
		return c < 0
	})

	return paginate(result, filter.Limit, filter.Offset), int64(len(result)), nil
}

func (m *MemoryLedger) ListHolders(ctx context.Context, filter repositories.HolderFilter) ([]entities.AccountBalance, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.AccountBalance, 0)
	for _, b := range m.state.balances {
		if b.TokenID != filter.TokenID || b.Balance.Sign() <= 0 {
			continue
		}
		if filter.FromDate != nil && !entities.ActiveSince(b.LastActivityAt, *filter.FromDate) {
			continue
		}
		c := *b
		c.Balance = entities.CopyAmount(b.Balance)
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		c := result[i].Balance.Cmp(result[j].Balance)
		if c == 0 {
			return result[i].AccountID < result[j].AccountID
		}
		if filter.Desc {
			return c > 0
		}
		return c < 0
	})

	return paginate(result, filter.Limit, filter.Offset), int64(len(result)), nil
}

func (m *MemoryLedger) BalancesAtBlock(ctx context.Context, tokenID string, addresses []string, block int64) ([]entities.BalanceHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.BalanceHistory, 0, len(addresses))
	for _, addr := range addresses {
		var best *entities.BalanceHistory
		for i := range m.state.balanceHistory {
			h := &m.state.balanceHistory[i]
			if h.AccountID != addr || h.TokenID != tokenID || h.BlockNumber > block {
				continue
			}
			if best == nil || h.BlockNumber > best.BlockNumber ||
				(h.BlockNumber == best.BlockNumber && h.LogIndex > best.LogIndex) {
				best = h
			}
		}
		if best != nil {
			result = append(result, *best)
		}
	}
	return result, nil
}

func (m *MemoryLedger) VotingPowerAtBlock(ctx context.Context, daoID entities.DaoID, addresses []string, block int64) ([]entities.VotingPowerHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.VotingPowerHistory, 0, len(addresses))
	for _, addr := range addresses {
		var best *entities.VotingPowerHistory
		for i := range m.state.powerHistory {
			h := &m.state.powerHistory[i]
			if h.AccountID != addr || h.DaoID != daoID || h.BlockNumber > block {
				continue
			}
			if best == nil || h.BlockNumber > best.BlockNumber ||
				(h.BlockNumber == best.BlockNumber && h.LogIndex > best.LogIndex) {
				best = h
			}
		}
		if best != nil {
			result = append(result, *best)
		}
	}
	return result, nil
}

func (m *MemoryLedger) GetAccountBalance(ctx context.Context, tokenID, account string) (*entities.AccountBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.state.balances[accountKey{account: account, scope: tokenID}]
	if !ok {
		return nil, nil
	}
	c := *b
	c.Balance = entities.CopyAmount(b.Balance)
	return &c, nil
}

func (m *MemoryLedger) GetAccountPower(ctx context.Context, daoID entities.DaoID, account string) (*entities.AccountPower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.state.powers[accountKey{account: account, scope: string(daoID)}]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (m *MemoryLedger) ActiveSupply(ctx context.Context, daoID entities.DaoID, since time.Time) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := new(big.Int)
	for _, p := range m.state.powers {
		if p.DaoID == daoID && p.LastVoteTimestamp != nil && !p.LastVoteTimestamp.Before(since) {
			sum.Add(sum, p.VotingPower)
		}
	}
	return sum, nil
}

func (m *MemoryLedger) LatestBucketAtOrBefore(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, date time.Time) (*entities.DayBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *entities.DayBucket
	for _, b := range m.state.buckets {
		if b.DaoID != daoID || b.MetricType != metric || b.Date.After(date) {
			continue
		}
		if best == nil || b.Date.After(best.Date) {
			best = b
		}
	}
	if best == nil {
		return nil, entities.ErrNotFound
	}
	return best.Clone(), nil
}

func (m *MemoryLedger) ListBuckets(ctx context.Context, daoID entities.DaoID, metric entities.MetricType, from, to time.Time) ([]entities.DayBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.DayBucket, 0)
	for _, b := range m.state.buckets {
		if b.DaoID != daoID || b.MetricType != metric || b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		result = append(result, *b.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *MemoryLedger) List(ctx context.Context, filter repositories.ProposalFilter) ([]entities.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Proposal, 0)
	for _, p := range m.state.proposals {
		if p.DaoID == filter.DaoID {
			result = append(result, *p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (m *MemoryLedger) Get(ctx context.Context, daoID entities.DaoID, proposalID string) (*entities.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.state.proposals[entities.ProposalKey(daoID, proposalID)]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryLedger) ListVotes(ctx context.Context, daoID entities.DaoID, proposalID string) ([]entities.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.Vote, 0)
	for _, v := range m.state.votes {
		if v.DaoID == daoID && v.ProposalID == proposalID {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		return result[i].LogIndex < result[j].LogIndex
	})
	return result, nil
}

// paginate applies offset/limit; limit <= 0 returns everything after offset
func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Inspection helpers for tests

// Token returns a copy of the committed token row
func (m *MemoryLedger) Token(tokenID string) *entities.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.state.tokens[tokenID]; ok {
		return t.Clone()
	}
	return nil
}

// Balance returns the committed balance of account, zero when unknown
func (m *MemoryLedger) Balance(account, tokenID string) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.state.balances[accountKey{account: account, scope: tokenID}]; ok {
		return entities.CopyAmount(b.Balance)
	}
	return new(big.Int)
}

// Delegate returns the committed delegate of account
func (m *MemoryLedger) Delegate(account, tokenID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.state.balances[accountKey{account: account, scope: tokenID}]; ok {
		return b.Delegate
	}
	return ""
}

// SumBalances adds up every committed balance of a token
func (m *MemoryLedger) SumBalances(tokenID string) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := new(big.Int)
	for k, b := range m.state.balances {
		if k.scope == tokenID {
			sum.Add(sum, b.Balance)
		}
	}
	return sum
}

// Power returns a copy of the committed power row, nil when unknown
func (m *MemoryLedger) Power(account string, daoID entities.DaoID) *entities.AccountPower {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.state.powers[accountKey{account: account, scope: string(daoID)}]; ok {
		return p.Clone()
	}
	return nil
}

// Bucket returns a copy of the committed bucket, nil when unknown
func (m *MemoryLedger) Bucket(key entities.BucketKey) *entities.DayBucket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.state.buckets[key]; ok {
		return b.Clone()
	}
	return nil
}

// BucketCount returns the number of committed buckets
func (m *MemoryLedger) BucketCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.buckets)
}

// Transfers returns the committed transfer facts in insertion order
func (m *MemoryLedger) Transfers() []entities.Transfer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.Transfer(nil), m.state.transfers...)
}

// Delegations returns the committed delegation facts in insertion order
func (m *MemoryLedger) Delegations() []entities.Delegation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.Delegation(nil), m.state.delegations...)
}

// VotingPowerHistory returns the committed voting power snapshots in insertion order
func (m *MemoryLedger) VotingPowerHistory() []entities.VotingPowerHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.VotingPowerHistory(nil), m.state.powerHistory...)
}

// BalanceHistory returns the committed balance snapshots in insertion order
func (m *MemoryLedger) BalanceHistory() []entities.BalanceHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.BalanceHistory(nil), m.state.balanceHistory...)
}

// Accounts returns the number of known accounts
func (m *MemoryLedger) Accounts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.accounts)
}

// Seeding helpers for read-side tests

// PutToken stores a token row
func (m *MemoryLedger) PutToken(t *entities.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.tokens[t.ID] = t.Clone()
}

// PutBalance stores a balance row
func (m *MemoryLedger) PutBalance(b entities.AccountBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Balance = entities.CopyAmount(b.Balance)
	m.state.balances[accountKey{account: b.AccountID, scope: b.TokenID}] = &b
}

// PutPower stores a power row
func (m *MemoryLedger) PutPower(p *entities.AccountPower) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.powers[accountKey{account: p.AccountID, scope: string(p.DaoID)}] = p.Clone()
}

// PutBucket stores a bucket row
func (m *MemoryLedger) PutBucket(b *entities.DayBucket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.buckets[b.Key()] = b.Clone()
}

// PutProposal stores a proposal row
func (m *MemoryLedger) PutProposal(p *entities.Proposal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.proposals[entities.ProposalKey(p.DaoID, p.ProposalID)] = p.Clone()
}

// AddTransfers appends transfer facts
func (m *MemoryLedger) AddTransfers(transfers ...entities.Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range transfers {
		if m.state.insertFact("transfers", t.TxHash, t.LogIndex) {
			m.state.transfers = append(m.state.transfers, t)
		}
	}
}

// AddBalanceHistory appends balance snapshots
func (m *MemoryLedger) AddBalanceHistory(rows ...entities.BalanceHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.balanceHistory = append(m.state.balanceHistory, rows...)
}

// AddVotingPowerHistory appends voting power snapshots
func (m *MemoryLedger) AddVotingPowerHistory(rows ...entities.VotingPowerHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.powerHistory = append(m.state.powerHistory, rows...)
}
