package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
)

var _ repositories.IndexerStateRepository = (*MockIndexerStateRepository)(nil)

type MockCall struct {
	Method string
	Args   []interface{}
}

// MockIndexerStateRepository is a mock implementation of IndexerStateRepository
type MockIndexerStateRepository struct {
	mu     sync.RWMutex
	states map[entities.DaoID]*entities.IndexerState

	// Function hooks
	GetFunc     func(ctx context.Context, daoID entities.DaoID) (*entities.IndexerState, error)
	UpsertFunc  func(ctx context.Context, state *entities.IndexerState) error
	AdvanceFunc func(ctx context.Context, daoID entities.DaoID, blockNumber int64, processed, skipped int64) error

	Calls []MockCall
}

func NewMockIndexerStateRepository() *MockIndexerStateRepository {
	return &MockIndexerStateRepository{
		states: make(map[entities.DaoID]*entities.IndexerState),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockIndexerStateRepository) Get(ctx context.Context, daoID entities.DaoID) (*entities.IndexerState, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{daoID}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, daoID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[daoID]; ok {
		c := *state
		return &c, nil
	}
	return nil, nil
}

func (m *MockIndexerStateRepository) Upsert(ctx context.Context, state *entities.IndexerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{state}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, state)
	}

	c := *state
	m.states[state.DaoID] = &c
	return nil
}

func (m *MockIndexerStateRepository) Advance(ctx context.Context, daoID entities.DaoID, blockNumber int64, processed, skipped int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Advance", Args: []interface{}{daoID, blockNumber, processed, skipped}})

	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, daoID, blockNumber, processed, skipped)
	}

	state, ok := m.states[daoID]
	if !ok {
		state = &entities.IndexerState{DaoID: daoID}
		m.states[daoID] = state
	}
	state.LastIndexedBlock = blockNumber
	state.EventsProcessed += processed
	state.EventsSkipped += skipped
	return nil
}

// AddState adds a state to the mock store
func (m *MockIndexerStateRepository) AddState(state *entities.IndexerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *state
	m.states[state.DaoID] = &c
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
