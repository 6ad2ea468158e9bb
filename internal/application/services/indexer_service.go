package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/application/accounting"
	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
	"github.com/bimakw/dao-indexer/internal/domain/repositories"
	"github.com/bimakw/dao-indexer/internal/infrastructure/cache"
	"github.com/bimakw/dao-indexer/internal/infrastructure/ethereum"
	"github.com/bimakw/dao-indexer/internal/retry"
)

// EventSource delivers decoded chain events
type EventSource interface {
	// SafeBlockNumber returns the newest block considered final
	SafeBlockNumber(ctx context.Context) (int64, error)

	// FetchEvents returns the events of dao's contracts in [from, to] sorted by (block, logIndex)
	FetchEvents(ctx context.Context, dao config.DAO, from, to int64) ([]events.Event, error)
}

// IndexerService orchestrates the indexing process
type IndexerService struct {
	source     EventSource
	processors []*accounting.Processor
	stateRepo  repositories.IndexerStateRepository
	cache      *cache.RedisCache
	config     config.IndexerConfig
	retry      retry.Config
	logger     *zap.Logger

	metricsMu sync.RWMutex
	metrics   IndexerMetrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// IndexerMetrics tracks indexer performance
type IndexerMetrics struct {
	BlocksIndexed     int64
	EventsProcessed   int64
	EventsSkipped     int64
	LastIndexedBlock  int64
	LastIndexedTime   time.Time
	IndexingLatencyMs int64
	ErrorCount        int64
}

// NewIndexerService creates a new indexer service. One processor per DAO.
func NewIndexerService(
	source EventSource,
	processors []*accounting.Processor,
	stateRepo repositories.IndexerStateRepository,
	cache *cache.RedisCache,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *IndexerService {
	return &IndexerService{
		source:     source,
		processors: processors,
		stateRepo:  stateRepo,
		cache:      cache,
		config:     cfg,
		retry: retry.Config{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			Multiplier:    2.0,
			JitterEnabled: true,
		},
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the indexing process
func (s *IndexerService) Start(ctx context.Context) error {
	ids := make([]string, len(s.processors))
	for i, p := range s.processors {
		ids[i] = string(p.DAO().ID)
	}
	s.logger.Info("Starting indexer service", zap.Strings("daos", ids))

	if err := s.initializeState(ctx); err != nil {
		return fmt.Errorf("failed to initialize indexer state: %w", err)
	}

	s.wg.Add(1)
	go s.runIndexingLoop(ctx)

	return nil
}

// Stop gracefully stops the indexer
func (s *IndexerService) Stop() {
	s.logger.Info("Stopping indexer service")
	close(s.stopCh)
	s.wg.Wait()
}

// GetMetrics returns current indexer metrics
func (s *IndexerService) GetMetrics() IndexerMetrics {
	s.metricsMu.RLock()
	defer s.metricsMu.RUnlock()
	return s.metrics
}

// initializeState creates a checkpoint just before the start block of every new DAO
func (s *IndexerService) initializeState(ctx context.Context) error {
	for _, p := range s.processors {
		dao := p.DAO()

		existing, err := s.stateRepo.Get(ctx, dao.ID)
		if err != nil {
			return fmt.Errorf("failed to check state of %s: %w", dao.ID, err)
		}
		if existing != nil {
			continue
		}

		state := &entities.IndexerState{
			DaoID:            dao.ID,
			LastIndexedBlock: dao.StartBlock - 1,
		}
		if err := s.stateRepo.Upsert(ctx, state); err != nil {
			return fmt.Errorf("failed to create indexer state for %s: %w", dao.ID, err)
		}

		s.logger.Info("Initialized dao",
			zap.String("dao", string(dao.ID)),
			zap.Int64("start_block", dao.StartBlock),
		)
	}
	return nil
}

// runIndexingLoop continuously indexes new blocks
func (s *IndexerService) runIndexingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.indexNewBlocks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.indexNewBlocks(ctx)
		}
	}
}

// indexNewBlocks indexes every DAO up to the safe head. DAOs run one after another.
func (s *IndexerService) indexNewBlocks(ctx context.Context) {
	startTime := time.Now()

	safeBlock, err := s.source.SafeBlockNumber(ctx)
	if err != nil {
		s.logger.Error("Failed to get safe block number", zap.Error(err))
		s.incrementErrorCount()
		return
	}

	for _, p := range s.processors {
		if err := s.indexDAO(ctx, p, safeBlock); err != nil {
			s.logger.Error("Error indexing dao",
				zap.String("dao", string(p.DAO().ID)),
				zap.Error(err),
			)
			s.incrementErrorCount()
		}
	}

	s.metricsMu.Lock()
	s.metrics.IndexingLatencyMs = time.Since(startTime).Milliseconds()
	s.metrics.LastIndexedTime = time.Now()
	s.metricsMu.Unlock()
}

// indexDAO processes the blocks after the DAO's checkpoint. The checkpoint moves only
// after every event of a batch has been handled.
func (s *IndexerService) indexDAO(ctx context.Context, p *accounting.Processor, toBlock int64) error {
	dao := p.DAO()

	state, err := s.stateRepo.Get(ctx, dao.ID)
	if err != nil {
		return fmt.Errorf("failed to get indexer state: %w", err)
	}
	if state == nil {
		return fmt.Errorf("indexer state not found for %s", dao.ID)
	}

	fromBlock := state.LastIndexedBlock + 1
	if fromBlock > toBlock {
		return nil
	}

	for _, r := range ethereum.SplitBlockRange(fromBlock, toBlock, s.config.BatchSize) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, skipped, err := s.processRange(ctx, p, r)
		if err != nil {
			return err
		}

		if err := s.stateRepo.Advance(ctx, dao.ID, r.To, processed, skipped); err != nil {
			return fmt.Errorf("failed to update checkpoint: %w", err)
		}

		if processed > 0 && s.cache != nil {
			if err := s.cache.InvalidateDAO(ctx, dao.ID); err != nil {
				s.logger.Warn("Failed to invalidate cache", zap.String("dao", string(dao.ID)), zap.Error(err))
			}
		}

		s.updateMetrics(r.To-r.From+1, processed, skipped, r.To)

		s.logger.Debug("Indexed block range",
			zap.String("dao", string(dao.ID)),
			zap.Int64("from", r.From),
			zap.Int64("to", r.To),
			zap.Int64("processed", processed),
			zap.Int64("skipped", skipped),
		)
	}

	return nil
}

// processRange fetches one batch and hands its events to the processor in order.
// Storage failures are retried with backoff; each attempt replays the whole event transaction.
func (s *IndexerService) processRange(ctx context.Context, p *accounting.Processor, r ethereum.BlockRange) (processed, skipped int64, err error) {
	dao := p.DAO()

	evs, err := s.source.FetchEvents(ctx, dao, r.From, r.To)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch events for blocks %d-%d: %w", r.From, r.To, err)
	}

	for _, ev := range evs {
		var res accounting.Result
		err := retry.WithBackoff(ctx, s.retry, s.logger, "process_event", func() error {
			var perr error
			res, perr = p.Process(ctx, ev)
			return perr
		})
		if err != nil {
			return processed, skipped, fmt.Errorf("failed to process block range %d-%d: %w", r.From, r.To, err)
		}

		if res.Reason == accounting.ReasonOK {
			processed++
		} else {
			skipped++
		}
	}

	return processed, skipped, nil
}

// Backfill replays historical blocks of one DAO without moving its checkpoint.
// Events already applied are skipped as duplicates.
func (s *IndexerService) Backfill(ctx context.Context, daoID entities.DaoID, fromBlock, toBlock int64) error {
	var p *accounting.Processor
	for _, candidate := range s.processors {
		if candidate.DAO().ID == daoID {
			p = candidate
			break
		}
	}
	if p == nil {
		return fmt.Errorf("dao %s is not configured", daoID)
	}

	s.logger.Info("Starting backfill",
		zap.String("dao", string(daoID)),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
	)

	ranges := ethereum.SplitBlockRange(fromBlock, toBlock, s.config.BatchSize)

	for i, r := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, skipped, err := s.processRange(ctx, p, r)
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}

		s.logger.Info("Backfill progress",
			zap.String("dao", string(daoID)),
			zap.Int("batch", i+1),
			zap.Int("total_batches", len(ranges)),
			zap.Int64("from", r.From),
			zap.Int64("to", r.To),
			zap.Int64("processed", processed),
			zap.Int64("skipped", skipped),
		)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateDAO(ctx, daoID); err != nil {
			s.logger.Warn("Failed to invalidate cache", zap.String("dao", string(daoID)), zap.Error(err))
		}
	}

	s.logger.Info("Backfill completed",
		zap.String("dao", string(daoID)),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
	)

	return nil
}

func (s *IndexerService) updateMetrics(blocks, processed, skipped, lastBlock int64) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.BlocksIndexed += blocks
	s.metrics.EventsProcessed += processed
	s.metrics.EventsSkipped += skipped
	if lastBlock > s.metrics.LastIndexedBlock {
		s.metrics.LastIndexedBlock = lastBlock
	}
}

func (s *IndexerService) incrementErrorCount() {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.ErrorCount++
}
