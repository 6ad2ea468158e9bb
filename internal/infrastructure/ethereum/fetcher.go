package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/domain/entities"
	"github.com/bimakw/dao-indexer/internal/domain/events"
)

// Fetcher pulls raw logs for DAO contracts and decodes them into events
type Fetcher struct {
	reader   ChainReader
	decoders map[entities.DaoID]*Decoder
	config   config.IndexerConfig
	logger   *zap.Logger
}

// NewFetcher creates a fetcher with one decoder per configured DAO
func NewFetcher(reader ChainReader, daos []config.DAO, cfg config.IndexerConfig, logger *zap.Logger) (*Fetcher, error) {
	decoders := make(map[entities.DaoID]*Decoder, len(daos))
	for _, dao := range daos {
		d, err := NewDecoder(dao)
		if err != nil {
			return nil, fmt.Errorf("dao %s: %w", dao.ID, err)
		}
		decoders[dao.ID] = d
	}

	return &Fetcher{
		reader:   reader,
		decoders: decoders,
		config:   cfg,
		logger:   logger,
	}, nil
}

// FetchEvents fetches and decodes the events of dao in [fromBlock, toBlock],
// ordered by (block, logIndex). Undecodable logs are logged and skipped.
func (f *Fetcher) FetchEvents(ctx context.Context, dao config.DAO, fromBlock, toBlock int64) ([]events.Event, error) {
	decoder, ok := f.decoders[dao.ID]
	if !ok {
		return nil, fmt.Errorf("no decoder for dao %s", dao.ID)
	}

	query := BuildFilterQuery(
		big.NewInt(fromBlock),
		big.NewInt(toBlock),
		decoder.Addresses(),
		decoder.Topics(),
	)

	f.logger.Debug("Fetching logs",
		zap.String("dao", string(dao.ID)),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
	)

	logs, err := f.reader.GetLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	if len(logs) == 0 {
		return []events.Event{}, nil
	}

	// Collect unique block numbers and fetch timestamps concurrently
	blockNumbers := make(map[uint64]struct{})
	for _, log := range logs {
		if !log.Removed {
			blockNumbers[log.BlockNumber] = struct{}{}
		}
	}

	blockTimestamps, err := f.fetchBlockTimestamps(ctx, blockNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block timestamps: %w", err)
	}

	evs := make([]events.Event, 0, len(logs))
	failed := 0
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev, err := decoder.Decode(log, blockTimestamps[log.BlockNumber])
		if err != nil {
			if !errors.Is(err, entities.ErrInvalidEvent) {
				return nil, err
			}
			failed++
			f.logger.Warn("Skipping undecodable log",
				zap.String("dao", string(dao.ID)),
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		evs = append(evs, ev)
	}

	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].Meta().Before(evs[j].Meta())
	})

	f.logger.Info("Fetched events",
		zap.String("dao", string(dao.ID)),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
		zap.Int("event_count", len(evs)),
		zap.Int("failed_count", failed),
	)

	return evs, nil
}

// fetchBlockTimestamps fetches timestamps for multiple blocks concurrently
func (f *Fetcher) fetchBlockTimestamps(ctx context.Context, blockNumbers map[uint64]struct{}) (map[uint64]time.Time, error) {
	timestamps := make(map[uint64]time.Time, len(blockNumbers))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	workers := f.config.WorkerCount
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for blockNum := range blockNumbers {
		blockNum := blockNum
		g.Go(func() error {
			timestamp, err := f.reader.GetBlockTimestamp(ctx, blockNum)
			if err != nil {
				return fmt.Errorf("failed to get timestamp for block %d: %w", blockNum, err)
			}

			mu.Lock()
			timestamps[blockNum] = timestamp
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return timestamps, nil
}

// SafeBlockNumber returns the latest block number minus confirmations
func (f *Fetcher) SafeBlockNumber(ctx context.Context) (int64, error) {
	latestBlock, err := f.reader.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	safeBlock := int64(latestBlock) - int64(f.config.BlockConfirmations)
	if safeBlock < 0 {
		safeBlock = 0
	}

	return safeBlock, nil
}

// BlockRange represents a range of blocks to fetch
type BlockRange struct {
	From int64
	To   int64
}

// SplitBlockRange splits a range into batches
func SplitBlockRange(fromBlock, toBlock int64, batchSize int) []BlockRange {
	if fromBlock > toBlock {
		return nil
	}
	if batchSize < 1 {
		batchSize = 1
	}

	var ranges []BlockRange
	for current := fromBlock; current <= toBlock; current += int64(batchSize) {
		end := current + int64(batchSize) - 1
		if end > toBlock {
			end = toBlock
		}
		ranges = append(ranges, BlockRange{From: current, To: end})
	}

	return ranges
}
