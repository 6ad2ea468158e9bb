package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/bimakw/dao-indexer/internal/config"
	"github.com/bimakw/dao-indexer/internal/retry"
)

// ChainReader is the node surface the fetcher needs
type ChainReader interface {
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Ensure Client implements ChainReader
var _ ChainReader = (*Client)(nil)

// Client wraps ethclient with per-call timeouts and retries
type Client struct {
	client *ethclient.Client
	config config.EthereumConfig
	logger *zap.Logger
}

// NewClient creates a new Ethereum client
func NewClient(cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", cfg.ChainID, chainID.Int64())
	}

	logger.Info("Connected to Ethereum node",
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the Ethereum client connection
func (c *Client) Close() {
	c.client.Close()
}

// withRetry runs call with exponential backoff starting at RetryDelay.
// Each attempt is bounded by RequestTimeout.
func (c *Client) withRetry(ctx context.Context, what string, call func(ctx context.Context) error) error {
	policy := retry.Config{
		MaxAttempts:   c.config.MaxRetries + 1,
		InitialDelay:  c.config.RetryDelay,
		MaxDelay:      8 * c.config.RetryDelay,
		Multiplier:    2,
		JitterEnabled: true,
	}
	return retry.WithBackoff(ctx, policy, c.logger, what, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
		return call(attemptCtx)
	})
}

// GetLatestBlockNumber returns the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	var blockNumber uint64
	err := c.withRetry(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		blockNumber, err = c.client.BlockNumber(ctx)
		return err
	})
	return blockNumber, err
}

// GetHeaderByNumber returns a block header by its number
func (c *Client) GetHeaderByNumber(ctx context.Context, blockNumber *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.withRetry(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		header, err = c.client.HeaderByNumber(ctx, blockNumber)
		return err
	})
	return header, err
}

// GetLogs retrieves logs matching the filter query
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.withRetry(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.client.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// GetBlockTimestamp returns the timestamp of a block
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := c.GetHeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// CallContract runs a read-only call against the latest block
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var result []byte
	err := c.withRetry(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		result, err = c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return result, err
}

// BuildFilterQuery builds a filter query matching any of topics emitted by addresses
func BuildFilterQuery(fromBlock, toBlock *big.Int, addresses []common.Address, topics []common.Hash) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: addresses,
		Topics:    [][]common.Hash{topics},
	}
}
