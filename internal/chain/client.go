package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"settlementScope/internal/model"
)

// DefaultFinalityLag is the block distance treated as finalized, matching
// the settlement backend's convention.
const DefaultFinalityLag = 67

// Config controls client behavior.
type Config struct {
	Settlement   common.Address
	FinalityLag  uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client wraps go-ethereum RPC and provides the settlement-audit data
// accessors. Transient RPC retries live here; callers only see the
// transaction-level error classification.
type Client struct {
	cfg       Config
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, cfg Config) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	if cfg.FinalityLag == 0 {
		cfg.FinalityLag = DefaultFinalityLag
	}

	return &Client{
		cfg:       cfg,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Settlement returns the monitored settlement contract address.
func (c *Client) Settlement() common.Address {
	return c.cfg.Settlement
}

// withRetry runs fn up to MaxRetries+1 times with exponential backoff
// starting at RetryBackoff. Context cancellation cuts the wait short.
func (c *Client) withRetry(ctx context.Context, fn func(context.Context) error) error {
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := c.cfg.RetryBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= retries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// FinalizedBlockNumber returns the newest block treated as finalized.
func (c *Client) FinalizedBlockNumber(ctx context.Context) (uint64, error) {
	var latest uint64
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		latest, err = c.ethClient.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, model.UpstreamError(err)
	}
	if latest < c.cfg.FinalityLag {
		return 0, nil
	}
	return latest - c.cfg.FinalityLag, nil
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	var header *types.Header
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		header, err = c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	if err != nil {
		return 0, model.UpstreamError(err)
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// SettlementTx references one discovered settlement transaction.
type SettlementTx struct {
	TxHash      common.Hash
	AuctionID   int64
	BlockNumber uint64
}

// SettlementTransactions scans the inclusive block range for
// transactions sent to the settlement contract and resolves each one's
// auction id from its call data. Transactions whose call data cannot be
// decoded carry auction id zero rather than being dropped.
func (c *Client) SettlementTransactions(ctx context.Context, fromBlock, toBlock uint64) ([]SettlementTx, error) {
	found := make([]SettlementTx, 0)
	for number := fromBlock; number <= toBlock; number++ {
		var block *types.Block
		err := c.withRetry(ctx, func(ctx context.Context) error {
			var err error
			block, err = c.ethClient.BlockByNumber(ctx, new(big.Int).SetUint64(number))
			return err
		})
		if err != nil {
			return nil, model.UpstreamError(err)
		}
		for _, tx := range block.Transactions() {
			if tx.To() == nil || *tx.To() != c.cfg.Settlement {
				continue
			}
			entry := SettlementTx{TxHash: tx.Hash(), BlockNumber: number}
			if call, err := DecodeSettlementCallData(tx.Data()); err == nil {
				entry.AuctionID = call.AuctionID
			}
			found = append(found, entry)
		}
	}
	return found, nil
}

// Receipt fetches the transaction receipt. A missing receipt is
// transient: the node may simply not have indexed the transaction yet.
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = c.ethClient.TransactionReceipt(ctx, txHash)
		return err
	})
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, model.TransientDataError("receipt for %s not available", txHash.Hex())
		}
		return nil, model.UpstreamError(err)
	}
	return receipt, nil
}

// SettlementCallData fetches and decodes the settle call of the
// transaction.
func (c *Client) SettlementCallData(ctx context.Context, txHash common.Hash) (*SettlementCall, error) {
	var tx *types.Transaction
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		tx, _, err = c.ethClient.TransactionByHash(ctx, txHash)
		return err
	})
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, model.TransientDataError("transaction %s not available", txHash.Hex())
		}
		return nil, model.UpstreamError(err)
	}
	return DecodeSettlementCallData(tx.Data())
}

type rpcTrace struct {
	Action rpcTraceAction `json:"action"`
	Type   string         `json:"type"`
}

type rpcTraceAction struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Input hexutil.Bytes  `json:"input"`
}

// TraceActions fetches the call trace of the transaction and returns its
// raw actions. A missing trace is transient; traces become available
// later than receipts on most nodes.
func (c *Client) TraceActions(ctx context.Context, txHash common.Hash) ([]model.RawTraceAction, error) {
	var traces []rpcTrace
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &traces, "trace_transaction", txHash)
	})
	if err != nil {
		return nil, model.TransientDataError("trace for %s: %v", txHash.Hex(), err)
	}
	if traces == nil {
		return nil, model.TransientDataError("trace for %s not yet indexed", txHash.Hex())
	}

	actions := make([]model.RawTraceAction, 0, len(traces))
	for _, trace := range traces {
		value := new(big.Int)
		if trace.Action.Value != nil {
			value = trace.Action.Value.ToInt()
		}
		actions = append(actions, model.RawTraceAction{
			From:  trace.Action.From,
			To:    trace.Action.To,
			Value: value,
			Input: trace.Action.Input,
		})
	}
	return actions, nil
}
