package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"settlementScope/internal/chain"
	"settlementScope/internal/imbalance"
	"settlementScope/internal/model"
	"settlementScope/internal/storage"
)

// RunConfig holds runtime settings for the audit loop.
type RunConfig struct {
	ChainName    string
	Addresses    imbalance.Addresses
	PollInterval time.Duration
	Workers      int
}

// Runner drives the per-chain audit loop: discover settlement
// transactions, audit each one, persist results, advance the cursor.
type Runner struct {
	cfg       RunConfig
	chain     ChainSource
	orderbook SettlementSource
	prices    PriceSource
	store     storage.Store
	logger    *zap.Logger

	mu    sync.Mutex
	retry []chain.SettlementTx
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainSource ChainSource, orderbook SettlementSource, prices PriceSource, store storage.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Runner{
		cfg:       cfg,
		chain:     chainSource,
		orderbook: orderbook,
		prices:    prices,
		store:     store,
		logger:    logger,
	}
}

// Run executes the audit loop until the context is cancelled. The
// cursor always advances past a completed round; transactions that
// failed with a retryable error are carried to the next round instead
// of holding the cursor back.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain source is nil")
	}
	if r.orderbook == nil {
		return fmt.Errorf("orderbook source is nil")
	}
	if r.store == nil {
		return fmt.Errorf("store is nil")
	}

	from, err := r.startBlock(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("audit loop started", zap.String("chain", r.cfg.ChainName), zap.Uint64("from", from))

	for {
		latest, err := r.chain.FinalizedBlockNumber(ctx)
		switch {
		case err != nil:
			r.logger.Warn("finalized block fetch failed, round deferred", zap.Error(err))
		case latest < from && !r.hasRetries():
			// nothing new and nothing queued
		default:
			found, err := r.discover(ctx, from, latest)
			if err != nil {
				r.logger.Warn("settlement scan failed, round deferred", zap.Error(err), zap.Uint64("from", from), zap.Uint64("to", latest))
				break
			}
			pending := append(found, r.takeRetries()...)
			if len(pending) > 0 {
				r.logger.Info("round started", zap.Uint64("from", from), zap.Uint64("to", latest), zap.Int("transactions", len(pending)))
				r.processBatch(ctx, pending)
			}
			if latest >= from {
				if err := r.store.SaveCursor(ctx, r.cfg.ChainName, latest); err != nil {
					r.logger.Warn("cursor save failed", zap.Error(err), zap.Uint64("block_number", latest))
				}
				from = latest + 1
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// startBlock resumes from the stored cursor, falling back to the
// current finalized block on a fresh start.
func (r *Runner) startBlock(ctx context.Context) (uint64, error) {
	cursor, ok, err := r.store.LoadCursor(ctx, r.cfg.ChainName)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		r.logger.Info("resume from cursor", zap.Uint64("last_processed", cursor))
		return cursor + 1, nil
	}
	finalized, err := r.chain.FinalizedBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("finalized block: %w", err)
	}
	return finalized, nil
}

// discover scans the block range for settlement transactions. An empty
// range yields no transactions without touching the chain.
func (r *Runner) discover(ctx context.Context, from, to uint64) ([]chain.SettlementTx, error) {
	if to < from {
		return nil, nil
	}
	return r.chain.SettlementTransactions(ctx, from, to)
}

// processBatch runs the pending transactions on a bounded worker pool.
// Each outcome is classified independently: retryable failures are
// requeued for the next round, fatal ones are logged and dropped.
func (r *Runner) processBatch(ctx context.Context, pending []chain.SettlementTx) {
	sem := make(chan struct{}, r.cfg.Workers)
	var wg sync.WaitGroup
	for _, tx := range pending {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(tx chain.SettlementTx) {
			defer wg.Done()
			defer func() { <-sem }()
			err := r.processOne(ctx, tx)
			switch {
			case err == nil:
			case model.IsRetryable(err):
				r.logger.Warn("transaction requeued", zap.String("tx_hash", tx.TxHash.Hex()), zap.Error(err))
				r.requeue(tx)
			default:
				r.logger.Error("transaction dropped", zap.String("tx_hash", tx.TxHash.Hex()), zap.Error(err))
			}
		}(tx)
	}
	wg.Wait()
}

func (r *Runner) requeue(tx chain.SettlementTx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retry = append(r.retry, tx)
}

func (r *Runner) takeRetries() []chain.SettlementTx {
	r.mu.Lock()
	defer r.mu.Unlock()
	queued := r.retry
	r.retry = nil
	return queued
}

func (r *Runner) hasRetries() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.retry) > 0
}
