// Package postgres persists audit results with idempotent, per-
// transaction atomic writes.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"settlementScope/internal/model"
)

// Store provides Postgres persistence for imbalances, fees, prices, and
// the pipeline cursor.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WriteImbalances inserts a transaction's full imbalance map in one
// database transaction. The (tx_hash, token_address) uniqueness makes
// replays no-ops.
func (s *Store) WriteImbalances(ctx context.Context, records []model.ImbalanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO raw_token_imbalances (
				chain_name, auction_id, block_number, tx_hash, token_address, imbalance
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tx_hash, token_address) DO NOTHING
		`,
			r.ChainName,
			r.AuctionID,
			int64(r.BlockNumber),
			r.TxHash.Bytes(),
			r.Token.Bytes(),
			r.Imbalance.String(),
		)
	}
	return s.sendInTx(ctx, batch)
}

// WriteFees inserts a transaction's full fee decomposition in one
// database transaction, keyed by (tx_hash, order_uid, fee_type).
func (s *Store) WriteFees(ctx context.Context, records []model.FeeRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO fees (
				chain_name, auction_id, block_number, tx_hash, order_uid,
				token_address, fee_amount, fee_type, fee_recipient
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (tx_hash, order_uid, fee_type) DO NOTHING
		`,
			r.ChainName,
			r.AuctionID,
			int64(r.BlockNumber),
			r.TxHash.Bytes(),
			common.FromHex(r.OrderUID),
			r.Token.Bytes(),
			r.Amount.String(),
			string(r.Type),
			r.Recipient.Bytes(),
		)
	}
	return s.sendInTx(ctx, batch)
}

// WritePrices inserts token prices, keyed by (tx_hash, token_address).
func (s *Store) WritePrices(ctx context.Context, records []model.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO prices (
				chain_name, source, block_number, tx_hash, token_address, price
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tx_hash, token_address) DO NOTHING
		`,
			r.ChainName,
			r.Source,
			int64(r.BlockNumber),
			r.TxHash.Bytes(),
			r.Token.Bytes(),
			r.Price,
		)
	}
	return s.sendInTx(ctx, batch)
}

// LoadCursor returns the last processed block for a chain.
func (s *Store) LoadCursor(ctx context.Context, chainName string) (uint64, bool, error) {
	if chainName == "" {
		return 0, false, fmt.Errorf("chain name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM auditor_state WHERE chain_name=$1`, chainName)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveCursor upserts the last processed block for a chain.
func (s *Store) SaveCursor(ctx context.Context, chainName string, blockNumber uint64) error {
	if chainName == "" {
		return fmt.Errorf("chain name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auditor_state (chain_name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, chainName, int64(blockNumber))
	return err
}

func (s *Store) sendInTx(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
