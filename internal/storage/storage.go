package storage

import (
	"context"

	"settlementScope/internal/model"
)

// Store persists audit results. Writes are atomic per transaction and
// idempotent: replaying a transaction after a retry must not produce
// duplicate rows.
type Store interface {
	WriteImbalances(ctx context.Context, records []model.ImbalanceRecord) error
	WriteFees(ctx context.Context, records []model.FeeRecord) error
	WritePrices(ctx context.Context, records []model.PriceRecord) error

	// LoadCursor returns the last processed block for a chain, ok=false
	// when no cursor has been saved yet.
	LoadCursor(ctx context.Context, chainName string) (uint64, bool, error)
	SaveCursor(ctx context.Context, chainName string, blockNumber uint64) error
}
