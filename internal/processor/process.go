package processor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"settlementScope/internal/chain"
	"settlementScope/internal/decoder"
	"settlementScope/internal/fees"
	"settlementScope/internal/imbalance"
	"settlementScope/internal/model"
)

// ChainSource is the slice of the chain client the processor needs.
type ChainSource interface {
	FinalizedBlockNumber(ctx context.Context) (uint64, error)
	SettlementTransactions(ctx context.Context, fromBlock, toBlock uint64) ([]chain.SettlementTx, error)
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SettlementCallData(ctx context.Context, txHash common.Hash) (*chain.SettlementCall, error)
	TraceActions(ctx context.Context, txHash common.Hash) ([]model.RawTraceAction, error)
}

// SettlementSource resolves auction metadata for a settlement
// transaction.
type SettlementSource interface {
	Settlement(ctx context.Context, txHash common.Hash) (*fees.SettlementData, error)
}

// PriceSource resolves a token's native-asset price near a block.
// ok=false means no provider knew the token, which is not an error.
type PriceSource interface {
	Price(ctx context.Context, blockNumber uint64, token common.Address) (float64, string, bool)
}

// processOne audits a single settlement transaction: imbalance map,
// fee decomposition, and prices for tokens with non-zero slippage.
// Returned errors carry the model sentinel that decides whether the
// transaction is requeued or dropped. Writes happen only after every
// computation succeeded, so a failed transaction persists nothing.
func (r *Runner) processOne(ctx context.Context, tx chain.SettlementTx) error {
	call, err := r.chain.SettlementCallData(ctx, tx.TxHash)
	if err != nil {
		return err
	}
	receipt, err := r.chain.Receipt(ctx, tx.TxHash)
	if err != nil {
		return err
	}
	raw, err := r.chain.TraceActions(ctx, tx.TxHash)
	if err != nil {
		return err
	}

	blockNumber := tx.BlockNumber
	if blockNumber == 0 && receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	events := decoder.DecodeLogs(receipt.Logs, r.cfg.Addresses.Settlement)
	actions := decoder.QualifyingActions(raw, r.cfg.Addresses.Settlement)
	result := imbalance.Calculate(events, actions, true, r.cfg.Addresses)

	settlement, err := r.orderbook.Settlement(ctx, tx.TxHash)
	if err != nil {
		return err
	}
	breakdowns, err := fees.ComputeBatch(*settlement)
	if err != nil {
		return err
	}

	imbalanceRecords := make([]model.ImbalanceRecord, 0, len(result.Imbalances))
	for token, value := range result.Imbalances {
		if value.Sign() == 0 {
			continue
		}
		imbalanceRecords = append(imbalanceRecords, model.ImbalanceRecord{
			ChainName:   r.cfg.ChainName,
			AuctionID:   call.AuctionID,
			BlockNumber: blockNumber,
			TxHash:      tx.TxHash,
			Token:       token,
			Imbalance:   value,
		})
	}
	if err := r.store.WriteImbalances(ctx, imbalanceRecords); err != nil {
		return model.UpstreamError(err)
	}
	for _, record := range imbalanceRecords {
		r.logger.Debug("token imbalance",
			zap.String("tx_hash", tx.TxHash.Hex()),
			zap.String("token", record.Token.Hex()),
			zap.String("imbalance", record.Imbalance.String()))
	}

	feeRecords := fees.Records(r.cfg.ChainName, *settlement, blockNumber, breakdowns)
	if err := r.store.WriteFees(ctx, feeRecords); err != nil {
		return model.UpstreamError(err)
	}

	slippage := Slippage(result.Imbalances, breakdowns)
	priceRecords := make([]model.PriceRecord, 0, len(slippage))
	for _, token := range nonZeroTokens(slippage) {
		price, source, ok := r.prices.Price(ctx, blockNumber, token)
		if !ok {
			continue
		}
		priceRecords = append(priceRecords, model.PriceRecord{
			ChainName:   r.cfg.ChainName,
			Source:      source,
			BlockNumber: blockNumber,
			TxHash:      tx.TxHash,
			Token:       token,
			Price:       price,
		})
	}
	if err := r.store.WritePrices(ctx, priceRecords); err != nil {
		return model.UpstreamError(err)
	}

	if native, ok := NativeSlippage(slippage, settlement.NativePrices); ok {
		r.logger.Info("settlement slippage",
			zap.String("tx_hash", tx.TxHash.Hex()),
			zap.String("native_wei", native.String()))
	}

	r.logger.Info("transaction audited",
		zap.String("tx_hash", tx.TxHash.Hex()),
		zap.Int64("auction_id", call.AuctionID),
		zap.Uint64("block_number", blockNumber),
		zap.Int("imbalances", len(imbalanceRecords)),
		zap.Int("trades", len(breakdowns)),
		zap.Int("prices", len(priceRecords)))
	return nil
}

// ProcessTransaction audits one settlement transaction by hash, outside
// the polling loop. The block number is taken from the receipt.
func (r *Runner) ProcessTransaction(ctx context.Context, txHash common.Hash) error {
	return r.processOne(ctx, chain.SettlementTx{TxHash: txHash})
}
