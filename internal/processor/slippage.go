package processor

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/fees"
	"settlementScope/internal/model"
)

// Slippage nets the settlement contract's imbalance against the fees it
// is owed: protocol and partner fees accrue in the surplus token,
// network fees in the sell token. Tokens that only appear on the fee
// side still get an entry, so the caller sees every token a price is
// needed for.
func Slippage(imbalances model.TokenImbalance, breakdowns []fees.Breakdown) model.TokenImbalance {
	slippage := make(model.TokenImbalance, len(imbalances))
	for token, value := range imbalances {
		slippage[token] = new(big.Int).Set(value)
	}
	for _, b := range breakdowns {
		slippage.Sub(b.SurplusToken, b.Protocol)
		slippage.Sub(b.SurplusToken, b.Partner)
		slippage.Sub(b.SellToken, b.Network)
	}
	return slippage
}

// nativeScale is the auction price convention: an amount's native value
// is amount * price / 1e18, independent of token decimals.
var nativeScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// NativeSlippage values a slippage map in native wei using the
// auction's native token prices. ok=false when a token with non-zero
// slippage has no auction price; partial sums are never reported.
func NativeSlippage(slippage model.TokenImbalance, nativePrices map[common.Address]*big.Int) (*big.Int, bool) {
	total := new(big.Int)
	for _, token := range nonZeroTokens(slippage) {
		price, ok := nativePrices[token]
		if !ok {
			return nil, false
		}
		value := new(big.Int).Mul(slippage[token], price)
		value.Quo(value, nativeScale)
		total.Add(total, value)
	}
	return total, true
}

// nonZeroTokens lists the tokens with non-zero slippage in a stable
// order so log output and price lookups are deterministic.
func nonZeroTokens(slippage model.TokenImbalance) []common.Address {
	tokens := make([]common.Address, 0, len(slippage))
	for token, value := range slippage {
		if value.Sign() != 0 {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return bytes.Compare(tokens[i][:], tokens[j][:]) < 0
	})
	return tokens
}
