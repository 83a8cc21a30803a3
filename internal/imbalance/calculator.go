// Package imbalance reconstructs the per-token balance change of the
// settlement contract over a single transaction from decoded events and
// trace actions.
package imbalance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

// Addresses holds the per-chain token addresses the calculator needs.
type Addresses struct {
	// Settlement is the reference address whose balance changes are
	// computed.
	Settlement common.Address
	// Native is the pseudo-address the native-asset delta is keyed by.
	Native common.Address
	// WrappedNative is the wrapped native token, corrected against the
	// trace-derived native delta.
	WrappedNative common.Address
}

// MainnetAddresses are the Ethereum mainnet defaults.
var MainnetAddresses = Addresses{
	Settlement:    common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"),
	Native:        common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"),
	WrappedNative: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
}

// Result is the computed imbalance map. Complete is false when the
// transaction trace was unavailable: ERC-20 and special-token accounting
// still ran from the receipt alone, but the native and wrapped-native
// steps were skipped entirely.
type Result struct {
	Imbalances model.TokenImbalance
	Complete   bool
}

// Calculate folds decoded events and qualifying trace actions into the
// signed per-token delta of the settlement contract. The fold is
// commutative, so log order never affects the result.
func Calculate(events []model.DecodedEvent, actions []model.TraceAction, hasTrace bool, addrs Addresses) Result {
	imbalances := make(model.TokenImbalance)

	applyTransfers(events, imbalances, addrs.Settlement)

	if hasTrace && len(actions) > 0 {
		// Unwrapping emits both a Transfer-shaped accounting artifact and
		// a withdraw event; the withdrawn value already shows up in the
		// native delta and must be removed from the wrapped entry.
		applyWrapCorrection(events, imbalances, addrs)
		imbalances[addrs.Native] = nativeDelta(actions, addrs.Settlement)
	}

	applySpecialTokens(events, imbalances)

	return Result{Imbalances: imbalances, Complete: hasTrace}
}

func applyTransfers(events []model.DecodedEvent, imbalances model.TokenImbalance, ref common.Address) {
	for _, event := range events {
		transfer, ok := event.(model.Transfer)
		if !ok {
			continue
		}
		if transfer.To == ref && transfer.From == ref {
			// Self-transfers appear in fee-withdrawal transactions; the
			// full value counts as inflow and never cancels out.
			imbalances.Add(transfer.Token, transfer.Value)
			continue
		}
		if transfer.To == ref {
			imbalances.Add(transfer.Token, transfer.Value)
		}
		if transfer.From == ref {
			imbalances.Sub(transfer.Token, transfer.Value)
		}
	}
}

func nativeDelta(actions []model.TraceAction, ref common.Address) *big.Int {
	delta := new(big.Int)
	for _, action := range actions {
		if action.To == ref {
			delta.Add(delta, action.Value)
		}
		if action.From == ref {
			delta.Sub(delta, action.Value)
		}
	}
	return delta
}

func applyWrapCorrection(events []model.DecodedEvent, imbalances model.TokenImbalance, addrs Addresses) {
	corrected := imbalances.Get(addrs.WrappedNative)
	for _, event := range events {
		switch e := event.(type) {
		case model.NativeWrapWithdraw:
			if e.Account == addrs.Settlement {
				corrected = new(big.Int).Sub(corrected, e.Value)
			}
		case model.NativeWrapDeposit:
			if e.Account == addrs.Settlement {
				corrected = new(big.Int).Add(corrected, e.Value)
			}
		}
	}
	imbalances[addrs.WrappedNative] = corrected
}

func applySpecialTokens(events []model.DecodedEvent, imbalances model.TokenImbalance) {
	for _, event := range events {
		switch e := event.(type) {
		case model.SpecialTokenDeposit:
			imbalances.Add(e.Token, e.Value)
		case model.SpecialTokenWithdraw:
			imbalances.Sub(e.Token, e.Value)
		}
	}
}
