package fees

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

// NullAddress marks the absence of a partner fee recipient. An order
// placed with the partner recipient set to the null address has its
// partner fee accounted for as protocol fee instead.
var NullAddress = common.Address{}

// OrderKind distinguishes sell and buy orders. Any other value is a
// malformed trade.
type OrderKind string

const (
	OrderKindSell OrderKind = "sell"
	OrderKindBuy  OrderKind = "buy"
)

// Trade is one executed order within a settlement together with its fee
// policies. Trades are immutable: reversing a fee produces a new value.
type Trade struct {
	OrderUID               string
	SellToken              common.Address
	BuyToken               common.Address
	SellAmount             *big.Int
	BuyAmount              *big.Int
	LimitSellAmount        *big.Int
	LimitBuyAmount         *big.Int
	Kind                   OrderKind
	SellTokenClearingPrice *big.Int
	BuyTokenClearingPrice  *big.Int
	FeePolicies            []FeePolicy
	PartnerFeeRecipient    common.Address
}

// Volume returns the executed amount in the surplus token.
func (t Trade) Volume() (*big.Int, error) {
	switch t.Kind {
	case OrderKindSell:
		return t.BuyAmount, nil
	case OrderKindBuy:
		return t.SellAmount, nil
	}
	return nil, model.MalformedInputError("order kind %q is invalid", t.Kind)
}

// Surplus returns the surplus of the trade in the surplus token.
//
// The reference amount is the worst price still allowed by the
// settlement contract: for sell orders the scaled limit buy amount is
// rounded up, for buy orders the scaled limit sell amount is truncated.
// Reproducing this asymmetry exactly is required for fee amounts to
// match on-chain values.
func (t Trade) Surplus() (*big.Int, error) {
	switch t.Kind {
	case OrderKindSell:
		limitBuy := mulDivCeil(t.LimitBuyAmount, t.SellAmount, t.LimitSellAmount)
		return new(big.Int).Sub(t.BuyAmount, limitBuy), nil
	case OrderKindBuy:
		limitSell := mulDivTrunc(t.LimitSellAmount, t.BuyAmount, t.LimitBuyAmount)
		return limitSell.Sub(limitSell, t.SellAmount), nil
	}
	return nil, model.MalformedInputError("order kind %q is invalid", t.Kind)
}

// SurplusToken returns the token surplus is measured in: the buy token
// for sell orders and the sell token for buy orders.
func (t Trade) SurplusToken() (common.Address, error) {
	switch t.Kind {
	case OrderKindSell:
		return t.BuyToken, nil
	case OrderKindBuy:
		return t.SellToken, nil
	}
	return common.Address{}, model.MalformedInputError("order kind %q is invalid", t.Kind)
}

// PriceImprovement returns the improvement over the quote, measured like
// Surplus but with the quote determining the reference price.
func (t Trade) PriceImprovement(quote Quote) (*big.Int, error) {
	effectiveSell, err := quote.EffectiveSellAmount(t.Kind)
	if err != nil {
		return nil, err
	}
	effectiveBuy, err := quote.EffectiveBuyAmount(t.Kind)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case OrderKindSell:
		reference := mulDivCeil(effectiveBuy, t.SellAmount, effectiveSell)
		return new(big.Int).Sub(t.BuyAmount, reference), nil
	case OrderKindBuy:
		reference := mulDivTrunc(effectiveSell, t.BuyAmount, effectiveBuy)
		return reference.Sub(reference, t.SellAmount), nil
	}
	return nil, model.MalformedInputError("order kind %q is invalid", t.Kind)
}

// SurplusFee returns the fee realized on-chain in the surplus token,
// measured against the auction clearing prices with the same rounding
// convention as Surplus.
func (t Trade) SurplusFee() (*big.Int, error) {
	switch t.Kind {
	case OrderKindSell:
		buyAtClearing := mulDivCeil(t.SellAmount, t.SellTokenClearingPrice, t.BuyTokenClearingPrice)
		return buyAtClearing.Sub(buyAtClearing, t.BuyAmount), nil
	case OrderKindBuy:
		sellAtClearing := mulDivTrunc(t.BuyAmount, t.BuyTokenClearingPrice, t.SellTokenClearingPrice)
		return new(big.Int).Sub(t.SellAmount, sellAtClearing), nil
	}
	return nil, model.MalformedInputError("order kind %q is invalid", t.Kind)
}

// withBuyAmount returns a copy of the trade with a replaced buy amount.
func (t Trade) withBuyAmount(amount *big.Int) Trade {
	t.BuyAmount = amount
	return t
}

// withSellAmount returns a copy of the trade with a replaced sell amount.
func (t Trade) withSellAmount(amount *big.Int) Trade {
	t.SellAmount = amount
	return t
}

// Quote is the reference quote a price-improvement policy measures
// against.
type Quote struct {
	SellAmount *big.Int
	BuyAmount  *big.Int
	FeeAmount  *big.Int
}

// EffectiveSellAmount returns the quote sell amount with the quote fee
// folded in for buy orders.
func (q Quote) EffectiveSellAmount(kind OrderKind) (*big.Int, error) {
	switch kind {
	case OrderKindSell:
		return q.SellAmount, nil
	case OrderKindBuy:
		return new(big.Int).Add(q.SellAmount, q.FeeAmount), nil
	}
	return nil, model.MalformedInputError("order kind %q is invalid", kind)
}

// EffectiveBuyAmount returns the quote buy amount adjusted for the quote
// fee at the quote exchange rate for sell orders.
func (q Quote) EffectiveBuyAmount(kind OrderKind) (*big.Int, error) {
	switch kind {
	case OrderKindSell:
		netSell := new(big.Int).Sub(q.SellAmount, q.FeeAmount)
		return mulDivCeil(netSell, q.BuyAmount, q.SellAmount), nil
	case OrderKindBuy:
		return q.BuyAmount, nil
	}
	return nil, model.MalformedInputError("order kind %q is invalid", kind)
}

// SettlementData describes one settlement: the winning solution's trades
// plus the auction's native token prices. It is built per transaction
// and discarded once its fees are persisted.
type SettlementData struct {
	AuctionID    int64
	TxHash       common.Hash
	Solver       common.Address
	Trades       []Trade
	NativePrices map[common.Address]*big.Int
}
