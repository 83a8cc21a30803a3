package fees

import (
	"math/big"

	"settlementScope/internal/model"
)

// FeePolicy reverses its own application on a trade, recovering the
// trade as it would have executed without the fee. Reverse never mutates
// its input.
type FeePolicy interface {
	Reverse(trade Trade) (Trade, error)
}

// VolumePolicy charges a fraction of the executed volume.
type VolumePolicy struct {
	Factor *big.Rat
}

func (p VolumePolicy) Reverse(trade Trade) (Trade, error) {
	if !validFactor(p.Factor) {
		return Trade{}, model.MalformedInputError("volume fee factor %v is out of range for order %s", p.Factor, trade.OrderUID)
	}
	volume, err := trade.Volume()
	if err != nil {
		return Trade{}, err
	}
	switch trade.Kind {
	case OrderKindSell:
		fee := scaleByFactor(volume, p.Factor, false)
		return trade.withBuyAmount(new(big.Int).Add(trade.BuyAmount, fee)), nil
	case OrderKindBuy:
		fee := scaleByFactor(volume, p.Factor, true)
		sellAmount := new(big.Int).Sub(trade.SellAmount, fee)
		if sellAmount.Sign() < 0 {
			return Trade{}, model.InvariantError("volume fee reversal yields negative sell amount for order %s", trade.OrderUID)
		}
		return trade.withSellAmount(sellAmount), nil
	}
	return Trade{}, model.MalformedInputError("order kind %q is invalid", trade.Kind)
}

// SurplusPolicy charges a fraction of the surplus, capped at a fraction
// of the volume.
type SurplusPolicy struct {
	Factor          *big.Rat
	MaxVolumeFactor *big.Rat
}

func (p SurplusPolicy) Reverse(trade Trade) (Trade, error) {
	if !validFactor(p.Factor) || !validFactor(p.MaxVolumeFactor) {
		return Trade{}, model.MalformedInputError("surplus fee factors %v/%v are out of range for order %s", p.Factor, p.MaxVolumeFactor, trade.OrderUID)
	}
	surplus, err := trade.Surplus()
	if err != nil {
		return Trade{}, err
	}
	volume, err := trade.Volume()
	if err != nil {
		return Trade{}, err
	}
	surplusFee := scaleByFactor(surplus, p.Factor, false)
	switch trade.Kind {
	case OrderKindSell:
		volumeFee := scaleByFactor(volume, p.MaxVolumeFactor, false)
		fee := minInt(surplusFee, volumeFee)
		return trade.withBuyAmount(new(big.Int).Add(trade.BuyAmount, fee)), nil
	case OrderKindBuy:
		volumeFee := scaleByFactor(volume, p.MaxVolumeFactor, true)
		fee := minInt(surplusFee, volumeFee)
		sellAmount := new(big.Int).Sub(trade.SellAmount, fee)
		if sellAmount.Sign() < 0 {
			return Trade{}, model.InvariantError("surplus fee reversal yields negative sell amount for order %s", trade.OrderUID)
		}
		return trade.withSellAmount(sellAmount), nil
	}
	return Trade{}, model.MalformedInputError("order kind %q is invalid", trade.Kind)
}

// PriceImprovementPolicy charges a fraction of the improvement over a
// reference quote, capped at a fraction of the volume. The improvement
// fee is floored at zero before the cap applies.
type PriceImprovementPolicy struct {
	Factor          *big.Rat
	MaxVolumeFactor *big.Rat
	Quote           Quote
}

func (p PriceImprovementPolicy) Reverse(trade Trade) (Trade, error) {
	if !validFactor(p.Factor) || !validFactor(p.MaxVolumeFactor) {
		return Trade{}, model.MalformedInputError("price improvement fee factors %v/%v are out of range for order %s", p.Factor, p.MaxVolumeFactor, trade.OrderUID)
	}
	improvement, err := trade.PriceImprovement(p.Quote)
	if err != nil {
		return Trade{}, err
	}
	volume, err := trade.Volume()
	if err != nil {
		return Trade{}, err
	}
	improvementFee := scaleByFactor(improvement, p.Factor, false)
	if improvementFee.Sign() < 0 {
		improvementFee = new(big.Int)
	}
	switch trade.Kind {
	case OrderKindSell:
		volumeFee := scaleByFactor(volume, p.MaxVolumeFactor, false)
		fee := minInt(improvementFee, volumeFee)
		return trade.withBuyAmount(new(big.Int).Add(trade.BuyAmount, fee)), nil
	case OrderKindBuy:
		volumeFee := scaleByFactor(volume, p.MaxVolumeFactor, true)
		fee := minInt(improvementFee, volumeFee)
		sellAmount := new(big.Int).Sub(trade.SellAmount, fee)
		if sellAmount.Sign() < 0 {
			return Trade{}, model.InvariantError("price improvement fee reversal yields negative sell amount for order %s", trade.OrderUID)
		}
		return trade.withSellAmount(sellAmount), nil
	}
	return Trade{}, model.MalformedInputError("order kind %q is invalid", trade.Kind)
}
