package fees

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

// Breakdown splits the fees charged to one trade into their components.
// Protocol and partner fees are denominated in the surplus token, the
// network fee in the sell token.
type Breakdown struct {
	OrderUID         string
	SurplusToken     common.Address
	Protocol         *big.Int
	Partner          *big.Int
	PartnerRecipient common.Address
	SellToken        common.Address
	Network          *big.Int
}

// Compute peels the trade's fee policies off in reverse application
// order and decomposes the recovered surplus difference into protocol,
// partner, and network fees.
//
// The partner fee policy is assumed to be the last one applied; the
// partner fee is therefore read off after the first reversal step when a
// partner recipient is set.
func Compute(trade Trade) (Breakdown, error) {
	observedSurplus, err := trade.Surplus()
	if err != nil {
		return Breakdown{}, err
	}

	raw := trade
	partnerFee := new(big.Int)
	for i := len(trade.FeePolicies) - 1; i >= 0; i-- {
		raw, err = trade.FeePolicies[i].Reverse(raw)
		if err != nil {
			return Breakdown{}, err
		}
		if i == len(trade.FeePolicies)-1 && trade.PartnerFeeRecipient != NullAddress {
			rawSurplus, err := raw.Surplus()
			if err != nil {
				return Breakdown{}, err
			}
			partnerFee.Sub(rawSurplus, observedSurplus)
		}
	}

	rawSurplus, err := raw.Surplus()
	if err != nil {
		return Breakdown{}, err
	}
	totalProtocolFee := new(big.Int).Sub(rawSurplus, observedSurplus)
	protocolFee := new(big.Int).Sub(totalProtocolFee, partnerFee)

	surplusFee, err := trade.SurplusFee()
	if err != nil {
		return Breakdown{}, err
	}
	networkFee := new(big.Int).Sub(surplusFee, totalProtocolFee)
	if trade.Kind == OrderKindSell {
		// surplus token is the buy token; convert to the sell token at
		// the clearing-price ratio, truncating.
		networkFee = mulDivTrunc(networkFee, trade.BuyTokenClearingPrice, trade.SellTokenClearingPrice)
	}

	surplusToken, err := trade.SurplusToken()
	if err != nil {
		return Breakdown{}, err
	}

	return Breakdown{
		OrderUID:         trade.OrderUID,
		SurplusToken:     surplusToken,
		Protocol:         protocolFee,
		Partner:          partnerFee,
		PartnerRecipient: trade.PartnerFeeRecipient,
		SellToken:        trade.SellToken,
		Network:          networkFee,
	}, nil
}

// ComputeBatch decomposes fees for every trade of a settlement. An
// invalid trade fails the whole batch; fee results are never partially
// applied.
func ComputeBatch(settlement SettlementData) ([]Breakdown, error) {
	breakdowns := make([]Breakdown, 0, len(settlement.Trades))
	for _, trade := range settlement.Trades {
		breakdown, err := Compute(trade)
		if err != nil {
			return nil, err
		}
		breakdowns = append(breakdowns, breakdown)
	}
	return breakdowns, nil
}

// Records flattens breakdowns into persistable fee rows for one
// settlement transaction.
func Records(chainName string, settlement SettlementData, blockNumber uint64, breakdowns []Breakdown) []model.FeeRecord {
	records := make([]model.FeeRecord, 0, 3*len(breakdowns))
	for _, b := range breakdowns {
		records = append(records,
			model.FeeRecord{
				ChainName:   chainName,
				AuctionID:   settlement.AuctionID,
				BlockNumber: blockNumber,
				TxHash:      settlement.TxHash,
				OrderUID:    b.OrderUID,
				Token:       b.SurplusToken,
				Amount:      b.Protocol,
				Type:        model.FeeTypeProtocol,
				Recipient:   NullAddress,
			},
			model.FeeRecord{
				ChainName:   chainName,
				AuctionID:   settlement.AuctionID,
				BlockNumber: blockNumber,
				TxHash:      settlement.TxHash,
				OrderUID:    b.OrderUID,
				Token:       b.SurplusToken,
				Amount:      b.Partner,
				Type:        model.FeeTypePartner,
				Recipient:   b.PartnerRecipient,
			},
			model.FeeRecord{
				ChainName:   chainName,
				AuctionID:   settlement.AuctionID,
				BlockNumber: blockNumber,
				TxHash:      settlement.TxHash,
				OrderUID:    b.OrderUID,
				Token:       b.SellToken,
				Amount:      b.Network,
				Type:        model.FeeTypeNetwork,
				Recipient:   NullAddress,
			},
		)
	}
	return records
}
