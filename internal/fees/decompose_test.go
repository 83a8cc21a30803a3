package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

var partner = common.HexToAddress("0x3333333333333333333333333333333333333333")

func exampleSellTrade(policies []FeePolicy, partnerRecipient common.Address) Trade {
	return Trade{
		OrderUID:               "0xabc",
		SellToken:              tokenA,
		BuyToken:               tokenB,
		SellAmount:             big.NewInt(100000),
		BuyAmount:              big.NewInt(99400),
		LimitSellAmount:        big.NewInt(100000),
		LimitBuyAmount:         big.NewInt(99000),
		Kind:                   OrderKindSell,
		SellTokenClearingPrice: big.NewInt(1),
		BuyTokenClearingPrice:  big.NewInt(1),
		FeePolicies:            policies,
		PartnerFeeRecipient:    partnerRecipient,
	}
}

func TestComputeSurplusPolicy(t *testing.T) {
	trade := exampleSellTrade([]FeePolicy{
		SurplusPolicy{Factor: big.NewRat(1, 10), MaxVolumeFactor: big.NewRat(1, 20)},
	}, NullAddress)

	breakdown, err := Compute(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// surplus 400, surplus fee round(400/9) = 44, volume cap
	// round(99400/19) = 5232, applied fee min = 44
	if breakdown.Protocol.Int64() != 44 {
		t.Fatalf("protocol fee = %s, want 44", breakdown.Protocol)
	}
	if breakdown.Partner.Sign() != 0 {
		t.Fatalf("partner fee = %s, want 0", breakdown.Partner)
	}
	// realized fee 600 in the buy token minus protocol 44, converted
	// at clearing prices 1:1
	if breakdown.Network.Int64() != 556 {
		t.Fatalf("network fee = %s, want 556", breakdown.Network)
	}
	if breakdown.SurplusToken != tokenB {
		t.Fatalf("surplus token = %s, want buy token", breakdown.SurplusToken.Hex())
	}
	if breakdown.SellToken != tokenA {
		t.Fatalf("sell token = %s, want %s", breakdown.SellToken.Hex(), tokenA.Hex())
	}
}

func TestComputeNoPolicies(t *testing.T) {
	breakdown, err := Compute(exampleSellTrade(nil, NullAddress))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if breakdown.Protocol.Sign() != 0 || breakdown.Partner.Sign() != 0 {
		t.Fatalf("fees without policies = %s/%s, want 0/0", breakdown.Protocol, breakdown.Partner)
	}
	if breakdown.Network.Int64() != 600 {
		t.Fatalf("network fee = %s, want the full realized fee 600", breakdown.Network)
	}
}

func TestComputeZeroVolumePolicyIsNoop(t *testing.T) {
	with, err := Compute(exampleSellTrade([]FeePolicy{VolumePolicy{Factor: new(big.Rat)}}, NullAddress))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	without, err := Compute(exampleSellTrade(nil, NullAddress))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if with.Protocol.Cmp(without.Protocol) != 0 || with.Network.Cmp(without.Network) != 0 {
		t.Fatalf("zero volume policy changed fees: %+v != %+v", with, without)
	}
}

func TestComputePartnerFee(t *testing.T) {
	policies := []FeePolicy{
		SurplusPolicy{Factor: big.NewRat(1, 10), MaxVolumeFactor: big.NewRat(1, 20)},
	}

	// null recipient: the whole fee counts as protocol
	nullPartner, err := Compute(exampleSellTrade(policies, NullAddress))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nullPartner.Partner.Sign() != 0 {
		t.Fatalf("partner fee with null recipient = %s, want 0", nullPartner.Partner)
	}

	// set recipient: the last-applied policy's fee is the partner fee
	withPartner, err := Compute(exampleSellTrade(policies, partner))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withPartner.Partner.Int64() != 44 {
		t.Fatalf("partner fee = %s, want 44", withPartner.Partner)
	}
	if withPartner.Protocol.Sign() != 0 {
		t.Fatalf("protocol fee = %s, want 0 when the only policy is the partner's", withPartner.Protocol)
	}
	if withPartner.PartnerRecipient != partner {
		t.Fatalf("partner recipient = %s, want %s", withPartner.PartnerRecipient.Hex(), partner.Hex())
	}
}

func TestComputeBatchFailsWhole(t *testing.T) {
	settlement := SettlementData{
		Trades: []Trade{
			exampleSellTrade(nil, NullAddress),
			{Kind: OrderKind("limit")},
		},
	}

	if _, err := ComputeBatch(settlement); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("batch error = %v, want malformed input", err)
	}
}

func TestRecordsThreeRowsPerTrade(t *testing.T) {
	settlement := SettlementData{
		AuctionID: 42,
		TxHash:    common.HexToHash("0xdead"),
		Trades:    []Trade{exampleSellTrade(nil, NullAddress)},
	}
	breakdowns, err := ComputeBatch(settlement)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := Records("mainnet", settlement, 100, breakdowns)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	types := map[model.FeeType]bool{}
	for _, record := range records {
		types[record.Type] = true
		if record.AuctionID != 42 || record.BlockNumber != 100 {
			t.Fatalf("record carries wrong identifiers: %+v", record)
		}
		if record.OrderUID != "0xabc" {
			t.Fatalf("record order uid = %s, want 0xabc", record.OrderUID)
		}
	}
	for _, ft := range []model.FeeType{model.FeeTypeProtocol, model.FeeTypePartner, model.FeeTypeNetwork} {
		if !types[ft] {
			t.Fatalf("missing %s row", ft)
		}
	}
}
