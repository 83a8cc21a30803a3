package fees

import (
	"errors"
	"math/big"
	"testing"

	"settlementScope/internal/model"
)

func TestVolumePolicyReverseSell(t *testing.T) {
	trade := exampleSellTrade(nil, NullAddress)
	reversed, err := VolumePolicy{Factor: big.NewRat(1, 10)}.Reverse(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// fee = round(99400 * (1/10) / (9/10)) = round(99400/9) = 11044
	if reversed.BuyAmount.Int64() != 99400+11044 {
		t.Fatalf("reversed buy amount = %s, want 110444", reversed.BuyAmount)
	}
	if trade.BuyAmount.Int64() != 99400 {
		t.Fatalf("input trade mutated: buy amount = %s", trade.BuyAmount)
	}
}

func TestVolumePolicyReverseBuy(t *testing.T) {
	trade := Trade{
		SellToken:  tokenA,
		BuyToken:   tokenB,
		SellAmount: big.NewInt(1000),
		BuyAmount:  big.NewInt(500),
		Kind:       OrderKindBuy,
	}
	reversed, err := VolumePolicy{Factor: big.NewRat(1, 10)}.Reverse(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// fee = round(1000 * (1/10) / (11/10)) = round(1000/11) = 91
	if reversed.SellAmount.Int64() != 1000-91 {
		t.Fatalf("reversed sell amount = %s, want 909", reversed.SellAmount)
	}
}

func TestPolicyRejectsOutOfRangeFactor(t *testing.T) {
	trade := exampleSellTrade(nil, NullAddress)
	policies := []FeePolicy{
		VolumePolicy{Factor: big.NewRat(1, 1)},
		VolumePolicy{Factor: big.NewRat(-1, 10)},
		VolumePolicy{Factor: nil},
		SurplusPolicy{Factor: big.NewRat(1, 1), MaxVolumeFactor: big.NewRat(1, 100)},
		SurplusPolicy{Factor: big.NewRat(1, 10), MaxVolumeFactor: big.NewRat(2, 1)},
		PriceImprovementPolicy{Factor: big.NewRat(1, 1), MaxVolumeFactor: big.NewRat(1, 100)},
	}
	for i, policy := range policies {
		_, err := policy.Reverse(trade)
		if !errors.Is(err, model.ErrMalformedInput) {
			t.Fatalf("policy %d: error = %v, want malformed input", i, err)
		}
	}
}

func TestPriceImprovementFeeFlooredAtZero(t *testing.T) {
	trade := exampleSellTrade(nil, NullAddress)
	policy := PriceImprovementPolicy{
		Factor:          big.NewRat(1, 10),
		MaxVolumeFactor: big.NewRat(1, 20),
		Quote: Quote{
			SellAmount: big.NewInt(100000),
			BuyAmount:  big.NewInt(100000),
			FeeAmount:  new(big.Int),
		},
	}

	// executed buy 99400 is below the quote's 100000: the improvement
	// is negative and no fee may be charged
	reversed, err := policy.Reverse(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reversed.BuyAmount.Cmp(trade.BuyAmount) != 0 {
		t.Fatalf("negative improvement charged a fee: %s != %s", reversed.BuyAmount, trade.BuyAmount)
	}
}

func TestSurplusPolicyVolumeCap(t *testing.T) {
	trade := exampleSellTrade(nil, NullAddress)
	policy := SurplusPolicy{Factor: big.NewRat(9, 10), MaxVolumeFactor: big.NewRat(1, 1000)}

	reversed, err := policy.Reverse(trade)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// surplus fee round(400*(9/10)/(1/10)) = 3600 exceeds the cap
	// round(99400*(1/1000)/(999/1000)) = round(99400/999) = 99
	if reversed.BuyAmount.Int64() != 99400+99 {
		t.Fatalf("capped buy amount = %s, want 99499", reversed.BuyAmount)
	}
}
