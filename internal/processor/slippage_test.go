package processor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/fees"
	"settlementScope/internal/model"
)

func TestSlippageNetsFees(t *testing.T) {
	buyToken := common.HexToAddress("0x4444444444444444444444444444444444444444")
	imbalances := model.TokenImbalance{
		testToken: big.NewInt(1000),
		buyToken:  big.NewInt(700),
	}
	breakdowns := []fees.Breakdown{{
		OrderUID:     "0xabc",
		SurplusToken: buyToken,
		Protocol:     big.NewInt(44),
		Partner:      big.NewInt(6),
		SellToken:    testToken,
		Network:      big.NewInt(550),
	}}

	slippage := Slippage(imbalances, breakdowns)

	if got := slippage.Get(testToken); got.Int64() != 450 {
		t.Fatalf("sell token slippage = %s, want 1000-550 = 450", got)
	}
	if got := slippage.Get(buyToken); got.Int64() != 650 {
		t.Fatalf("surplus token slippage = %s, want 700-44-6 = 650", got)
	}
	// inputs must stay untouched
	if imbalances.Get(testToken).Int64() != 1000 {
		t.Fatalf("input imbalance mutated: %s", imbalances.Get(testToken))
	}
}

func TestSlippageCoversFeeOnlyTokens(t *testing.T) {
	feeToken := common.HexToAddress("0x5555555555555555555555555555555555555555")
	breakdowns := []fees.Breakdown{{
		SurplusToken: feeToken,
		Protocol:     big.NewInt(10),
		Partner:      new(big.Int),
		SellToken:    feeToken,
		Network:      new(big.Int),
	}}

	slippage := Slippage(model.TokenImbalance{}, breakdowns)
	if got := slippage.Get(feeToken); got.Int64() != -10 {
		t.Fatalf("fee-only token slippage = %s, want -10", got)
	}
}

func TestNativeSlippage(t *testing.T) {
	buyToken := common.HexToAddress("0x4444444444444444444444444444444444444444")
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	slippage := model.TokenImbalance{
		testToken: big.NewInt(1000),
		buyToken:  big.NewInt(-200),
	}
	prices := map[common.Address]*big.Int{
		testToken: new(big.Int).Set(one),                // 1:1 with native
		buyToken:  new(big.Int).Mul(big.NewInt(2), one), // 2x native
	}

	total, ok := NativeSlippage(slippage, prices)
	if !ok {
		t.Fatalf("native slippage not computed")
	}
	if total.Int64() != 1000-400 {
		t.Fatalf("native slippage = %s, want 600", total)
	}

	delete(prices, buyToken)
	if _, ok := NativeSlippage(slippage, prices); ok {
		t.Fatalf("partial price coverage reported a total")
	}
}

func TestNonZeroTokensSortedAndFiltered(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")
	c := common.HexToAddress("0x0000000000000000000000000000000000000003")
	slippage := model.TokenImbalance{
		c: big.NewInt(-1),
		a: big.NewInt(5),
		b: new(big.Int),
	}

	tokens := nonZeroTokens(slippage)
	if len(tokens) != 2 {
		t.Fatalf("tokens = %d, want zero-slippage entries dropped", len(tokens))
	}
	if tokens[0] != a || tokens[1] != c {
		t.Fatalf("tokens not sorted: %v", tokens)
	}
}
