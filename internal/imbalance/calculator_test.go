package imbalance

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

var (
	addrs  = MainnetAddresses
	tokenA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader = common.HexToAddress("0x2222222222222222222222222222222222222222")
	solver = common.HexToAddress("0x3333333333333333333333333333333333333333")
	sdai   = common.HexToAddress("0x83F20F44975D03b1b09e64809B757c47f942BEeA")
)

func TestCalculateTransferConservation(t *testing.T) {
	events := []model.DecodedEvent{
		model.Transfer{Token: tokenA, From: trader, To: addrs.Settlement, Value: big.NewInt(100)},
		model.Transfer{Token: tokenA, From: addrs.Settlement, To: solver, Value: big.NewInt(40)},
		model.Transfer{Token: tokenA, From: trader, To: solver, Value: big.NewInt(7)},
	}

	result := Calculate(events, nil, true, addrs)
	if got := result.Imbalances.Get(tokenA); got.Int64() != 60 {
		t.Fatalf("imbalance = %s, want 100-40 = 60", got)
	}
}

func TestCalculateSelfTransferCountsAsInflow(t *testing.T) {
	events := []model.DecodedEvent{
		model.Transfer{Token: tokenA, From: addrs.Settlement, To: addrs.Settlement, Value: big.NewInt(55)},
	}

	result := Calculate(events, nil, true, addrs)
	if got := result.Imbalances.Get(tokenA); got.Int64() != 55 {
		t.Fatalf("self-transfer imbalance = %s, want full inflow 55", got)
	}
}

func TestCalculateNativeDelta(t *testing.T) {
	actions := []model.TraceAction{
		{From: trader, To: addrs.Settlement, Value: big.NewInt(30)},
		{From: addrs.Settlement, To: solver, Value: big.NewInt(12)},
	}

	result := Calculate(nil, actions, true, addrs)
	native, ok := result.Imbalances[addrs.Native]
	if !ok {
		t.Fatalf("native entry missing")
	}
	if native.Int64() != 18 {
		t.Fatalf("native delta = %s, want 18", native)
	}
}

func TestCalculateNoActionsOmitsNativeEntry(t *testing.T) {
	result := Calculate(nil, nil, true, addrs)
	if _, ok := result.Imbalances[addrs.Native]; ok {
		t.Fatalf("native entry present without any qualifying action")
	}
}

func TestCalculateWrapCorrectionWithActions(t *testing.T) {
	// unwrap: the wrapped token emits a withdrawal event without a
	// transfer, while the native value arrives via the trace
	events := []model.DecodedEvent{
		model.NativeWrapWithdraw{Account: addrs.Settlement, Value: big.NewInt(100)},
	}
	actions := []model.TraceAction{
		{From: addrs.WrappedNative, To: addrs.Settlement, Value: big.NewInt(100)},
	}

	result := Calculate(events, actions, true, addrs)
	if got := result.Imbalances.Get(addrs.WrappedNative); got.Int64() != -100 {
		t.Fatalf("wrapped imbalance = %s, want -100 from the correction", got)
	}
	if got := result.Imbalances.Get(addrs.Native); got.Int64() != 100 {
		t.Fatalf("native imbalance = %s, want 100", got)
	}
}

func TestCalculateWrapCorrectionSkippedWithoutActions(t *testing.T) {
	events := []model.DecodedEvent{
		model.NativeWrapWithdraw{Account: addrs.Settlement, Value: big.NewInt(100)},
	}

	result := Calculate(events, nil, true, addrs)
	if got := result.Imbalances.Get(addrs.WrappedNative); got.Sign() != 0 {
		t.Fatalf("wrapped imbalance = %s, want untouched without qualifying actions", got)
	}
}

func TestCalculateSpecialTokenSigns(t *testing.T) {
	events := []model.DecodedEvent{
		model.SpecialTokenDeposit{Token: sdai, Value: big.NewInt(10)},
		model.SpecialTokenWithdraw{Token: sdai, Value: big.NewInt(4)},
	}

	result := Calculate(events, nil, true, addrs)
	if got := result.Imbalances.Get(sdai); got.Int64() != 6 {
		t.Fatalf("special token imbalance = %s, want 6", got)
	}
}

func TestCalculateIncompleteWithoutTrace(t *testing.T) {
	events := []model.DecodedEvent{
		model.Transfer{Token: tokenA, From: trader, To: addrs.Settlement, Value: big.NewInt(5)},
	}

	result := Calculate(events, nil, false, addrs)
	if result.Complete {
		t.Fatalf("result marked complete without a trace")
	}
	if got := result.Imbalances.Get(tokenA); got.Int64() != 5 {
		t.Fatalf("erc20 accounting skipped without trace: %s", got)
	}
}
