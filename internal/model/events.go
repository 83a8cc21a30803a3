package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DecodedEvent is a typed event recovered from a settlement receipt log.
// The concrete types below form a closed set; a type switch over them is
// exhaustive.
type DecodedEvent interface {
	decodedEvent()
}

// Transfer is an ERC-20 Transfer (or ERC20Transfer) event.
type Transfer struct {
	Token common.Address
	From  common.Address
	To    common.Address
	Value *big.Int
}

// NativeWrapWithdraw is a wrapped-native Withdrawal(address,uint256) event.
type NativeWrapWithdraw struct {
	Account common.Address
	Value   *big.Int
}

// NativeWrapDeposit is a wrapped-native Deposit(address,uint256) event.
type NativeWrapDeposit struct {
	Account common.Address
	Value   *big.Int
}

// SpecialTokenDeposit is a rebasing/vault-share Deposit event whose
// indexed topics reference the settlement contract.
type SpecialTokenDeposit struct {
	Token common.Address
	Value *big.Int
}

// SpecialTokenWithdraw is the withdraw counterpart of SpecialTokenDeposit.
type SpecialTokenWithdraw struct {
	Token common.Address
	Value *big.Int
}

func (Transfer) decodedEvent()             {}
func (NativeWrapWithdraw) decodedEvent()   {}
func (NativeWrapDeposit) decodedEvent()    {}
func (SpecialTokenDeposit) decodedEvent()  {}
func (SpecialTokenWithdraw) decodedEvent() {}

// RawTraceAction is one call step as reported by the tracing endpoint,
// before qualification.
type RawTraceAction struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Input []byte
}

// TraceAction is a single native-value transfer step from a call trace.
// Only value-only calls (empty input) qualify; input-bearing calls are
// contract invocations, not plain transfers.
type TraceAction struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}
