package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenImbalance maps token addresses to the signed net balance change of
// the settlement contract over one transaction. The native asset is keyed
// by its pseudo-address.
type TokenImbalance map[common.Address]*big.Int

// Add accumulates delta into the entry for token, creating it if absent.
func (t TokenImbalance) Add(token common.Address, delta *big.Int) {
	current, ok := t[token]
	if !ok {
		current = new(big.Int)
		t[token] = current
	}
	current.Add(current, delta)
}

// Sub subtracts delta from the entry for token, creating it if absent.
func (t TokenImbalance) Sub(token common.Address, delta *big.Int) {
	current, ok := t[token]
	if !ok {
		current = new(big.Int)
		t[token] = current
	}
	current.Sub(current, delta)
}

// Get returns the delta for token, zero when absent.
func (t TokenImbalance) Get(token common.Address) *big.Int {
	if current, ok := t[token]; ok {
		return current
	}
	return new(big.Int)
}
