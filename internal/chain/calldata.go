package chain

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"settlementScope/internal/model"
)

const settleABIJSON = `[
  {
    "inputs": [
      {"internalType": "contract IERC20[]", "name": "tokens", "type": "address[]"},
      {"internalType": "uint256[]", "name": "clearingPrices", "type": "uint256[]"},
      {
        "components": [
          {"internalType": "uint256", "name": "sellTokenIndex", "type": "uint256"},
          {"internalType": "uint256", "name": "buyTokenIndex", "type": "uint256"},
          {"internalType": "address", "name": "receiver", "type": "address"},
          {"internalType": "uint256", "name": "sellAmount", "type": "uint256"},
          {"internalType": "uint256", "name": "buyAmount", "type": "uint256"},
          {"internalType": "uint32", "name": "validTo", "type": "uint32"},
          {"internalType": "bytes32", "name": "appData", "type": "bytes32"},
          {"internalType": "uint256", "name": "feeAmount", "type": "uint256"},
          {"internalType": "uint256", "name": "flags", "type": "uint256"},
          {"internalType": "uint256", "name": "executedAmount", "type": "uint256"},
          {"internalType": "bytes", "name": "signature", "type": "bytes"}
        ],
        "internalType": "struct GPv2Trade.Data[]", "name": "trades", "type": "tuple[]"
      },
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "uint256", "name": "value", "type": "uint256"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct GPv2Interaction.Data[][3]", "name": "interactions", "type": "tuple[][3]"
      }
    ],
    "name": "settle",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	settleABI     abi.ABI
	settleABIOnce sync.Once
	settleABIErr  error
)

// SettleABI returns the parsed settlement contract ABI.
func SettleABI() (abi.ABI, error) {
	settleABIOnce.Do(func() {
		settleABI, settleABIErr = abi.JSON(strings.NewReader(settleABIJSON))
	})
	return settleABI, settleABIErr
}

// auctionIDBytes is the length of the auction id suffix the driver
// appends to the settle call data.
const auctionIDBytes = 8

// CallTrade is one trade as encoded in the settle call.
type CallTrade struct {
	Receiver        common.Address
	SellToken       common.Address
	BuyToken        common.Address
	SellTokenPrice  *big.Int
	BuyTokenPrice   *big.Int
	LimitSellAmount *big.Int
	LimitBuyAmount  *big.Int
	Kind            string
	ExecutedAmount  *big.Int
}

// SettlementCall is the ABI-decoded settle call data together with the
// appended auction id.
type SettlementCall struct {
	AuctionID      int64
	Tokens         []common.Address
	ClearingPrices []*big.Int
	Trades         []CallTrade
}

type rawSettleTrade struct {
	SellTokenIndex *big.Int
	BuyTokenIndex  *big.Int
	Receiver       common.Address
	SellAmount     *big.Int
	BuyAmount      *big.Int
	ValidTo        uint32
	AppData        [32]byte
	FeeAmount      *big.Int
	Flags          *big.Int
	ExecutedAmount *big.Int
	Signature      []byte
}

// DecodeSettlementCallData decodes a settle call. The auction id lives
// in the last 8 bytes of the call data, after the ABI-encoded arguments.
func DecodeSettlementCallData(data []byte) (*SettlementCall, error) {
	parsed, err := SettleABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["settle"]

	if len(data) < len(method.ID)+auctionIDBytes {
		return nil, model.MalformedInputError("call data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(method.ID)], method.ID) {
		return nil, model.MalformedInputError("not a settle call: selector %x", data[:4])
	}

	values, err := method.Inputs.Unpack(data[len(method.ID):])
	if err != nil {
		return nil, model.MalformedInputError("decode settle call data: %v", err)
	}

	tokens := *abi.ConvertType(values[0], new([]common.Address)).(*[]common.Address)
	prices := *abi.ConvertType(values[1], new([]*big.Int)).(*[]*big.Int)
	rawTrades := *abi.ConvertType(values[2], new([]rawSettleTrade)).(*[]rawSettleTrade)

	if len(prices) != len(tokens) {
		return nil, model.MalformedInputError("%d clearing prices for %d tokens", len(prices), len(tokens))
	}

	trades := make([]CallTrade, 0, len(rawTrades))
	for _, raw := range rawTrades {
		sellIdx, buyIdx := raw.SellTokenIndex, raw.BuyTokenIndex
		if !sellIdx.IsUint64() || sellIdx.Uint64() >= uint64(len(tokens)) ||
			!buyIdx.IsUint64() || buyIdx.Uint64() >= uint64(len(tokens)) {
			return nil, model.MalformedInputError("trade token index out of range")
		}
		kind := "sell"
		if raw.Flags.Bit(0) == 1 {
			kind = "buy"
		}
		trades = append(trades, CallTrade{
			Receiver:        raw.Receiver,
			SellToken:       tokens[sellIdx.Uint64()],
			BuyToken:        tokens[buyIdx.Uint64()],
			SellTokenPrice:  prices[sellIdx.Uint64()],
			BuyTokenPrice:   prices[buyIdx.Uint64()],
			LimitSellAmount: raw.SellAmount,
			LimitBuyAmount:  raw.BuyAmount,
			Kind:            kind,
			ExecutedAmount:  raw.ExecutedAmount,
		})
	}

	auctionID := binary.BigEndian.Uint64(data[len(data)-auctionIDBytes:])
	return &SettlementCall{
		AuctionID:      int64(auctionID),
		Tokens:         tokens,
		ClearingPrices: prices,
		Trades:         trades,
	}, nil
}
