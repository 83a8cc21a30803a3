package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"settlementScope/internal/model"
)

// Topic hashes of the recognized event shapes, computed once per process
// from the canonical signatures.
var (
	topicTransfer        = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	topicERC20Transfer   = crypto.Keccak256Hash([]byte("ERC20Transfer(address,address,uint256)"))
	topicWrapWithdrawal  = crypto.Keccak256Hash([]byte("Withdrawal(address,uint256)"))
	topicWrapDeposit     = crypto.Keccak256Hash([]byte("Deposit(address,uint256)"))
	topicSpecialDeposit  = crypto.Keccak256Hash([]byte("Deposit(address,address,uint256,uint256)"))
	topicSpecialWithdraw = crypto.Keccak256Hash([]byte("Withdraw(address,address,address,uint256,uint256)"))
)

// specialValueBytes is the number of trailing data bytes holding the
// amount relevant to the reference account in special-token events.
// These events encode two numeric fields; only the tail of the second
// one is needed.
const specialValueBytes = 15

// DecodeLogs turns receipt logs into typed events. Decoding is pure and
// total: malformed or unrecognized logs are skipped, never reported.
// settlement is the reference address used to qualify special-token
// events.
func DecodeLogs(logs []*types.Log, settlement common.Address) []model.DecodedEvent {
	events := make([]model.DecodedEvent, 0, len(logs))
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case topicTransfer, topicERC20Transfer:
			if event, ok := decodeTransfer(log); ok {
				events = append(events, event)
			}
		case topicWrapWithdrawal:
			if account, value, ok := decodeWrapEvent(log); ok {
				events = append(events, model.NativeWrapWithdraw{Account: account, Value: value})
			}
		case topicWrapDeposit:
			if account, value, ok := decodeWrapEvent(log); ok {
				events = append(events, model.NativeWrapDeposit{Account: account, Value: value})
			}
		case topicSpecialDeposit:
			if value, ok := decodeSpecialEvent(log, settlement); ok {
				events = append(events, model.SpecialTokenDeposit{Token: log.Address, Value: value})
			}
		case topicSpecialWithdraw:
			if value, ok := decodeSpecialEvent(log, settlement); ok {
				events = append(events, model.SpecialTokenWithdraw{Token: log.Address, Value: value})
			}
		}
	}
	return events
}

// decodeTransfer recovers from/to from the low 20 bytes of the indexed
// topics and the value from the 32-byte payload.
func decodeTransfer(log *types.Log) (model.Transfer, bool) {
	if len(log.Topics) != 3 || len(log.Data) != 32 {
		return model.Transfer{}, false
	}
	return model.Transfer{
		Token: log.Address,
		From:  common.BytesToAddress(log.Topics[1].Bytes()),
		To:    common.BytesToAddress(log.Topics[2].Bytes()),
		Value: new(big.Int).SetBytes(log.Data),
	}, true
}

func decodeWrapEvent(log *types.Log) (common.Address, *big.Int, bool) {
	if len(log.Topics) != 2 || len(log.Data) != 32 {
		return common.Address{}, nil, false
	}
	account := common.BytesToAddress(log.Topics[1].Bytes())
	return account, new(big.Int).SetBytes(log.Data), true
}

// decodeSpecialEvent accepts a special-token event only when the
// settlement contract appears in one of the indexed topics, and reads
// the amount from the tail of the data payload.
func decodeSpecialEvent(log *types.Log, settlement common.Address) (*big.Int, bool) {
	if len(log.Data) < specialValueBytes {
		return nil, false
	}
	referenced := false
	for _, topic := range log.Topics[1:] {
		if common.BytesToAddress(topic.Bytes()) == settlement {
			referenced = true
			break
		}
	}
	if !referenced {
		return nil, false
	}
	tail := log.Data[len(log.Data)-specialValueBytes:]
	return new(big.Int).SetBytes(tail), true
}

// QualifyingActions filters raw trace actions down to native-value
// transfers touching the reference address. Only value-only calls
// qualify: an action carrying input data is a contract call, not a
// transfer.
func QualifyingActions(raw []model.RawTraceAction, ref common.Address) []model.TraceAction {
	actions := make([]model.TraceAction, 0, len(raw))
	for _, action := range raw {
		if len(action.Input) != 0 {
			continue
		}
		if action.From != ref && action.To != ref {
			continue
		}
		value := action.Value
		if value == nil {
			value = new(big.Int)
		}
		actions = append(actions, model.TraceAction{
			From:  action.From,
			To:    action.To,
			Value: value,
		})
	}
	return actions
}
