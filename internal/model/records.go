package model

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeType labels the component a fee row belongs to.
type FeeType string

const (
	FeeTypeProtocol FeeType = "protocol"
	FeeTypePartner  FeeType = "partner"
	FeeTypeNetwork  FeeType = "network"
)

// ImbalanceRecord is one persisted (transaction, token) imbalance row.
type ImbalanceRecord struct {
	ChainName   string         `json:"chain_name"`
	AuctionID   int64          `json:"auction_id"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	Token       common.Address `json:"token_address"`
	Imbalance   *big.Int       `json:"imbalance"`
}

// FeeRecord is one persisted fee component row for an order.
type FeeRecord struct {
	ChainName   string         `json:"chain_name"`
	AuctionID   int64          `json:"auction_id"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	OrderUID    string         `json:"order_uid"`
	Token       common.Address `json:"token_address"`
	Amount      *big.Int       `json:"fee_amount"`
	Type        FeeType        `json:"fee_type"`
	Recipient   common.Address `json:"fee_recipient"`
}

// PriceRecord is one persisted token price row.
type PriceRecord struct {
	ChainName   string         `json:"chain_name"`
	Source      string         `json:"source"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      common.Hash    `json:"tx_hash"`
	Token       common.Address `json:"token_address"`
	Price       float64        `json:"price"`
}

// MarshalJSON keeps big.Int amounts as decimal strings in audit output.
func (r ImbalanceRecord) MarshalJSON() ([]byte, error) {
	type Alias ImbalanceRecord
	return json.Marshal(struct {
		Alias
		Imbalance string `json:"imbalance"`
	}{Alias(r), r.Imbalance.String()})
}

func (r FeeRecord) MarshalJSON() ([]byte, error) {
	type Alias FeeRecord
	return json.Marshal(struct {
		Alias
		Amount string `json:"fee_amount"`
	}{Alias(r), r.Amount.String()})
}
