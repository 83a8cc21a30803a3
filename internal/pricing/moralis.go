package pricing

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
)

const moralisBaseURL = "https://deep-index.moralis.io/api/v2.2"

// Moralis serves per-block token prices from the Moralis API.
type Moralis struct {
	http   *resty.Client
	apiKey string
	chain  string
}

// NewMoralis builds the provider. chain is the Moralis chain slug, e.g.
// "eth".
func NewMoralis(apiKey, chain string) *Moralis {
	return &Moralis{
		http:   resty.New().SetBaseURL(moralisBaseURL).SetHeader("X-API-Key", apiKey),
		apiKey: apiKey,
		chain:  chain,
	}
}

func (m *Moralis) Name() string { return "moralis" }

// Price returns the token price in the native asset at the block.
func (m *Moralis) Price(ctx context.Context, blockNumber uint64, token common.Address) (float64, bool, error) {
	if m.apiKey == "" {
		return 0, false, nil
	}

	var result struct {
		NativePrice struct {
			Value    string `json:"value"`
			Decimals int    `json:"decimals"`
		} `json:"nativePrice"`
	}
	resp, err := m.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetQueryParams(map[string]string{
			"chain":    m.chain,
			"to_block": fmt.Sprintf("%d", blockNumber),
		}).
		Get("/erc20/" + token.Hex() + "/price")
	if err != nil {
		return 0, false, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.IsError() {
		return 0, false, fmt.Errorf("moralis: status %d", resp.StatusCode())
	}
	if result.NativePrice.Value == "" {
		return 0, false, nil
	}

	value, ok := new(big.Float).SetString(result.NativePrice.Value)
	if !ok {
		return 0, false, fmt.Errorf("moralis: price value %q", result.NativePrice.Value)
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(
		big.NewInt(10), big.NewInt(int64(result.NativePrice.Decimals)), nil,
	))
	price, _ := new(big.Float).Quo(value, scale).Float64()
	return price, true, nil
}
