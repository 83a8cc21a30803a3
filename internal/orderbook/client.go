// Package orderbook fetches auction metadata for settled transactions
// from the orderbook API: the winning solution, executed orders, fee
// policies, and native prices.
package orderbook

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"settlementScope/internal/fees"
	"settlementScope/internal/model"
)

// Environment names an orderbook deployment and its base URL. The prod
// environment is tried before barn.
type Environment struct {
	Name    string
	BaseURL string
}

// DefaultEnvironments returns the public orderbook endpoints for a chain.
func DefaultEnvironments(chainName string) []Environment {
	return []Environment{
		{Name: "prod", BaseURL: fmt.Sprintf("https://api.cow.fi/%s/api/v1/", chainName)},
		{Name: "barn", BaseURL: fmt.Sprintf("https://barn.api.cow.fi/%s/api/v1/", chainName)},
	}
}

// Client talks to the orderbook API.
type Client struct {
	http   *resty.Client
	envs   []Environment
	logger *zap.Logger
}

// NewClient builds an orderbook client.
func NewClient(envs []Environment, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Client{http: httpClient, envs: envs, logger: logger}
}

type competitionResponse struct {
	AuctionID int64              `json:"auctionId"`
	Solutions []solutionResponse `json:"solutions"`
	Auction   struct {
		Prices map[string]string `json:"prices"`
	} `json:"auction"`
}

type solutionResponse struct {
	Ranking        int               `json:"ranking"`
	SolverAddress  string            `json:"solverAddress"`
	ClearingPrices map[string]string `json:"clearingPrices"`
	Orders         []executedOrder   `json:"orders"`
}

type executedOrder struct {
	ID         string `json:"id"`
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
}

type orderResponse struct {
	Kind        string `json:"kind"`
	SellToken   string `json:"sellToken"`
	BuyToken    string `json:"buyToken"`
	SellAmount  string `json:"sellAmount"`
	BuyAmount   string `json:"buyAmount"`
	FullAppData string `json:"fullAppData"`
}

type tradeResponse struct {
	TxHash      string            `json:"txHash"`
	FeePolicies []json.RawMessage `json:"feePolicies"`
}

type feePolicyJSON struct {
	Surplus *struct {
		Factor          json.Number `json:"factor"`
		MaxVolumeFactor json.Number `json:"maxVolumeFactor"`
	} `json:"surplus"`
	Volume *struct {
		Factor json.Number `json:"factor"`
	} `json:"volume"`
	PriceImprovement *struct {
		Factor          json.Number `json:"factor"`
		MaxVolumeFactor json.Number `json:"maxVolumeFactor"`
		Quote           struct {
			SellAmount string `json:"sellAmount"`
			BuyAmount  string `json:"buyAmount"`
			Fee        string `json:"fee"`
		} `json:"quote"`
	} `json:"priceImprovement"`
}

// Settlement assembles the settlement data for a transaction. Orders the
// orderbook does not know (JIT AMM orders) are skipped.
func (c *Client) Settlement(ctx context.Context, txHash common.Hash) (*fees.SettlementData, error) {
	competition, env, err := c.competition(ctx, txHash)
	if err != nil {
		return nil, err
	}

	var winning *solutionResponse
	for i := range competition.Solutions {
		if competition.Solutions[i].Ranking == 1 {
			winning = &competition.Solutions[i]
			break
		}
	}
	if winning == nil {
		return nil, model.MalformedInputError("no winning solution for %s", txHash.Hex())
	}

	clearingPrices := make(map[common.Address]*big.Int, len(winning.ClearingPrices))
	nativePrices := make(map[common.Address]*big.Int, len(winning.ClearingPrices))
	for addr, priceStr := range winning.ClearingPrices {
		token := common.HexToAddress(addr)
		price, ok := new(big.Int).SetString(priceStr, 10)
		if !ok {
			return nil, model.MalformedInputError("clearing price %q for token %s", priceStr, addr)
		}
		clearingPrices[token] = price
		if nativeStr, ok := competition.Auction.Prices[addr]; ok {
			if native, ok := new(big.Int).SetString(nativeStr, 10); ok {
				nativePrices[token] = native
			}
		}
	}

	trades := make([]fees.Trade, 0, len(winning.Orders))
	for _, executed := range winning.Orders {
		order, found, err := c.order(ctx, env, executed.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			// JIT CoW AMM orders are not indexed by the orderbook.
			c.logger.Debug("order not indexed, skipping", zap.String("order_uid", executed.ID))
			continue
		}
		policies, err := c.feePolicies(ctx, env, executed.ID, txHash)
		if err != nil {
			return nil, err
		}

		sellAmount, ok1 := new(big.Int).SetString(executed.SellAmount, 10)
		buyAmount, ok2 := new(big.Int).SetString(executed.BuyAmount, 10)
		limitSell, ok3 := new(big.Int).SetString(order.SellAmount, 10)
		limitBuy, ok4 := new(big.Int).SetString(order.BuyAmount, 10)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, model.MalformedInputError("amounts for order %s", executed.ID)
		}
		sellToken := common.HexToAddress(order.SellToken)
		buyToken := common.HexToAddress(order.BuyToken)
		sellPrice, okSell := clearingPrices[sellToken]
		buyPrice, okBuy := clearingPrices[buyToken]
		if !okSell || !okBuy {
			return nil, model.MalformedInputError("missing clearing price for order %s", executed.ID)
		}

		trades = append(trades, fees.Trade{
			OrderUID:               executed.ID,
			SellToken:              sellToken,
			BuyToken:               buyToken,
			SellAmount:             sellAmount,
			BuyAmount:              buyAmount,
			LimitSellAmount:        limitSell,
			LimitBuyAmount:         limitBuy,
			Kind:                   fees.OrderKind(order.Kind),
			SellTokenClearingPrice: sellPrice,
			BuyTokenClearingPrice:  buyPrice,
			FeePolicies:            policies,
			PartnerFeeRecipient:    partnerRecipient(order.FullAppData),
		})
	}

	return &fees.SettlementData{
		AuctionID:    competition.AuctionID,
		TxHash:       txHash,
		Solver:       common.HexToAddress(winning.SolverAddress),
		Trades:       trades,
		NativePrices: nativePrices,
	}, nil
}

func (c *Client) competition(ctx context.Context, txHash common.Hash) (*competitionResponse, Environment, error) {
	for _, env := range c.envs {
		var competition competitionResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&competition).
			Get(env.BaseURL + "solver_competition/by_tx_hash/" + txHash.Hex())
		if err != nil {
			return nil, Environment{}, model.UpstreamError(err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			continue
		}
		if resp.IsError() {
			return nil, Environment{}, model.UpstreamError(fmt.Errorf("orderbook %s: status %d", env.Name, resp.StatusCode()))
		}
		return &competition, env, nil
	}
	return nil, Environment{}, model.TransientDataError("competition data for %s not available", txHash.Hex())
}

func (c *Client) order(ctx context.Context, env Environment, uid string) (*orderResponse, bool, error) {
	var order orderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&order).
		Get(env.BaseURL + "orders/" + uid)
	if err != nil {
		return nil, false, model.UpstreamError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.IsError() {
		return nil, false, model.UpstreamError(fmt.Errorf("orderbook %s: status %d", env.Name, resp.StatusCode()))
	}
	return &order, true, nil
}

func (c *Client) feePolicies(ctx context.Context, env Environment, uid string, txHash common.Hash) ([]fees.FeePolicy, error) {
	var entries []tradeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&entries).
		Get(env.BaseURL + "trades?orderUid=" + uid)
	if err != nil {
		return nil, model.UpstreamError(err)
	}
	if resp.IsError() {
		return nil, model.UpstreamError(fmt.Errorf("orderbook %s: status %d", env.Name, resp.StatusCode()))
	}
	for _, entry := range entries {
		if common.HexToHash(entry.TxHash) == txHash {
			return parsePolicies(entry.FeePolicies)
		}
	}
	return nil, model.TransientDataError("trade data for order %s not available", uid)
}

func parsePolicies(raw []json.RawMessage) ([]fees.FeePolicy, error) {
	policies := make([]fees.FeePolicy, 0, len(raw))
	for _, one := range raw {
		var policy feePolicyJSON
		if err := json.Unmarshal(one, &policy); err != nil {
			return nil, model.MalformedInputError("fee policy %s: %v", string(one), err)
		}
		switch {
		case policy.Surplus != nil:
			factor, err := factorFromNumber(policy.Surplus.Factor)
			if err != nil {
				return nil, err
			}
			maxVolume, err := factorFromNumber(policy.Surplus.MaxVolumeFactor)
			if err != nil {
				return nil, err
			}
			policies = append(policies, fees.SurplusPolicy{Factor: factor, MaxVolumeFactor: maxVolume})
		case policy.Volume != nil:
			factor, err := factorFromNumber(policy.Volume.Factor)
			if err != nil {
				return nil, err
			}
			policies = append(policies, fees.VolumePolicy{Factor: factor})
		case policy.PriceImprovement != nil:
			factor, err := factorFromNumber(policy.PriceImprovement.Factor)
			if err != nil {
				return nil, err
			}
			maxVolume, err := factorFromNumber(policy.PriceImprovement.MaxVolumeFactor)
			if err != nil {
				return nil, err
			}
			sellAmount, ok1 := new(big.Int).SetString(policy.PriceImprovement.Quote.SellAmount, 10)
			buyAmount, ok2 := new(big.Int).SetString(policy.PriceImprovement.Quote.BuyAmount, 10)
			feeAmount, ok3 := new(big.Int).SetString(policy.PriceImprovement.Quote.Fee, 10)
			if !ok1 || !ok2 || !ok3 {
				return nil, model.MalformedInputError("price improvement quote %s", string(one))
			}
			policies = append(policies, fees.PriceImprovementPolicy{
				Factor:          factor,
				MaxVolumeFactor: maxVolume,
				Quote:           fees.Quote{SellAmount: sellAmount, BuyAmount: buyAmount, FeeAmount: feeAmount},
			})
		default:
			return nil, model.MalformedInputError("fee policy kind %s is invalid", string(one))
		}
	}
	return policies, nil
}

// ratFromNumber parses a decimal JSON literal into an exact rational.
func ratFromNumber(number json.Number) (*big.Rat, error) {
	rat, ok := new(big.Rat).SetString(number.String())
	if !ok {
		return nil, model.MalformedInputError("fee factor %q is not a number", number.String())
	}
	return rat, nil
}

// factorFromNumber parses a fee factor and enforces the [0, 1) range the
// fee reversals are defined on. A factor of 1 would divide by zero.
func factorFromNumber(number json.Number) (*big.Rat, error) {
	rat, err := ratFromNumber(number)
	if err != nil {
		return nil, err
	}
	if rat.Sign() < 0 || rat.Cmp(big.NewRat(1, 1)) >= 0 {
		return nil, model.MalformedInputError("fee factor %q is out of range", number.String())
	}
	return rat, nil
}

// partnerRecipient extracts metadata.partnerFee.recipient from the
// order's app data, defaulting to the null address when absent.
func partnerRecipient(fullAppData string) common.Address {
	if fullAppData == "" {
		return fees.NullAddress
	}
	var appData struct {
		Metadata struct {
			PartnerFee struct {
				Recipient string `json:"recipient"`
			} `json:"partnerFee"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(fullAppData), &appData); err != nil {
		return fees.NullAddress
	}
	if appData.Metadata.PartnerFee.Recipient == "" {
		return fees.NullAddress
	}
	return common.HexToAddress(appData.Metadata.PartnerFee.Recipient)
}
