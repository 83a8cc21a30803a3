package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	coingeckoBaseURL = "https://pro-api.coingecko.com/api/v3"

	// tokenListReloadInterval is how long the cached token registry stays
	// valid before an explicit refresh.
	tokenListReloadInterval = 24 * time.Hour

	// priceAvailabilityLimit is the age after which 5-minutely prices are
	// no longer served.
	priceAvailabilityLimit = 45 * time.Hour

	// priceQueryBuffer widens the range query so at least one 5-minutely
	// point falls inside it.
	priceQueryBuffer = 600 * time.Second
)

// BlockTimestamper converts block numbers to timestamps.
type BlockTimestamper interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Coingecko serves historical prices from the Coingecko API. The token
// registry (contract address to Coingecko id) is process-scoped state
// with an explicit last-reload timestamp.
type Coingecko struct {
	http     *resty.Client
	apiKey   string
	platform string
	blocks   BlockTimestamper
	logger   *zap.Logger

	mu         sync.Mutex
	tokenIDs   map[common.Address]string
	lastReload time.Time
}

// NewCoingecko builds the provider. platform is the Coingecko platform
// slug of the monitored chain, e.g. "ethereum".
func NewCoingecko(apiKey, platform string, blocks BlockTimestamper, logger *zap.Logger) *Coingecko {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coingecko{
		http:     resty.New().SetBaseURL(coingeckoBaseURL).SetHeader("x-cg-pro-api-key", apiKey),
		apiKey:   apiKey,
		platform: platform,
		blocks:   blocks,
		logger:   logger,
	}
}

func (c *Coingecko) Name() string { return "coingecko" }

// Price returns the token price in the native asset at the block's
// timestamp. Prices older than the 5-minutely availability window are
// reported as absent.
func (c *Coingecko) Price(ctx context.Context, blockNumber uint64, token common.Address) (float64, bool, error) {
	if c.apiKey == "" {
		return 0, false, nil
	}

	tokenID, err := c.tokenID(ctx, token)
	if err != nil {
		return 0, false, err
	}
	if tokenID == "" {
		return 0, false, nil
	}

	ts, err := c.blocks.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		return 0, false, err
	}
	blockTime := time.Unix(int64(ts), 0)
	if time.Since(blockTime) > priceAvailabilityLimit {
		return 0, false, nil
	}

	var chart struct {
		Prices [][2]float64 `json:"prices"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&chart).
		SetQueryParams(map[string]string{
			"vs_currency": "eth",
			"from":        fmt.Sprintf("%d", blockTime.Add(-priceQueryBuffer).Unix()),
			"to":          fmt.Sprintf("%d", blockTime.Unix()),
		}).
		Get("/coins/" + tokenID + "/market_chart/range")
	if err != nil {
		return 0, false, err
	}
	if resp.IsError() {
		return 0, false, fmt.Errorf("coingecko: status %d", resp.StatusCode())
	}
	if len(chart.Prices) == 0 {
		return 0, false, nil
	}
	// last point is the closest one at or before the block time
	return chart.Prices[len(chart.Prices)-1][1], true, nil
}

// tokenID resolves the Coingecko id for a contract address, reloading
// the registry when it is stale.
func (c *Coingecko) tokenID(ctx context.Context, token common.Address) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokenIDs == nil || time.Since(c.lastReload) >= tokenListReloadInterval {
		if err := c.reloadTokenList(ctx); err != nil {
			if c.tokenIDs == nil {
				return "", err
			}
			// stale list is still better than none
			c.logger.Warn("token list reload failed", zap.Error(err))
		}
	}
	return c.tokenIDs[token], nil
}

func (c *Coingecko) reloadTokenList(ctx context.Context) error {
	var list []struct {
		ID        string            `json:"id"`
		Platforms map[string]string `json:"platforms"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&list).
		SetQueryParams(map[string]string{
			"include_platform": "true",
			"status":           "active",
		}).
		Get("/coins/list")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("coingecko token list: status %d", resp.StatusCode())
	}

	tokenIDs := make(map[common.Address]string)
	for _, entry := range list {
		address, ok := entry.Platforms[c.platform]
		if !ok || !common.IsHexAddress(strings.TrimSpace(address)) {
			continue
		}
		tokenIDs[common.HexToAddress(strings.TrimSpace(address))] = entry.ID
	}

	c.tokenIDs = tokenIDs
	c.lastReload = time.Now()
	c.logger.Info("token list reloaded", zap.Int("tokens", len(tokenIDs)))
	return nil
}
