// Package pricing looks up historical token prices, in units of the
// native asset, from a prioritized list of providers.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Provider is a single historical price source. A provider returns
// ok=false when it has no price for the token at that block; that is not
// an error.
type Provider interface {
	Name() string
	Price(ctx context.Context, blockNumber uint64, token common.Address) (float64, bool, error)
}

// Feed iterates providers in order and returns the first available price
// together with the source name.
type Feed struct {
	providers     []Provider
	native        common.Address
	wrappedNative common.Address
	logger        *zap.Logger
}

// NewFeed builds a price feed. Lookups for the native pseudo-address are
// rewritten to the wrapped native token.
func NewFeed(providers []Provider, native, wrappedNative common.Address, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		providers:     providers,
		native:        native,
		wrappedNative: wrappedNative,
		logger:        logger,
	}
}

// Price returns the token price at the block and the providing source.
// Provider errors are logged and the next provider is tried; an absent
// price is reported with ok=false.
func (f *Feed) Price(ctx context.Context, blockNumber uint64, token common.Address) (float64, string, bool) {
	if token == f.native {
		token = f.wrappedNative
	}
	for _, provider := range f.providers {
		price, ok, err := provider.Price(ctx, blockNumber, token)
		if err != nil {
			f.logger.Warn("price provider failed",
				zap.String("provider", provider.Name()),
				zap.String("token", token.Hex()),
				zap.Uint64("block_number", blockNumber),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return price, provider.Name(), true
		}
	}
	return 0, "", false
}
