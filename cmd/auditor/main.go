package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"settlementScope/internal/chain"
	"settlementScope/internal/config"
	"settlementScope/internal/imbalance"
	"settlementScope/internal/orderbook"
	"settlementScope/internal/pricing"
	"settlementScope/internal/processor"
	"settlementScope/internal/storage"
	"settlementScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "auditor",
		Short:        "Settlement imbalance and fee auditor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the audit daemon",
		RunE:  runDaemon,
	}
	registerFlags(runCmd)
	root.AddCommand(runCmd)

	txCmd := &cobra.Command{
		Use:   "tx <hash>",
		Short: "Audit a single settlement transaction",
		Args:  cobra.ExactArgs(1),
		RunE:  runSingleTx,
	}
	registerFlags(txCmd)
	root.AddCommand(txCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL (must support trace_transaction)")
	cmd.Flags().String("chain-name", "mainnet", "chain name used in records and API paths")
	cmd.Flags().String("settlement", "0x9008D19f58AAbD9eD0D60971565AA8510560ab41", "settlement contract address")
	cmd.Flags().StringSlice("orderbook-url", nil, "orderbook base URLs (comma-separated, default prod+barn)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, empty means JSONL output")
	cmd.Flags().String("out", "./data/audit.jsonl", "output JSONL path when no database is configured")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "cursor checkpoint path in JSONL mode")
	cmd.Flags().Duration("poll-interval", 30*time.Second, "delay between polling rounds")
	cmd.Flags().Uint64("finality-lag", 67, "blocks behind head treated as final")
	cmd.Flags().Int("workers", 4, "concurrent transaction workers")
	cmd.Flags().Int("max-retries", 5, "maximum RPC retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	cmd.Flags().String("coingecko-api-key", "", "Coingecko API key")
	cmd.Flags().String("moralis-api-key", "", "Moralis API key")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, closeDeps, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	logger.Info("auditor start",
		zap.String("chain", cfg.ChainName),
		zap.String("settlement", cfg.Settlement),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("workers", cfg.Workers),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildRunner wires the chain client, orderbook client, price feed, and
// store into a processor.Runner. The returned func releases the
// clients.
func buildRunner(ctx context.Context, cfg config.Config, logger *zap.Logger) (*processor.Runner, func(), error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}

	addrs := imbalance.MainnetAddresses
	addrs.Settlement = common.HexToAddress(cfg.Settlement)

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Config{
		Settlement:   addrs.Settlement,
		FinalityLag:  cfg.FinalityLag,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	closers := []func(){chainClient.Close}
	closeAll := func() {
		for _, close := range closers {
			close()
		}
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pgStore.Close)
		store = pgStore
	} else {
		store = storage.NewAuditLog(cfg.Out, cfg.Checkpoint, cfg.ChainName, addrs.Settlement)
	}

	envs := orderbook.DefaultEnvironments(cfg.ChainName)
	if len(cfg.OrderbookURLs) > 0 {
		envs = envs[:0]
		for i, url := range cfg.OrderbookURLs {
			envs = append(envs, orderbook.Environment{Name: fmt.Sprintf("orderbook-%d", i), BaseURL: url})
		}
	}
	orderbookClient := orderbook.NewClient(envs, 10*time.Second, logger)

	providers := make([]pricing.Provider, 0, 2)
	if cfg.CoingeckoAPIKey != "" {
		providers = append(providers, pricing.NewCoingecko(cfg.CoingeckoAPIKey, coingeckoPlatform(cfg.ChainName), chainClient, logger))
	}
	if cfg.MoralisAPIKey != "" {
		providers = append(providers, pricing.NewMoralis(cfg.MoralisAPIKey, moralisChain(cfg.ChainName)))
	}
	feed := pricing.NewFeed(providers, addrs.Native, addrs.WrappedNative, logger)

	runner := processor.NewRunner(processor.RunConfig{
		ChainName:    cfg.ChainName,
		Addresses:    addrs,
		PollInterval: cfg.PollInterval,
		Workers:      cfg.Workers,
	}, chainClient, orderbookClient, feed, store, logger)

	return runner, closeAll, nil
}

func coingeckoPlatform(chainName string) string {
	if chainName == "mainnet" {
		return "ethereum"
	}
	return chainName
}

func moralisChain(chainName string) string {
	if chainName == "mainnet" {
		return "eth"
	}
	return chainName
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
