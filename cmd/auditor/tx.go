package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"settlementScope/internal/config"
)

// runSingleTx audits one settlement transaction and exits. Useful for
// spot checks and reprocessing a dropped transaction.
func runSingleTx(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	hash := strings.TrimSpace(args[0])
	if !strings.HasPrefix(hash, "0x") || len(hash) != 66 {
		return fmt.Errorf("invalid transaction hash: %s", hash)
	}
	txHash := common.HexToHash(hash)

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

	if err := runner.ProcessTransaction(ctx, txHash); err != nil {
		return fmt.Errorf("audit %s: %w", txHash.Hex(), err)
	}
	logger.Info("transaction audit complete", zap.String("tx_hash", txHash.Hex()))
	return nil
}
