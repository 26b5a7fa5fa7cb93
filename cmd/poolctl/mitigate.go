package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityflow/internal/chain"
	"liquidityflow/internal/config"
	"liquidityflow/internal/oracle"
	"liquidityflow/internal/risk"
)

// retryOracle retries failed reads. Evaluate itself never retries.
type retryOracle struct {
	inner      risk.Oracle
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func (o retryOracle) ReadPrice(ctx context.Context, feed string) (risk.PriceSample, error) {
	var sample risk.PriceSample
	attempt := 0
	err := chain.WithRetry(ctx, o.maxRetries, o.backoff, func(ctx context.Context) error {
		attempt++
		var err error
		sample, err = o.inner.ReadPrice(ctx, feed)
		if err != nil {
			o.logger.Warn("oracle read failed", zap.String("feed", feed), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	return sample, err
}

func runMitigate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMitigate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Risk.Feed == "" {
		return fmt.Errorf("risk.feed is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	head, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}

	be, err := openBackend(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	src := retryOracle{
		inner:      oracle.NewAggregatorOracle(chainClient, logger),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		logger:     logger,
	}
	mitigator, err := risk.NewMitigator(risk.Config{
		Feed:     cfg.Risk.Feed,
		Policy:   cfg.Risk.Policy,
		ReserveA: cfg.Pool.ReserveAccount(cfg.Pool.AssetA),
		ReserveB: cfg.Pool.ReserveAccount(cfg.Pool.AssetB),
	}, src, be.custody, logger)
	if err != nil {
		return err
	}

	logger.Info("mitigate start",
		zap.String("chain_id", chainID.String()),
		zap.Uint64("head", head),
		zap.String("feed", cfg.Risk.Feed),
		zap.Uint64("threshold", cfg.Threshold),
		zap.Duration("interval", cfg.Interval),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	evaluate := func() error {
		sig, err := mitigator.Evaluate(ctx, cfg.Threshold)
		if err != nil {
			return err
		}
		return enc.Encode(sig)
	}

	if cfg.Interval == 0 {
		return evaluate()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		if err := evaluate(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("evaluation failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
