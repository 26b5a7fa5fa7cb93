package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityflow/internal/config"
	"liquidityflow/internal/model"
	"liquidityflow/internal/policy"
	"liquidityflow/internal/pool"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.AssetIn == "" {
		return fmt.Errorf("asset-in is required")
	}
	if err := cfg.Pool.Validate(); err != nil {
		return fmt.Errorf("pool settings: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	engine, err := pool.NewEngine(ctx, cfg.Pool, be.custody, be.state, pool.WithLogger(logger))
	if err != nil {
		return err
	}

	q, err := engine.Quote(ctx, cfg.AssetIn, cfg.AmountIn)
	if err != nil {
		return err
	}
	minOut, err := policy.MinAmountOut(q.AmountOut, cfg.ToleranceBps)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(model.QuoteResponse{
		AssetIn:        q.AssetIn,
		AssetOut:       q.AssetOut,
		AmountIn:       q.AmountIn,
		FeeBasisPoints: q.FeeBasisPoints,
		Fee:            q.Fee,
		NetIn:          q.NetIn,
		AmountOut:      q.AmountOut,
		MinAmountOut:   minOut,
		ToleranceBps:   cfg.ToleranceBps,
	})
}
