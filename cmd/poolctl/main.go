package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Liquidity pool accounting service and tools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool engine over HTTP",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN (in-memory state when empty)")
	serveCmd.Flags().Bool("seed-genesis", false, "credit genesis balances into the Postgres ledger on start")
	serveCmd.Flags().String("events-out", "", "optional events JSONL path")
	serveCmd.Flags().String("rpc", "", "EVM RPC URL for the price oracle")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply a JSONL stream of pool operations",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("errors", "./data/replay_errors.jsonl", "rejected operations JSONL")
	replayCmd.Flags().String("events-out", "./data/events.jsonl", "events JSONL")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (in-memory state when empty)")
	replayCmd.Flags().Bool("seed-genesis", false, "credit genesis balances into the Postgres ledger on start")
	replayCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	replayCmd.Flags().String("state-name", "replay", "progress name in the replay_state table")
	replayCmd.Flags().Uint64("save-every", 100, "lines between progress saves")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a prospective swap against current reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("asset-in", "", "input asset")
	quoteCmd.Flags().Uint64("amount-in", 0, "input amount in base units")
	quoteCmd.Flags().Uint64("tolerance-bps", 50, "slippage tolerance used for min_amount_out")
	quoteCmd.Flags().String("pg-dsn", "", "Postgres DSN (in-memory state when empty)")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	mitigateCmd := &cobra.Command{
		Use:   "mitigate",
		Short: "Evaluate the oracle price against a threshold",
		RunE:  runMitigate,
	}

	mitigateCmd.Flags().String("rpc", "", "EVM RPC URL")
	mitigateCmd.Flags().Uint64("threshold", 0, "price threshold in feed units")
	mitigateCmd.Flags().Duration("interval", 0, "re-evaluate every interval, 0 runs once")
	mitigateCmd.Flags().Int("max-retries", 3, "oracle read retries per evaluation")
	mitigateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	mitigateCmd.Flags().String("pg-dsn", "", "Postgres DSN for reserve balances")
	mitigateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(mitigateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
