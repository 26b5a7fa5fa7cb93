package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityflow/internal/config"
	"liquidityflow/internal/events"
	"liquidityflow/internal/pool"
	"liquidityflow/internal/replay"
	"liquidityflow/internal/storage"
	"liquidityflow/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	var sinks events.MultiSink
	if cfg.EventsOut != "" {
		sinks = append(sinks, storage.NewEventLog(cfg.EventsOut, logger))
	}
	if be.store != nil {
		sinks = append(sinks, &postgres.EventSink{Store: be.store, Logger: logger})
	}

	engine, err := pool.NewEngine(ctx, cfg.Pool, be.custody, be.state,
		pool.WithSink(sinks),
		pool.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var state replay.StateStore
	switch {
	case cfg.StateFile != "":
		state = &replay.FileStateStore{Path: cfg.StateFile}
	case be.store != nil:
		state = &replay.DBStateStore{Store: be.store, Name: cfg.StateName}
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("errors", cfg.Errors),
		zap.String("events_out", cfg.EventsOut),
		zap.String("state_file", cfg.StateFile),
		zap.Bool("postgres", be.store != nil),
	)

	runner := &replay.Runner{
		Pool:      engine,
		Errors:    storage.NewJsonlWriter(cfg.Errors),
		State:     state,
		Logger:    logger,
		SaveEvery: cfg.SaveEvery,
	}
	_, err = runner.Run(ctx, inputFile)
	return err
}
