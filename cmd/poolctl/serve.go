package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityflow/internal/api"
	"liquidityflow/internal/chain"
	"liquidityflow/internal/config"
	"liquidityflow/internal/events"
	"liquidityflow/internal/metrics"
	"liquidityflow/internal/oracle"
	"liquidityflow/internal/pool"
	"liquidityflow/internal/risk"
	"liquidityflow/internal/storage"
	"liquidityflow/internal/storage/postgres"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sinks := events.MultiSink{events.LogSink{Logger: logger}, m}
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
	poolCfg, err := engine.Config(ctx)
	if err != nil {
		return err
	}
	m.SetFee(cfg.Pool.PoolID, poolCfg.FeeBasisPoints)

	apiCfg := api.Config{Pool: engine, Observer: m, Gatherer: reg, Logger: logger}
	if cfg.RPCURL != "" && cfg.Risk.Feed != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		mitigator, err := risk.NewMitigator(risk.Config{
			Feed:     cfg.Risk.Feed,
			Policy:   cfg.Risk.Policy,
			ReserveA: cfg.Pool.ReserveAccount(cfg.Pool.AssetA),
			ReserveB: cfg.Pool.ReserveAccount(cfg.Pool.AssetB),
		}, oracle.NewAggregatorOracle(chainClient, logger), be.custody, logger)
		if err != nil {
			return err
		}
		apiCfg.Mitigator = mitigator
	}

	srv, err := api.New(apiCfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("pool", cfg.Pool.PoolID),
		zap.Uint64("fee_bps", poolCfg.FeeBasisPoints),
		zap.Bool("postgres", be.store != nil),
		zap.Bool("mitigation", apiCfg.Mitigator != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("serve shutdown")
	return httpServer.Shutdown(shutdownCtx)
}
