package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityflow/internal/config"
	"liquidityflow/internal/custody"
	"liquidityflow/internal/pool"
	"liquidityflow/internal/storage/postgres"
)

// backend bundles the custody and state collaborators for one command.
type backend struct {
	custody pool.Custody
	state   pool.StateStore
	store   *postgres.Store
}

func (b *backend) Close() {
	if b.store != nil {
		b.store.Close()
	}
}

// openBackend uses Postgres when a DSN is configured and an in-memory
// ledger seeded from genesis otherwise.
func openBackend(ctx context.Context, cfg config.Common, logger *zap.Logger) (*backend, error) {
	roles := custody.NewRoles()
	roles.GrantPool(cfg.Pool)

	if cfg.PGDSN == "" {
		ledger := custody.NewLedgerWithRoles(roles)
		if err := ledger.Seed(cfg.Genesis); err != nil {
			return nil, fmt.Errorf("seed genesis: %w", err)
		}
		logger.Info("using in-memory ledger", zap.Int("genesis_accounts", len(cfg.Genesis)))
		return &backend{custody: ledger, state: pool.NewMemoryStore()}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	ledger := postgres.NewLedger(store, roles)
	if cfg.SeedGenesis {
		balances, err := custody.Balances(cfg.Genesis)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("seed genesis: %w", err)
		}
		if err := ledger.Credit(ctx, balances); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed genesis: %w", err)
		}
		logger.Info("genesis credited", zap.Int("accounts", len(balances)))
	}
	return &backend{custody: ledger, state: store, store: store}, nil
}
