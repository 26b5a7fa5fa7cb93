package pool

import (
	"context"

	"liquidityflow/internal/domain"
)

// Custody is the external system of record that holds and moves balances.
// Every call either succeeds or fails within a bounded time; timeouts are the
// implementation's responsibility.
type Custody interface {
	// Transfer moves amount from one account to another. It fails with
	// domain.ErrInsufficientBalance or domain.ErrUnauthorized.
	Transfer(ctx context.Context, from, to domain.Account, authorizedBy string, amount uint64) error
	// Mint issues new units of to.Asset. It fails with domain.ErrUnauthorized.
	Mint(ctx context.Context, authority string, to domain.Account, amount uint64) error
	// Balance reads the current holding of an account.
	Balance(ctx context.Context, account domain.Account) (uint64, error)
}

// Atomic is implemented by custody collaborators that can apply a batch of
// calls all-or-nothing. When fn returns an error nothing inside it commits.
type Atomic interface {
	Atomically(ctx context.Context, fn func(Custody) error) error
}

// StatefulAtomic is implemented by custody collaborators that keep pool
// state in the same system of record. Config and stake reads made through
// the StateStore handed to fn lock what they return, and writes commit or
// roll back together with the custody calls.
type StatefulAtomic interface {
	AtomicallyWithState(ctx context.Context, fn func(Custody, StateStore) error) error
}
