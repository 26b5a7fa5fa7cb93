package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"liquidityflow/internal/custody"
	"liquidityflow/internal/domain"
	"liquidityflow/internal/pool"
)

// Ledger is a custody collaborator backed by the custody_balances table.
// Each call runs in its own transaction; Atomically groups calls into one.
type Ledger struct {
	store *Store
	roles *custody.Roles
}

func NewLedger(store *Store, roles *custody.Roles) *Ledger {
	if roles == nil {
		roles = custody.NewRoles()
	}
	return &Ledger{store: store, roles: roles}
}

func (l *Ledger) Transfer(ctx context.Context, from, to domain.Account, authorizedBy string, amount uint64) error {
	return l.Atomically(ctx, func(c pool.Custody) error {
		return c.Transfer(ctx, from, to, authorizedBy, amount)
	})
}

func (l *Ledger) Mint(ctx context.Context, authority string, to domain.Account, amount uint64) error {
	return l.Atomically(ctx, func(c pool.Custody) error {
		return c.Mint(ctx, authority, to, amount)
	})
}

func (l *Ledger) Balance(ctx context.Context, account domain.Account) (uint64, error) {
	var amount string
	row := l.store.pool.QueryRow(ctx, `
		SELECT amount::text FROM custody_balances WHERE owner=$1 AND asset=$2
	`, account.Owner, account.Asset)
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return parseAmount(amount)
}

// Atomically runs fn inside one database transaction. Row locks are held
// until commit, so concurrent batches on the same accounts serialize.
func (l *Ledger) Atomically(ctx context.Context, fn func(pool.Custody) error) error {
	return pgx.BeginFunc(ctx, l.store.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx, roles: l.roles})
	})
}

// AtomicallyWithState runs fn inside one database transaction together with
// the pool_configs and pool_stakes rows it touches. Config and stake reads
// take row locks, so operations on the same pool serialize across processes
// and always take the config lock before any balance lock.
func (l *Ledger) AtomicallyWithState(ctx context.Context, fn func(pool.Custody, pool.StateStore) error) error {
	return pgx.BeginFunc(ctx, l.store.pool, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx, roles: l.roles}, stateTx{tx: tx})
	})
}

// Credit seeds balances without authorization checks.
func (l *Ledger) Credit(ctx context.Context, balances map[domain.Account]uint64) error {
	if len(balances) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for acct, amount := range balances {
		if err := acct.Validate(); err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO custody_balances (owner, asset, amount, updated_at)
			VALUES ($1, $2, $3::text::numeric, now())
			ON CONFLICT (owner, asset) DO UPDATE
			SET amount = custody_balances.amount + EXCLUDED.amount, updated_at = now()
		`, acct.Owner, acct.Asset, formatAmount(amount))
	}

	br := l.store.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range balances {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

type ledgerTx struct {
	tx    pgx.Tx
	roles *custody.Roles
}

func (t *ledgerTx) Transfer(ctx context.Context, from, to domain.Account, authorizedBy string, amount uint64) error {
	if err := from.Validate(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if from.Asset != to.Asset {
		return fmt.Errorf("%w: cannot transfer %s into %s", domain.ErrInvalidParameter, from.Asset, to.Asset)
	}
	if !t.roles.CanMove(from.Owner, authorizedBy) {
		return fmt.Errorf("%w: %q cannot move funds of %s", domain.ErrUnauthorized, authorizedBy, from)
	}

	// Lock both rows in key order.
	first, second := from, to
	if second.String() < first.String() {
		first, second = second, first
	}
	locked := make(map[domain.Account]uint64, 2)
	for _, acct := range []domain.Account{first, second} {
		if _, ok := locked[acct]; ok {
			continue
		}
		v, err := t.lock(ctx, acct)
		if err != nil {
			return err
		}
		locked[acct] = v
	}

	have := locked[from]
	if have < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", domain.ErrInsufficientBalance, from, have, amount)
	}
	if from == to {
		return nil
	}
	if locked[to] > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit %s", domain.ErrOverflow, to)
	}
	if err := t.set(ctx, from, have-amount); err != nil {
		return err
	}
	return t.set(ctx, to, locked[to]+amount)
}

func (t *ledgerTx) Mint(ctx context.Context, authority string, to domain.Account, amount uint64) error {
	if err := to.Validate(); err != nil {
		return err
	}
	if !t.roles.CanMint(to.Asset, authority) {
		return fmt.Errorf("%w: %q is not the mint authority for %s", domain.ErrUnauthorized, authority, to.Asset)
	}
	have, err := t.lock(ctx, to)
	if err != nil {
		return err
	}
	if have > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit %s", domain.ErrOverflow, to)
	}
	return t.set(ctx, to, have+amount)
}

// Balance locks the row so reserves priced inside a batch cannot move
// before it commits.
func (t *ledgerTx) Balance(ctx context.Context, account domain.Account) (uint64, error) {
	return t.lock(ctx, account)
}

// lock creates the row if needed and holds it for the rest of the
// transaction.
func (t *ledgerTx) lock(ctx context.Context, acct domain.Account) (uint64, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO custody_balances (owner, asset, amount) VALUES ($1, $2, 0)
		ON CONFLICT (owner, asset) DO NOTHING
	`, acct.Owner, acct.Asset); err != nil {
		return 0, fmt.Errorf("ensure balance row %s: %w", acct, err)
	}
	var amount string
	row := t.tx.QueryRow(ctx, `
		SELECT amount::text FROM custody_balances WHERE owner=$1 AND asset=$2 FOR UPDATE
	`, acct.Owner, acct.Asset)
	if err := row.Scan(&amount); err != nil {
		return 0, fmt.Errorf("lock balance %s: %w", acct, err)
	}
	return parseAmount(amount)
}

func (t *ledgerTx) set(ctx context.Context, acct domain.Account, amount uint64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE custody_balances SET amount=$3::text::numeric, updated_at=now()
		WHERE owner=$1 AND asset=$2
	`, acct.Owner, acct.Asset, formatAmount(amount))
	if err != nil {
		return fmt.Errorf("update balance %s: %w", acct, err)
	}
	return nil
}

// stateTx is the pool state view handed to AtomicallyWithState callbacks.
type stateTx struct {
	tx pgx.Tx
}

func (s stateTx) LoadConfig(ctx context.Context, poolID string) (pool.Config, bool, error) {
	return loadConfig(ctx, s.tx, poolID, true)
}

func (s stateTx) SaveConfig(ctx context.Context, cfg pool.Config) error {
	return saveConfig(ctx, s.tx, cfg)
}

func (s stateTx) LoadStake(ctx context.Context, poolID, participant string) (pool.StakeRecord, error) {
	return loadStake(ctx, s.tx, poolID, participant, true)
}

func (s stateTx) SaveStake(ctx context.Context, poolID string, record pool.StakeRecord) error {
	return saveStake(ctx, s.tx, poolID, record)
}
