package custody

import (
	"context"
	"fmt"
	"math"
	"sync"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/pool"
)

// Ledger is an in-memory custody collaborator. Accounts are created on first
// credit. An owner may delegate transfer authority to another party, and each
// asset has at most one mint authority.
type Ledger struct {
	mu       sync.Mutex
	balances map[domain.Account]uint64
	roles    *Roles
}

func NewLedger() *Ledger {
	return NewLedgerWithRoles(NewRoles())
}

// NewLedgerWithRoles builds a ledger sharing an existing role registry.
func NewLedgerWithRoles(roles *Roles) *Ledger {
	if roles == nil {
		roles = NewRoles()
	}
	return &Ledger{
		balances: make(map[domain.Account]uint64),
		roles:    roles,
	}
}

// Credit adds funds to an account outside of any authorization check. It is
// the genesis path for seeding balances.
func (l *Ledger) Credit(account domain.Account, amount uint64) error {
	if err := account.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(account, amount)
}

// Delegate lets authority move funds out of owner's accounts.
func (l *Ledger) Delegate(owner, authority string) {
	l.roles.Delegate(owner, authority)
}

// SetMintAuthority registers the only party allowed to mint asset.
func (l *Ledger) SetMintAuthority(asset, authority string) {
	l.roles.SetMintAuthority(asset, authority)
}

func (l *Ledger) Transfer(ctx context.Context, from, to domain.Account, authorizedBy string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(ctx, from, to, authorizedBy, amount)
}

func (l *Ledger) Mint(ctx context.Context, authority string, to domain.Account, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mint(ctx, authority, to, amount)
}

func (l *Ledger) Balance(ctx context.Context, account domain.Account) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Atomically runs fn against a view of the ledger that is discarded when fn
// fails. The ledger stays locked for the whole batch.
func (l *Ledger) Atomically(ctx context.Context, fn func(pool.Custody) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make(map[domain.Account]uint64, len(l.balances))
	for k, v := range l.balances {
		snapshot[k] = v
	}
	if err := fn(&ledgerTx{l: l}); err != nil {
		l.balances = snapshot
		return err
	}
	return nil
}

// Snapshot copies all non-zero balances.
func (l *Ledger) Snapshot() map[domain.Account]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.Account]uint64, len(l.balances))
	for k, v := range l.balances {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func (l *Ledger) transfer(ctx context.Context, from, to domain.Account, authorizedBy string, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := from.Validate(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if from.Asset != to.Asset {
		return fmt.Errorf("%w: cannot transfer %s into %s", domain.ErrInvalidParameter, from.Asset, to.Asset)
	}
	if !l.roles.CanMove(from.Owner, authorizedBy) {
		return fmt.Errorf("%w: %q cannot move funds of %s", domain.ErrUnauthorized, authorizedBy, from)
	}
	have := l.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", domain.ErrInsufficientBalance, from, have, amount)
	}
	if from == to {
		return nil
	}
	if l.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit %s", domain.ErrOverflow, to)
	}
	l.balances[from] = have - amount
	l.balances[to] += amount
	return nil
}

func (l *Ledger) mint(ctx context.Context, authority string, to domain.Account, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if !l.roles.CanMint(to.Asset, authority) {
		return fmt.Errorf("%w: %q is not the mint authority for %s", domain.ErrUnauthorized, authority, to.Asset)
	}
	return l.credit(to, amount)
}

func (l *Ledger) credit(account domain.Account, amount uint64) error {
	if l.balances[account] > math.MaxUint64-amount {
		return fmt.Errorf("%w: credit %s", domain.ErrOverflow, account)
	}
	l.balances[account] += amount
	return nil
}

// ledgerTx is the view handed to Atomically callbacks; the ledger lock is
// already held.
type ledgerTx struct {
	l *Ledger
}

func (t *ledgerTx) Transfer(ctx context.Context, from, to domain.Account, authorizedBy string, amount uint64) error {
	return t.l.transfer(ctx, from, to, authorizedBy, amount)
}

func (t *ledgerTx) Mint(ctx context.Context, authority string, to domain.Account, amount uint64) error {
	return t.l.mint(ctx, authority, to, amount)
}

func (t *ledgerTx) Balance(ctx context.Context, account domain.Account) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.l.balances[account], nil
}
