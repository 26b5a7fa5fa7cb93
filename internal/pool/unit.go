package pool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// restoreTimeout bounds state restores after a failed operation. They run on
// a context detached from the caller, whose deadline may be what failed.
const restoreTimeout = 5 * time.Second

// unit is what an operation sees while it runs: custody, the state it may
// read and write, and the pool config as of the start of the operation.
type unit struct {
	custody Custody
	state   StateStore
	journal *journal
	config  Config
	// transactional is set when state writes commit with custody.
	transactional bool
	undo          []func(context.Context) error
}

func (u *unit) saveConfig(ctx context.Context, next Config) error {
	if err := u.state.SaveConfig(ctx, next); err != nil {
		return fmt.Errorf("save pool config: %w", err)
	}
	if !u.transactional {
		prev := u.config
		u.undo = append(u.undo, func(ctx context.Context) error {
			return u.state.SaveConfig(ctx, prev)
		})
	}
	u.config = next
	return nil
}

func (u *unit) saveStake(ctx context.Context, poolID string, prev, next StakeRecord) error {
	if err := u.state.SaveStake(ctx, poolID, next); err != nil {
		return fmt.Errorf("save stake: %w", err)
	}
	if !u.transactional {
		u.undo = append(u.undo, func(ctx context.Context) error {
			return u.state.SaveStake(ctx, poolID, prev)
		})
	}
	return nil
}

// restore reverses state writes newest first.
func (u *unit) restore(ctx context.Context) error {
	if len(u.undo) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	var errs []error
	for i := len(u.undo) - 1; i >= 0; i-- {
		if err := u.undo[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	u.undo = nil
	return errors.Join(errs...)
}
