package pool

import (
	"context"
	"errors"
	"fmt"

	"liquidityflow/internal/domain"
)

// journal remembers the transfers an operation has completed so they can be
// reversed when a later step fails and custody offers no batch atomicity.
// Only transfers into pool-controlled accounts are journaled; those are the
// ones the pool authority may move back.
type journal struct {
	steps []domain.TransferIntent
}

func (j *journal) transfer(ctx context.Context, c Custody, intent domain.TransferIntent) error {
	if err := c.Transfer(ctx, intent.Source, intent.Destination, intent.Authorizer, intent.Amount); err != nil {
		return err
	}
	j.steps = append(j.steps, intent)
	return nil
}

// unwind reverses completed steps newest first.
func (j *journal) unwind(ctx context.Context, c Custody, authority string) error {
	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		step := j.steps[i]
		if err := c.Transfer(ctx, step.Destination, step.Source, authority, step.Amount); err != nil {
			errs = append(errs, fmt.Errorf("revert %s -> %s: %w", step.Source, step.Destination, err))
		}
	}
	j.steps = nil
	return errors.Join(errs...)
}
