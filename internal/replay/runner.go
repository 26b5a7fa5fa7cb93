package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/events"
	"liquidityflow/internal/model"
)

// Pool is the set of engine operations a replay stream can drive.
type Pool interface {
	ProvideLiquidity(ctx context.Context, participant string, amountA, amountB uint64) (events.LiquidityAdded, error)
	RemoveLiquidity(ctx context.Context, participant string, liquidityAmount uint64) (events.LiquidityRemoved, error)
	SwapTokens(ctx context.Context, participant, assetIn string, amountIn, minAmountOut uint64) (events.SwapExecuted, error)
	StakeTokens(ctx context.Context, participant string, amount uint64) (events.TokensStaked, error)
	UnstakeTokens(ctx context.Context, participant string, amount uint64) (events.TokensUnstaked, error)
	AdjustFee(ctx context.Context, caller string, marketVolatility uint64) (events.FeeAdjusted, error)
}

// ErrorWriter receives one record per rejected line.
type ErrorWriter interface {
	Append(records ...any) error
}

// FailureObserver is told about every rejected operation.
type FailureObserver interface {
	ObserveFailure(op string, err error)
}

type Runner struct {
	Pool      Pool
	Errors    ErrorWriter
	State     StateStore
	Observer  FailureObserver
	Logger    *zap.Logger
	SaveEvery uint64
}

// Summary counts lines by outcome. Resumed lines are counted as skipped.
type Summary struct {
	Total   uint64 `json:"total"`
	Applied uint64 `json:"applied"`
	Failed  uint64 `json:"failed"`
	Skipped uint64 `json:"skipped"`
}

// Run applies each JSONL operation in order. Operation failures are recorded
// and replay continues; only I/O and state errors stop the run.
func (r *Runner) Run(ctx context.Context, in io.Reader) (Summary, error) {
	if r.Pool == nil {
		return Summary{}, fmt.Errorf("replay pool is nil")
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	saveEvery := r.SaveEvery
	if saveEvery == 0 {
		saveEvery = 100
	}

	var resumeFrom uint64
	if r.State != nil {
		next, ok, err := r.State.Load(ctx)
		if err != nil {
			return Summary{}, err
		}
		if ok {
			resumeFrom = next
			logger.Info("replay resume", zap.Uint64("from_line", next))
		}
	}

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var summary Summary
	var lineNo uint64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++
		if lineNo <= resumeFrom {
			summary.Skipped++
			continue
		}

		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			summary.Failed++
			if err := r.recordFailure(lineNo, "", fmt.Errorf("%w: decode line: %v", domain.ErrInvalidParameter, err)); err != nil {
				return summary, err
			}
		} else if err := Apply(ctx, r.Pool, op); err != nil {
			summary.Failed++
			logger.Debug("operation rejected", zap.Uint64("line", lineNo), zap.String("op", op.Op), zap.Error(err))
			if err := r.recordFailure(lineNo, op.Op, err); err != nil {
				return summary, err
			}
		} else {
			summary.Applied++
		}

		if r.State != nil && lineNo%saveEvery == 0 {
			if err := r.State.Save(ctx, lineNo); err != nil {
				return summary, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}
	if r.State != nil && lineNo > resumeFrom {
		if err := r.State.Save(ctx, lineNo); err != nil {
			return summary, err
		}
	}

	logger.Info("replay complete",
		zap.Uint64("total", summary.Total),
		zap.Uint64("applied", summary.Applied),
		zap.Uint64("failed", summary.Failed),
		zap.Uint64("skipped", summary.Skipped),
	)
	return summary, nil
}

func (r *Runner) recordFailure(line uint64, op string, err error) error {
	if r.Observer != nil && op != "" {
		r.Observer.ObserveFailure(op, err)
	}
	if r.Errors == nil {
		return nil
	}
	return r.Errors.Append(model.OperationError{
		Line:  line,
		Op:    op,
		Kind:  domain.Kind(err),
		Error: err.Error(),
	})
}

// Apply dispatches one operation to the pool.
func Apply(ctx context.Context, p Pool, op model.Operation) error {
	var err error
	switch op.Op {
	case model.OpProvideLiquidity:
		_, err = p.ProvideLiquidity(ctx, op.Participant, op.AmountA, op.AmountB)
	case model.OpRemoveLiquidity:
		_, err = p.RemoveLiquidity(ctx, op.Participant, op.LiquidityAmount)
	case model.OpSwapTokens:
		_, err = p.SwapTokens(ctx, op.Participant, op.AssetIn, op.AmountIn, op.MinAmountOut)
	case model.OpStakeTokens:
		_, err = p.StakeTokens(ctx, op.Participant, op.Amount)
	case model.OpUnstakeTokens:
		_, err = p.UnstakeTokens(ctx, op.Participant, op.Amount)
	case model.OpAdjustFee:
		_, err = p.AdjustFee(ctx, op.Caller, op.MarketVolatility)
	default:
		err = fmt.Errorf("%w: unknown op %q", domain.ErrInvalidParameter, op.Op)
	}
	return err
}
