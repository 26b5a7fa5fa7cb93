package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/events"
	"liquidityflow/internal/policy"
)

// Engine applies deposit, withdrawal, swap, stake and fee operations for a
// single pool. Operations are serialized in process, and each one reads the
// pool config from the state store when it starts, so fee changes made by
// another engine on the same store apply to the next operation.
type Engine struct {
	mu      sync.Mutex
	params  Params
	custody Custody
	store   StateStore
	sink    events.Sink
	logger  *zap.Logger
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

func WithSink(sink events.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine initializes the pool config in store with the default fee when
// the pool has never been seen. When custody implements StatefulAtomic,
// operations read and write state through it instead of store.
func NewEngine(ctx context.Context, params Params, custody Custody, store StateStore, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if custody == nil {
		return nil, fmt.Errorf("custody is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("state store is nil")
	}

	e := &Engine{
		params:  params,
		custody: custody,
		store:   store,
		sink:    events.NopSink{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	cfg, ok, err := store.LoadConfig(ctx, params.PoolID)
	if err != nil {
		return nil, fmt.Errorf("load pool config: %w", err)
	}
	if !ok {
		cfg = Config{PoolID: params.PoolID, FeeBasisPoints: params.DefaultFeeBps, UpdatedAt: e.now().UTC()}
		if err := store.SaveConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("init pool config: %w", err)
		}
	}
	if cfg.FeeBasisPoints > domain.MaxFeeBasisPoints {
		return nil, fmt.Errorf("%w: stored fee %d bps above cap", domain.ErrInvalidParameter, cfg.FeeBasisPoints)
	}
	return e, nil
}

// Params returns the pool wiring.
func (e *Engine) Params() Params {
	return e.params
}

// Config returns the stored pool config.
func (e *Engine) Config(ctx context.Context) (Config, error) {
	cfg, ok, err := e.store.LoadConfig(ctx, e.params.PoolID)
	if err != nil {
		return Config{}, fmt.Errorf("load pool config: %w", err)
	}
	if !ok {
		return Config{}, fmt.Errorf("pool config for %s missing", e.params.PoolID)
	}
	return cfg, nil
}

// Stake returns the participant's stake record.
func (e *Engine) Stake(ctx context.Context, participant string) (StakeRecord, error) {
	if err := requireParticipant(participant); err != nil {
		return StakeRecord{}, err
	}
	return e.store.LoadStake(ctx, e.params.PoolID, participant)
}

// ProvideLiquidity deposits both pool assets and mints the LP reward.
func (e *Engine) ProvideLiquidity(ctx context.Context, participant string, amountA, amountB uint64) (events.LiquidityAdded, error) {
	if err := requireParticipant(participant); err != nil {
		return events.LiquidityAdded{}, err
	}
	if amountA == 0 || amountB == 0 {
		return events.LiquidityAdded{}, fmt.Errorf("%w: both deposit amounts must be positive", domain.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	reward, err := policy.ComputeReward(amountA, amountB, e.params.RewardMultiplier)
	if err != nil {
		return events.LiquidityAdded{}, fmt.Errorf("compute reward: %w", err)
	}

	err = e.execute(ctx, "provide_liquidity", func(u *unit) error {
		if err := u.journal.transfer(ctx, u.custody, domain.TransferIntent{
			Source:      domain.Account{Owner: participant, Asset: e.params.AssetA},
			Destination: e.params.ReserveAccount(e.params.AssetA),
			Authorizer:  participant,
			Amount:      amountA,
		}); err != nil {
			return fmt.Errorf("deposit asset a: %w", err)
		}
		if err := u.journal.transfer(ctx, u.custody, domain.TransferIntent{
			Source:      domain.Account{Owner: participant, Asset: e.params.AssetB},
			Destination: e.params.ReserveAccount(e.params.AssetB),
			Authorizer:  participant,
			Amount:      amountB,
		}); err != nil {
			return fmt.Errorf("deposit asset b: %w", err)
		}
		if reward == 0 {
			return nil
		}
		rewardAccount := domain.Account{Owner: participant, Asset: e.params.RewardAsset}
		if err := u.custody.Mint(ctx, e.params.RewardAuthority, rewardAccount, reward); err != nil {
			return fmt.Errorf("mint reward: %w", err)
		}
		return nil
	})
	if err != nil {
		return events.LiquidityAdded{}, err
	}

	ev := events.LiquidityAdded{Participant: participant, AmountA: amountA, AmountB: amountB, RewardIssued: reward}
	e.emit(ev)
	e.logger.Debug("liquidity added",
		zap.String("participant", participant),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("reward", reward),
	)
	return ev, nil
}

// RemoveLiquidity returns pool-share tokens from the participant to the pool.
func (e *Engine) RemoveLiquidity(ctx context.Context, participant string, liquidityAmount uint64) (events.LiquidityRemoved, error) {
	if err := requireParticipant(participant); err != nil {
		return events.LiquidityRemoved{}, err
	}
	if liquidityAmount == 0 {
		return events.LiquidityRemoved{}, fmt.Errorf("%w: liquidity amount must be positive", domain.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.execute(ctx, "remove_liquidity", func(u *unit) error {
		if err := u.journal.transfer(ctx, u.custody, domain.TransferIntent{
			Source:      domain.Account{Owner: participant, Asset: e.params.ShareAsset},
			Destination: e.params.ShareAccount(),
			Authorizer:  participant,
			Amount:      liquidityAmount,
		}); err != nil {
			return fmt.Errorf("return shares: %w", err)
		}
		return nil
	})
	if err != nil {
		return events.LiquidityRemoved{}, err
	}

	ev := events.LiquidityRemoved{Participant: participant, SharesReturned: liquidityAmount}
	e.emit(ev)
	e.logger.Debug("liquidity removed", zap.String("participant", participant), zap.Uint64("shares", liquidityAmount))
	return ev, nil
}

// SwapQuote is a priced swap against live reserves.
type SwapQuote struct {
	AssetIn        string `json:"asset_in"`
	AssetOut       string `json:"asset_out"`
	AmountIn       uint64 `json:"amount_in"`
	FeeBasisPoints uint64 `json:"fee_basis_points"`
	Fee            uint64 `json:"fee"`
	NetIn          uint64 `json:"net_in"`
	ReserveIn      uint64 `json:"reserve_in"`
	ReserveOut     uint64 `json:"reserve_out"`
	AmountOut      uint64 `json:"amount_out"`
}

// Quote prices a prospective swap without moving funds.
func (e *Engine) Quote(ctx context.Context, assetIn string, amountIn uint64) (SwapQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var q SwapQuote
	err := e.execute(ctx, "quote", func(u *unit) error {
		var err error
		q, err = e.quote(ctx, u.custody, u.config.FeeBasisPoints, assetIn, amountIn)
		return err
	})
	return q, err
}

func (e *Engine) quote(ctx context.Context, c Custody, feeBps uint64, assetIn string, amountIn uint64) (SwapQuote, error) {
	if amountIn == 0 {
		return SwapQuote{}, fmt.Errorf("%w: swap amount must be positive", domain.ErrInvalidParameter)
	}
	assetOut, ok := e.params.counterAsset(assetIn)
	if !ok {
		return SwapQuote{}, fmt.Errorf("%w: asset %q is not in pool %s", domain.ErrInvalidParameter, assetIn, e.params.PoolID)
	}

	fee, err := policy.ComputeFee(amountIn, feeBps)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("compute fee: %w", err)
	}
	netIn := amountIn - fee
	if netIn == 0 {
		return SwapQuote{}, fmt.Errorf("%w: swap amount too small after fee", domain.ErrInvalidParameter)
	}

	reserveIn, err := c.Balance(ctx, e.params.ReserveAccount(assetIn))
	if err != nil {
		return SwapQuote{}, fmt.Errorf("read reserve %s: %w", assetIn, err)
	}
	reserveOut, err := c.Balance(ctx, e.params.ReserveAccount(assetOut))
	if err != nil {
		return SwapQuote{}, fmt.Errorf("read reserve %s: %w", assetOut, err)
	}

	out, err := QuoteOutput(netIn, reserveIn, reserveOut)
	if err != nil {
		return SwapQuote{}, err
	}
	if out == 0 {
		return SwapQuote{}, fmt.Errorf("%w: swap output rounds to zero", domain.ErrInvalidParameter)
	}

	return SwapQuote{
		AssetIn:        assetIn,
		AssetOut:       assetOut,
		AmountIn:       amountIn,
		FeeBasisPoints: feeBps,
		Fee:            fee,
		NetIn:          netIn,
		ReserveIn:      reserveIn,
		ReserveOut:     reserveOut,
		AmountOut:      out,
	}, nil
}

// SwapTokens prices amountIn on the constant-product curve and executes the
// swap only if the output meets minAmountOut.
func (e *Engine) SwapTokens(ctx context.Context, participant, assetIn string, amountIn, minAmountOut uint64) (events.SwapExecuted, error) {
	if err := requireParticipant(participant); err != nil {
		return events.SwapExecuted{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var q SwapQuote
	err := e.execute(ctx, "swap_tokens", func(u *unit) error {
		c, j := u.custody, u.journal
		var err error
		q, err = e.quote(ctx, c, u.config.FeeBasisPoints, assetIn, amountIn)
		if err != nil {
			return err
		}
		if q.AmountOut < minAmountOut {
			return fmt.Errorf("%w: output %d below minimum %d", domain.ErrSlippageExceeded, q.AmountOut, minAmountOut)
		}

		if err := j.transfer(ctx, c, domain.TransferIntent{
			Source:      domain.Account{Owner: participant, Asset: q.AssetIn},
			Destination: e.params.ReserveAccount(q.AssetIn),
			Authorizer:  participant,
			Amount:      q.NetIn,
		}); err != nil {
			return fmt.Errorf("transfer input: %w", err)
		}
		if q.Fee > 0 {
			if err := j.transfer(ctx, c, domain.TransferIntent{
				Source:      domain.Account{Owner: participant, Asset: q.AssetIn},
				Destination: e.params.FeeVaultAccount(q.AssetIn),
				Authorizer:  participant,
				Amount:      q.Fee,
			}); err != nil {
				return fmt.Errorf("transfer fee: %w", err)
			}
		}
		// Outbound leg last: it is the one step the journal cannot reverse.
		if err := c.Transfer(ctx,
			e.params.ReserveAccount(q.AssetOut),
			domain.Account{Owner: participant, Asset: q.AssetOut},
			e.params.PoolAuthority,
			q.AmountOut,
		); err != nil {
			return fmt.Errorf("transfer output: %w", err)
		}
		return nil
	})
	if err != nil {
		return events.SwapExecuted{}, err
	}

	ev := events.SwapExecuted{
		Participant:    participant,
		AssetIn:        q.AssetIn,
		AssetOut:       q.AssetOut,
		AmountIn:       q.AmountIn,
		Fee:            q.Fee,
		FeeBasisPoints: q.FeeBasisPoints,
		AmountOut:      q.AmountOut,
		MinAmountOut:   minAmountOut,
	}
	e.emit(ev)
	e.logger.Debug("swap executed",
		zap.String("participant", participant),
		zap.String("asset_in", q.AssetIn),
		zap.Uint64("amount_in", q.AmountIn),
		zap.Uint64("fee", q.Fee),
		zap.Uint64("amount_out", q.AmountOut),
	)
	return ev, nil
}

// StakeTokens moves pool shares into the staking vault and credits the
// participant's stake record.
func (e *Engine) StakeTokens(ctx context.Context, participant string, amount uint64) (events.TokensStaked, error) {
	if err := requireParticipant(participant); err != nil {
		return events.TokensStaked{}, err
	}
	if amount == 0 {
		return events.TokensStaked{}, fmt.Errorf("%w: stake amount must be positive", domain.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var total uint64
	err := e.execute(ctx, "stake_tokens", func(u *unit) error {
		prev, err := u.state.LoadStake(ctx, e.params.PoolID, participant)
		if err != nil {
			return fmt.Errorf("load stake: %w", err)
		}
		total, err = policy.CheckedAdd(prev.StakedAmount, amount)
		if err != nil {
			return fmt.Errorf("stake total: %w", err)
		}
		if err := u.journal.transfer(ctx, u.custody, domain.TransferIntent{
			Source:      domain.Account{Owner: participant, Asset: e.params.ShareAsset},
			Destination: e.params.StakeVaultAccount(),
			Authorizer:  participant,
			Amount:      amount,
		}); err != nil {
			return fmt.Errorf("transfer to vault: %w", err)
		}
		next := StakeRecord{Participant: participant, StakedAmount: total, UpdatedAt: e.now().UTC()}
		return u.saveStake(ctx, e.params.PoolID, prev, next)
	})
	if err != nil {
		return events.TokensStaked{}, err
	}

	ev := events.TokensStaked{Participant: participant, Amount: amount, TotalStaked: total}
	e.emit(ev)
	e.logger.Debug("tokens staked", zap.String("participant", participant), zap.Uint64("amount", amount), zap.Uint64("total", total))
	return ev, nil
}

// UnstakeTokens releases staked pool shares back to the participant.
func (e *Engine) UnstakeTokens(ctx context.Context, participant string, amount uint64) (events.TokensUnstaked, error) {
	if err := requireParticipant(participant); err != nil {
		return events.TokensUnstaked{}, err
	}
	if amount == 0 {
		return events.TokensUnstaked{}, fmt.Errorf("%w: unstake amount must be positive", domain.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var total uint64
	err := e.execute(ctx, "unstake_tokens", func(u *unit) error {
		prev, err := u.state.LoadStake(ctx, e.params.PoolID, participant)
		if err != nil {
			return fmt.Errorf("load stake: %w", err)
		}
		total, err = policy.CheckedSub(prev.StakedAmount, amount)
		if err != nil {
			return fmt.Errorf("stake total: %w", err)
		}
		if err := u.custody.Transfer(ctx,
			e.params.StakeVaultAccount(),
			domain.Account{Owner: participant, Asset: e.params.ShareAsset},
			e.params.PoolAuthority,
			amount,
		); err != nil {
			return fmt.Errorf("transfer from vault: %w", err)
		}
		next := StakeRecord{Participant: participant, StakedAmount: total, UpdatedAt: e.now().UTC()}
		return u.saveStake(ctx, e.params.PoolID, prev, next)
	})
	if err != nil {
		return events.TokensUnstaked{}, err
	}

	ev := events.TokensUnstaked{Participant: participant, Amount: amount, TotalStaked: total}
	e.emit(ev)
	e.logger.Debug("tokens unstaked", zap.String("participant", participant), zap.Uint64("amount", amount), zap.Uint64("total", total))
	return ev, nil
}

// AdjustFee selects a fee tier from the volatility signal and persists it.
// Only the configured fee authority may call it.
func (e *Engine) AdjustFee(ctx context.Context, caller string, marketVolatility uint64) (events.FeeAdjusted, error) {
	if caller == "" || caller != e.params.FeeAuthority {
		return events.FeeAdjusted{}, fmt.Errorf("%w: %q is not the fee authority", domain.ErrUnauthorized, caller)
	}

	next := e.params.FeeTiers.Select(marketVolatility)
	if next > domain.MaxFeeBasisPoints {
		return events.FeeAdjusted{}, fmt.Errorf("%w: fee tier %d bps above cap", domain.ErrInvalidParameter, next)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var old uint64
	err := e.execute(ctx, "adjust_fee", func(u *unit) error {
		cfg := u.config
		old = cfg.FeeBasisPoints
		cfg.FeeBasisPoints = next
		cfg.UpdatedAt = e.now().UTC()
		return u.saveConfig(ctx, cfg)
	})
	if err != nil {
		return events.FeeAdjusted{}, err
	}

	ev := events.FeeAdjusted{Authority: caller, MarketVolatility: marketVolatility, OldFeeBasisPoints: old, NewFeeBasisPoints: next}
	e.emit(ev)
	e.logger.Info("fee adjusted", zap.Uint64("volatility", marketVolatility), zap.Uint64("old_bps", old), zap.Uint64("new_bps", next))
	return ev, nil
}

// execute runs fn as one all-or-nothing unit against the config current at
// its start. Custody that implements StatefulAtomic or Atomic gets a single
// batch; otherwise journaled transfers are reversed on failure. State writes
// that did not commit with custody are restored when the unit fails.
func (e *Engine) execute(ctx context.Context, op string, fn func(*unit) error) error {
	run := func(u *unit) error {
		cfg, ok, err := u.state.LoadConfig(ctx, e.params.PoolID)
		if err != nil {
			return fmt.Errorf("load pool config: %w", err)
		}
		if !ok {
			return fmt.Errorf("pool config for %s missing", e.params.PoolID)
		}
		u.config = cfg
		return fn(u)
	}

	if stateful, ok := e.custody.(StatefulAtomic); ok {
		return stateful.AtomicallyWithState(ctx, func(c Custody, st StateStore) error {
			return run(&unit{custody: c, state: st, journal: &journal{}, transactional: true})
		})
	}

	if atomic, ok := e.custody.(Atomic); ok {
		var u *unit
		err := atomic.Atomically(ctx, func(c Custody) error {
			u = &unit{custody: c, state: e.store, journal: &journal{}}
			if err := run(u); err != nil {
				e.restoreState(ctx, op, u, err)
				return err
			}
			return nil
		})
		// The batch can still fail after fn succeeded, for example at commit.
		if err != nil && u != nil {
			e.restoreState(ctx, op, u, err)
		}
		return err
	}

	u := &unit{custody: e.custody, state: e.store, journal: &journal{}}
	err := run(u)
	if err == nil {
		return nil
	}
	e.restoreState(ctx, op, u, err)
	if len(u.journal.steps) == 0 {
		return err
	}

	reverted := len(u.journal.steps)
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	if uerr := u.journal.unwind(uctx, e.custody, e.params.PoolAuthority); uerr != nil {
		e.logger.Error("compensation failed", zap.String("op", op), zap.NamedError("cause", err), zap.Error(uerr))
		return fmt.Errorf("%w (compensation failed: %v)", err, uerr)
	}
	e.logger.Warn("operation reverted", zap.String("op", op), zap.Int("transfers", reverted), zap.Error(err))
	return err
}

func (e *Engine) restoreState(ctx context.Context, op string, u *unit, cause error) {
	if rerr := u.restore(ctx); rerr != nil {
		e.logger.Error("restore pool state", zap.String("op", op), zap.NamedError("cause", cause), zap.Error(rerr))
	}
}

func (e *Engine) emit(ev events.Event) {
	e.sink.Record(events.NewEnvelope(e.params.PoolID, ev, e.now()))
}

func requireParticipant(participant string) error {
	if strings.TrimSpace(participant) == "" {
		return fmt.Errorf("%w: participant is required", domain.ErrInvalidParameter)
	}
	return nil
}
