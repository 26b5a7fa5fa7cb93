package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/policy"
)

// Action is the advisory outcome of an evaluation.
type Action string

const (
	ActionNone      Action = "none"
	ActionRebalance Action = "rebalance_recommended"
)

// Policy bounds how old and how uncertain a sample may be.
type Policy struct {
	MaxAge           time.Duration
	MaxConfidenceBps uint64
	MaxFutureSkew    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAge:           60 * time.Second,
		MaxConfidenceBps: 200,
		MaxFutureSkew:    5 * time.Second,
	}
}

func (p Policy) Validate() error {
	if p.MaxAge <= 0 {
		return fmt.Errorf("%w: max age must be positive", domain.ErrInvalidParameter)
	}
	if p.MaxConfidenceBps > domain.BasisPointDenominator {
		return fmt.Errorf("%w: max confidence %d bps above 100%%", domain.ErrInvalidParameter, p.MaxConfidenceBps)
	}
	if p.MaxFutureSkew < 0 {
		return fmt.Errorf("%w: future skew must not be negative", domain.ErrInvalidParameter)
	}
	return nil
}

// BalanceReader reads pool reserves. The custody ledger satisfies it.
type BalanceReader interface {
	Balance(ctx context.Context, account domain.Account) (uint64, error)
}

// Signal reports the evaluated price against the threshold together with the
// reserves observed at the same time.
type Signal struct {
	Action      Action        `json:"action"`
	Feed        string        `json:"feed"`
	Price       uint64        `json:"price"`
	Confidence  uint64        `json:"confidence"`
	Decimals    uint8         `json:"decimals,omitempty"`
	Threshold   uint64        `json:"threshold"`
	PublishedAt time.Time     `json:"published_at"`
	Age         time.Duration `json:"age"`
	ReserveA    uint64        `json:"reserve_a"`
	ReserveB    uint64        `json:"reserve_b"`
}

// Config wires a Mitigator to one feed and the pool reserves it watches.
type Config struct {
	Feed     string
	Policy   Policy
	ReserveA domain.Account
	ReserveB domain.Account
}

// Mitigator detects prices that warrant rebalancing. It never moves funds.
type Mitigator struct {
	cfg      Config
	oracle   Oracle
	balances BalanceReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewMitigator builds a Mitigator. balances may be nil, in which case the
// signal carries no reserve figures.
func NewMitigator(cfg Config, oracle Oracle, balances BalanceReader, logger *zap.Logger) (*Mitigator, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle is nil")
	}
	if cfg.Feed == "" {
		return nil, fmt.Errorf("%w: oracle feed is required", domain.ErrInvalidParameter)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mitigator{cfg: cfg, oracle: oracle, balances: balances, logger: logger, now: time.Now}, nil
}

// SetClock replaces the time source used for staleness checks.
func (m *Mitigator) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Evaluate reads the latest sample and recommends rebalancing when the price
// is strictly above priceThreshold.
func (m *Mitigator) Evaluate(ctx context.Context, priceThreshold uint64) (Signal, error) {
	sample, err := m.oracle.ReadPrice(ctx, m.cfg.Feed)
	if err != nil {
		if errors.Is(err, domain.ErrOracleUnavailable) {
			return Signal{}, fmt.Errorf("read price: %w", err)
		}
		return Signal{}, fmt.Errorf("read price: %w: %v", domain.ErrOracleUnavailable, err)
	}

	now := m.now()
	age, err := m.check(sample, now)
	if err != nil {
		m.logger.Warn("price sample rejected", zap.String("feed", m.cfg.Feed), zap.Error(err))
		return Signal{}, err
	}

	sig := Signal{
		Action:      ActionNone,
		Feed:        m.cfg.Feed,
		Price:       sample.Price,
		Confidence:  sample.Confidence,
		Decimals:    sample.Decimals,
		Threshold:   priceThreshold,
		PublishedAt: sample.PublishedAt.UTC(),
		Age:         age,
	}

	if m.balances != nil {
		if sig.ReserveA, err = m.balances.Balance(ctx, m.cfg.ReserveA); err != nil {
			return Signal{}, fmt.Errorf("read reserve %s: %w", m.cfg.ReserveA, err)
		}
		if sig.ReserveB, err = m.balances.Balance(ctx, m.cfg.ReserveB); err != nil {
			return Signal{}, fmt.Errorf("read reserve %s: %w", m.cfg.ReserveB, err)
		}
	}

	if sample.Price > priceThreshold {
		sig.Action = ActionRebalance
		m.logger.Warn("rebalance recommended",
			zap.String("feed", m.cfg.Feed),
			zap.Uint64("price", sample.Price),
			zap.Uint64("threshold", priceThreshold),
			zap.Uint64("reserve_a", sig.ReserveA),
			zap.Uint64("reserve_b", sig.ReserveB),
		)
	}
	return sig, nil
}

func (m *Mitigator) check(sample PriceSample, now time.Time) (time.Duration, error) {
	if sample.Price == 0 {
		return 0, fmt.Errorf("%w: feed %s reported zero price", domain.ErrOracleUnavailable, m.cfg.Feed)
	}
	if sample.PublishedAt.IsZero() {
		return 0, fmt.Errorf("%w: feed %s sample has no timestamp", domain.ErrOracleUnavailable, m.cfg.Feed)
	}

	p := m.cfg.Policy
	age := now.Sub(sample.PublishedAt)
	if age < -p.MaxFutureSkew {
		return 0, fmt.Errorf("%w: feed %s sample is %s in the future", domain.ErrOracleUnavailable, m.cfg.Feed, -age)
	}
	if age > p.MaxAge {
		return 0, fmt.Errorf("%w: feed %s sample is stale (%s > %s)", domain.ErrOracleUnavailable, m.cfg.Feed, age, p.MaxAge)
	}

	if sample.Confidence > 0 {
		ratio, err := policy.MulDiv(sample.Confidence, domain.BasisPointDenominator, sample.Price)
		if err != nil || ratio > p.MaxConfidenceBps {
			return 0, fmt.Errorf("%w: feed %s confidence %d too wide for price %d", domain.ErrOracleUnavailable, m.cfg.Feed, sample.Confidence, sample.Price)
		}
	}
	if age < 0 {
		age = 0
	}
	return age, nil
}
