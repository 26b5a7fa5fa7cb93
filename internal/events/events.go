package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeLiquidityAdded   = "liquidity.added"
	TypeLiquidityRemoved = "liquidity.removed"
	TypeSwapExecuted     = "swap.executed"
	TypeTokensStaked     = "stake.deposited"
	TypeTokensUnstaked   = "stake.withdrawn"
	TypeFeeAdjusted      = "fee.adjusted"
)

// Event is an immutable fact describing one completed operation.
type Event interface {
	EventType() string
}

type LiquidityAdded struct {
	Participant  string `json:"participant"`
	AmountA      uint64 `json:"amount_a"`
	AmountB      uint64 `json:"amount_b"`
	RewardIssued uint64 `json:"reward_issued"`
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

type LiquidityRemoved struct {
	Participant    string `json:"participant"`
	SharesReturned uint64 `json:"shares_returned"`
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

// SwapExecuted carries the amounts actually moved, never the caller's floor.
type SwapExecuted struct {
	Participant    string `json:"participant"`
	AssetIn        string `json:"asset_in"`
	AssetOut       string `json:"asset_out"`
	AmountIn       uint64 `json:"amount_in"`
	Fee            uint64 `json:"fee"`
	FeeBasisPoints uint64 `json:"fee_basis_points"`
	AmountOut      uint64 `json:"amount_out"`
	MinAmountOut   uint64 `json:"min_amount_out"`
}

func (SwapExecuted) EventType() string { return TypeSwapExecuted }

type TokensStaked struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"`
	TotalStaked uint64 `json:"total_staked"`
}

func (TokensStaked) EventType() string { return TypeTokensStaked }

type TokensUnstaked struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"`
	TotalStaked uint64 `json:"total_staked"`
}

func (TokensUnstaked) EventType() string { return TypeTokensUnstaked }

type FeeAdjusted struct {
	Authority         string `json:"authority"`
	MarketVolatility  uint64 `json:"market_volatility"`
	OldFeeBasisPoints uint64 `json:"old_fee_basis_points"`
	NewFeeBasisPoints uint64 `json:"new_fee_basis_points"`
}

func (FeeAdjusted) EventType() string { return TypeFeeAdjusted }

// Envelope wraps an event with the identity of the pool and the commit time.
type Envelope struct {
	ID         string    `json:"id"`
	PoolID     string    `json:"pool_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       Event     `json:"data"`
}

// NewEnvelope stamps an event with a fresh id.
func NewEnvelope(poolID string, ev Event, at time.Time) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		PoolID:     poolID,
		Type:       ev.EventType(),
		OccurredAt: at.UTC(),
		Data:       ev,
	}
}
