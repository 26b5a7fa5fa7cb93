package policy

import (
	"fmt"

	"liquidityflow/internal/domain"
)

// ComputeFee returns floor(amount*feeBasisPoints/10_000).
func ComputeFee(amount, feeBasisPoints uint64) (uint64, error) {
	if feeBasisPoints > domain.MaxFeeBasisPoints {
		return 0, fmt.Errorf("%w: fee %d bps above cap %d", domain.ErrInvalidParameter, feeBasisPoints, domain.MaxFeeBasisPoints)
	}
	if feeBasisPoints == 0 || amount == 0 {
		return 0, nil
	}
	return mulDiv(amount, feeBasisPoints, domain.BasisPointDenominator)
}

// FeeTierSchedule maps a market volatility signal onto a fee tier.
type FeeTierSchedule struct {
	VolatilityThreshold uint64 `json:"volatility_threshold"`
	HighFeeBps          uint64 `json:"high_fee_bps"`
	LowFeeBps           uint64 `json:"low_fee_bps"`
}

// DefaultFeeTiers returns the stock two-tier schedule.
func DefaultFeeTiers() FeeTierSchedule {
	return FeeTierSchedule{
		VolatilityThreshold: domain.VolatilityThreshold,
		HighFeeBps:          domain.HighVolatilityFeeBps,
		LowFeeBps:           domain.LowVolatilityFeeBps,
	}
}

// Validate checks both tiers against the fee cap.
func (s FeeTierSchedule) Validate() error {
	if s.HighFeeBps > domain.MaxFeeBasisPoints || s.LowFeeBps > domain.MaxFeeBasisPoints {
		return fmt.Errorf("%w: fee tier above cap %d", domain.ErrInvalidParameter, domain.MaxFeeBasisPoints)
	}
	return nil
}

// Select returns the high tier when volatility is strictly above the
// threshold and the low tier otherwise.
func (s FeeTierSchedule) Select(marketVolatility uint64) uint64 {
	if marketVolatility > s.VolatilityThreshold {
		return s.HighFeeBps
	}
	return s.LowFeeBps
}

// SelectFeeTier applies the default schedule.
func SelectFeeTier(marketVolatility uint64) uint64 {
	return DefaultFeeTiers().Select(marketVolatility)
}

// MinAmountOut derives a caller slippage floor from a quoted output and a
// tolerance in basis points.
func MinAmountOut(quoted, toleranceBps uint64) (uint64, error) {
	if toleranceBps > domain.MaxSlippageBasisPoints {
		return 0, fmt.Errorf("%w: slippage tolerance %d bps above cap %d", domain.ErrInvalidParameter, toleranceBps, domain.MaxSlippageBasisPoints)
	}
	return mulDiv(quoted, domain.BasisPointDenominator-toleranceBps, domain.BasisPointDenominator)
}
