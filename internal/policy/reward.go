package policy

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityflow/internal/domain"
)

// ComputeReward returns floor((amountA+amountB)*multiplier/1000).
//
// Rewards depend on deposit size only; there is no time weighting. A
// duration-weighted model would be a separate policy, not a change here.
func ComputeReward(amountA, amountB, multiplier uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(amountA), uint256.NewInt(amountB))
	z, overflow := new(uint256.Int).MulDivOverflow(sum, uint256.NewInt(multiplier), uint256.NewInt(domain.RewardDenominator))
	if overflow || !z.IsUint64() {
		return 0, fmt.Errorf("%w: reward for %d+%d at multiplier %d", domain.ErrOverflow, amountA, amountB, multiplier)
	}
	return z.Uint64(), nil
}
