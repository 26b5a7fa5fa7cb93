package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityflow/internal/domain"
)

// QuoteOutput prices amountIn against the constant-product curve:
// floor(amountIn*reserveOut/(reserveIn+amountIn)). The result is always
// strictly below reserveOut.
func QuoteOutput(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, fmt.Errorf("%w: input amount must be positive", domain.ErrInvalidParameter)
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, fmt.Errorf("%w: pool has no liquidity", domain.ErrInsufficientBalance)
	}

	in := uint256.NewInt(amountIn)
	numerator := new(uint256.Int).Mul(in, uint256.NewInt(reserveOut))
	denominator := new(uint256.Int).Add(uint256.NewInt(reserveIn), in)
	out := new(uint256.Int).Div(numerator, denominator)
	if !out.IsUint64() {
		return 0, fmt.Errorf("%w: swap output", domain.ErrOverflow)
	}
	return out.Uint64(), nil
}
