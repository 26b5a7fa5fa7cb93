package policy

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"liquidityflow/internal/domain"
)

// mulDiv returns floor(x*y/d). The product is formed in 256 bits, so only a
// quotient that does not fit in 64 bits is reported as overflow.
func mulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", domain.ErrInvalidParameter)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, fmt.Errorf("%w: %d*%d/%d", domain.ErrOverflow, x, y, d)
	}
	return z.Uint64(), nil
}

// MulDiv is the exported form of mulDiv for other accounting code.
func MulDiv(x, y, d uint64) (uint64, error) {
	return mulDiv(x, y, d)
}

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d+%d", domain.ErrOverflow, a, b)
	}
	return a + b, nil
}

// CheckedSub returns a-b or ErrInsufficientBalance when b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d-%d", domain.ErrInsufficientBalance, a, b)
	}
	return a - b, nil
}
