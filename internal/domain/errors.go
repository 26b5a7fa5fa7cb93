package domain

import "errors"

var (
	// ErrInvalidParameter reports an out-of-range config value or a zero amount.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientBalance reports a custody transfer that cannot be satisfied.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverflow reports arithmetic that would exceed the representable range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrSlippageExceeded reports a computed swap output below the caller's floor.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrUnauthorized reports a caller lacking the required role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOracleUnavailable reports that no usable price sample exists.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidParameter, "invalid_parameter"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrOverflow, "overflow"},
	{ErrSlippageExceeded, "slippage_exceeded"},
	{ErrUnauthorized, "unauthorized"},
	{ErrOracleUnavailable, "oracle_unavailable"},
}

// Kind returns the taxonomy name for err, "internal" for anything outside
// the taxonomy and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
