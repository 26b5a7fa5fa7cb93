package model

// Operation names shared by the replay stream and the metrics labels.
const (
	OpProvideLiquidity = "provide_liquidity"
	OpRemoveLiquidity  = "remove_liquidity"
	OpSwapTokens       = "swap_tokens"
	OpStakeTokens      = "stake_tokens"
	OpUnstakeTokens    = "unstake_tokens"
	OpAdjustFee        = "adjust_fee"
	OpQuote            = "quote"
	OpMitigate         = "mitigate"
	OpPoolLookup       = "pool_lookup"
	OpStakeLookup      = "stake_lookup"
)

// Operation is one line of a replay stream. Only the fields relevant to Op
// are read.
type Operation struct {
	Op               string `json:"op"`
	Caller           string `json:"caller,omitempty"`
	Participant      string `json:"participant,omitempty"`
	AmountA          uint64 `json:"amount_a,omitempty"`
	AmountB          uint64 `json:"amount_b,omitempty"`
	LiquidityAmount  uint64 `json:"liquidity_amount,omitempty"`
	AssetIn          string `json:"asset_in,omitempty"`
	AmountIn         uint64 `json:"amount_in,omitempty"`
	MinAmountOut     uint64 `json:"min_amount_out,omitempty"`
	Amount           uint64 `json:"amount,omitempty"`
	MarketVolatility uint64 `json:"market_volatility,omitempty"`
}

// OperationError records a rejected operation.
type OperationError struct {
	Line  uint64 `json:"line,omitempty"`
	Op    string `json:"op"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
