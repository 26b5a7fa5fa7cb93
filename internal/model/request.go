package model

// ProvideLiquidityRequest deposits both pool assets.
type ProvideLiquidityRequest struct {
	Participant string `json:"participant"`
	AmountA     uint64 `json:"amount_a"`
	AmountB     uint64 `json:"amount_b"`
}

// RemoveLiquidityRequest returns pool shares to the pool.
type RemoveLiquidityRequest struct {
	Participant     string `json:"participant"`
	LiquidityAmount uint64 `json:"liquidity_amount"`
}

// SwapRequest trades AmountIn of AssetIn for the other pool asset.
type SwapRequest struct {
	Participant  string `json:"participant"`
	AssetIn      string `json:"asset_in"`
	AmountIn     uint64 `json:"amount_in"`
	MinAmountOut uint64 `json:"min_amount_out"`
}

// StakeRequest is used for both staking and unstaking.
type StakeRequest struct {
	Participant string `json:"participant"`
	Amount      uint64 `json:"amount"`
}

type AdjustFeeRequest struct {
	MarketVolatility uint64 `json:"market_volatility"`
}

// QuoteResponse is a prospective swap priced against live reserves.
type QuoteResponse struct {
	AssetIn        string `json:"asset_in"`
	AssetOut       string `json:"asset_out"`
	AmountIn       uint64 `json:"amount_in"`
	FeeBasisPoints uint64 `json:"fee_basis_points"`
	Fee            uint64 `json:"fee"`
	NetIn          uint64 `json:"net_in"`
	AmountOut      uint64 `json:"amount_out"`
	MinAmountOut   uint64 `json:"min_amount_out"`
	ToleranceBps   uint64 `json:"tolerance_bps"`
}
