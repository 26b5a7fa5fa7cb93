package domain

// Tunable numeric configuration. All values are basis points unless noted.
const (
	BasisPointDenominator uint64 = 10_000

	FeeBasisPointsDefault  uint64 = 25
	MaxSlippageBasisPoints uint64 = 100
	MaxFeeBasisPoints      uint64 = 1000

	// RewardMultiplier is applied per RewardDenominator units deposited.
	RewardMultiplier  uint64 = 10
	RewardDenominator uint64 = 1000

	// Volatility above VolatilityThreshold selects HighVolatilityFeeBps,
	// anything at or below selects LowVolatilityFeeBps.
	VolatilityThreshold  uint64 = 50
	HighVolatilityFeeBps uint64 = 50
	LowVolatilityFeeBps  uint64 = 10
)
