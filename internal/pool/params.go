package pool

import (
	"fmt"
	"strings"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/policy"
)

// Params wires a pool to its assets, custody accounts and roles. Unlike
// Config it does not change while the engine runs.
type Params struct {
	PoolID      string `json:"pool_id"`
	AssetA      string `json:"asset_a"`
	AssetB      string `json:"asset_b"`
	ShareAsset  string `json:"share_asset"`
	RewardAsset string `json:"reward_asset"`

	// PoolAuthority authorizes transfers out of the reserves, the staking
	// vault and the fee vault.
	PoolAuthority   string `json:"pool_authority"`
	FeeAuthority    string `json:"fee_authority"`
	RewardAuthority string `json:"reward_authority"`
	FeeVault        string `json:"fee_vault"`
	StakeVault      string `json:"stake_vault"`

	DefaultFeeBps    uint64                 `json:"default_fee_bps"`
	RewardMultiplier uint64                 `json:"reward_multiplier"`
	FeeTiers         policy.FeeTierSchedule `json:"fee_tiers"`
}

// DefaultParams fills the numeric settings with the stock constants.
func DefaultParams() Params {
	return Params{
		DefaultFeeBps:    domain.FeeBasisPointsDefault,
		RewardMultiplier: domain.RewardMultiplier,
		FeeTiers:         policy.DefaultFeeTiers(),
	}
}

func (p Params) Validate() error {
	required := map[string]string{
		"pool id":          p.PoolID,
		"asset a":          p.AssetA,
		"asset b":          p.AssetB,
		"share asset":      p.ShareAsset,
		"reward asset":     p.RewardAsset,
		"pool authority":   p.PoolAuthority,
		"fee authority":    p.FeeAuthority,
		"reward authority": p.RewardAuthority,
		"fee vault":        p.FeeVault,
		"stake vault":      p.StakeVault,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalidParameter, name)
		}
	}
	if p.AssetA == p.AssetB {
		return fmt.Errorf("%w: pool assets must differ", domain.ErrInvalidParameter)
	}
	if p.DefaultFeeBps > domain.MaxFeeBasisPoints {
		return fmt.Errorf("%w: default fee %d bps above cap", domain.ErrInvalidParameter, p.DefaultFeeBps)
	}
	return p.FeeTiers.Validate()
}

// ReserveAccount is the pool's holding of asset.
func (p Params) ReserveAccount(asset string) domain.Account {
	return domain.Account{Owner: p.PoolID, Asset: asset}
}

// ShareAccount receives pool-share tokens returned on withdrawal.
func (p Params) ShareAccount() domain.Account {
	return domain.Account{Owner: p.PoolID, Asset: p.ShareAsset}
}

func (p Params) StakeVaultAccount() domain.Account {
	return domain.Account{Owner: p.StakeVault, Asset: p.ShareAsset}
}

func (p Params) FeeVaultAccount(asset string) domain.Account {
	return domain.Account{Owner: p.FeeVault, Asset: asset}
}

// counterAsset returns the other side of the pair, or false if asset is not
// part of the pool.
func (p Params) counterAsset(asset string) (string, bool) {
	switch asset {
	case p.AssetA:
		return p.AssetB, true
	case p.AssetB:
		return p.AssetA, true
	default:
		return "", false
	}
}
