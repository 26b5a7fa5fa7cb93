package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"liquidityflow/internal/custody"
	"liquidityflow/internal/policy"
	"liquidityflow/internal/pool"
	"liquidityflow/internal/risk"
)

const envPrefix = "POOLCTL"

// Common holds the settings every command shares.
type Common struct {
	LogLevel    string
	PGDSN       string
	SeedGenesis bool
	Pool        pool.Params
	Genesis     []custody.GenesisBalance
}

// Risk configures the oracle feed and sample bounds.
type Risk struct {
	Feed string
	risk.Policy
}

// newViper merges config file, environment variables, and flags. Pool and
// risk wiring is nested under the pool.* and risk.* keys, for example
// POOLCTL_POOL_FEE_AUTHORITY.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	setPoolDefaults(v)
	setRiskDefaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// Env lookups only see keys viper already knows, so every pool field gets
// a default.
func setPoolDefaults(v *viper.Viper) {
	defaults := pool.DefaultParams()
	for _, key := range []string{
		"id", "asset-a", "asset-b", "share-asset", "reward-asset",
		"pool-authority", "fee-authority", "reward-authority", "fee-vault", "stake-vault",
	} {
		v.SetDefault("pool."+key, "")
	}
	v.SetDefault("pool.default-fee-bps", defaults.DefaultFeeBps)
	v.SetDefault("pool.reward-multiplier", defaults.RewardMultiplier)
	v.SetDefault("pool.fee-tiers.volatility-threshold", defaults.FeeTiers.VolatilityThreshold)
	v.SetDefault("pool.fee-tiers.high-fee-bps", defaults.FeeTiers.HighFeeBps)
	v.SetDefault("pool.fee-tiers.low-fee-bps", defaults.FeeTiers.LowFeeBps)
}

func setRiskDefaults(v *viper.Viper) {
	defaults := risk.DefaultPolicy()
	v.SetDefault("risk.feed", "")
	v.SetDefault("risk.max-age", defaults.MaxAge)
	v.SetDefault("risk.max-confidence-bps", defaults.MaxConfidenceBps)
	v.SetDefault("risk.max-future-skew", defaults.MaxFutureSkew)
}

func loadCommon(v *viper.Viper) (Common, error) {
	params := pool.Params{
		PoolID:           v.GetString("pool.id"),
		AssetA:           v.GetString("pool.asset-a"),
		AssetB:           v.GetString("pool.asset-b"),
		ShareAsset:       v.GetString("pool.share-asset"),
		RewardAsset:      v.GetString("pool.reward-asset"),
		PoolAuthority:    v.GetString("pool.pool-authority"),
		FeeAuthority:     v.GetString("pool.fee-authority"),
		RewardAuthority:  v.GetString("pool.reward-authority"),
		FeeVault:         v.GetString("pool.fee-vault"),
		StakeVault:       v.GetString("pool.stake-vault"),
		DefaultFeeBps:    v.GetUint64("pool.default-fee-bps"),
		RewardMultiplier: v.GetUint64("pool.reward-multiplier"),
		FeeTiers: policy.FeeTierSchedule{
			VolatilityThreshold: v.GetUint64("pool.fee-tiers.volatility-threshold"),
			HighFeeBps:          v.GetUint64("pool.fee-tiers.high-fee-bps"),
			LowFeeBps:           v.GetUint64("pool.fee-tiers.low-fee-bps"),
		},
	}
	var genesis []custody.GenesisBalance
	if v.IsSet("genesis") {
		if err := v.UnmarshalKey("genesis", &genesis); err != nil {
			return Common{}, fmt.Errorf("decode genesis: %w", err)
		}
	}

	return Common{
		LogLevel:    v.GetString("log-level"),
		PGDSN:       v.GetString("pg-dsn"),
		SeedGenesis: v.GetBool("seed-genesis"),
		Pool:        params,
		Genesis:     genesis,
	}, nil
}

func loadRisk(v *viper.Viper) Risk {
	return Risk{
		Feed: v.GetString("risk.feed"),
		Policy: risk.Policy{
			MaxAge:           v.GetDuration("risk.max-age"),
			MaxConfidenceBps: v.GetUint64("risk.max-confidence-bps"),
			MaxFutureSkew:    v.GetDuration("risk.max-future-skew"),
		},
	}
}
