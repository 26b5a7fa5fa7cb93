package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"liquidityflow/internal/domain"
)

const sampleConfig = `
log-level: debug
pool:
  id: pool-1
  asset-a: USDC
  asset-b: ETH
  share-asset: LP
  reward-asset: RWD
  pool-authority: pool-admin
  fee-authority: fee-admin
  reward-authority: minter
  fee-vault: fees
  stake-vault: vault
  fee-tiers:
    volatility-threshold: 40
risk:
  feed: "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
  max-age: 2m
genesis:
  - owner: pool-1
    asset: USDC
    amount: 1000000
  - owner: alice
    asset: ETH
    amount: 500
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poolctl.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServeMergesFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("POOLCTL_POOL_FEE_AUTHORITY", "governance")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("listen", ":8080", "")
	require.NoError(t, flags.Parse([]string{"--listen", ":9090"}))

	cfg, err := LoadServe(path, flags)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "pool-1", cfg.Pool.PoolID)
	require.Equal(t, "governance", cfg.Pool.FeeAuthority)
	require.Equal(t, uint64(domain.FeeBasisPointsDefault), cfg.Pool.DefaultFeeBps)
	require.Equal(t, uint64(40), cfg.Pool.FeeTiers.VolatilityThreshold)
	require.Equal(t, uint64(domain.HighVolatilityFeeBps), cfg.Pool.FeeTiers.HighFeeBps)
	require.NoError(t, cfg.Pool.Validate())

	require.Equal(t, 2*time.Minute, cfg.Risk.MaxAge)
	require.Equal(t, uint64(200), cfg.Risk.MaxConfidenceBps)
	require.Equal(t, "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419", cfg.Risk.Feed)

	require.Len(t, cfg.Genesis, 2)
	require.Equal(t, uint64(1000000), cfg.Genesis[0].Amount)
}

func TestLoadMitigateDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("mitigate", pflag.ContinueOnError)
	flags.Uint64("threshold", 0, "")
	flags.Duration("interval", 0, "")
	require.NoError(t, flags.Parse([]string{"--threshold", "2000", "--interval", "30s"}))

	cfg, err := LoadMitigate(writeConfig(t), flags)
	require.NoError(t, err)
	require.Equal(t, uint64(2000), cfg.Threshold)
	require.Equal(t, 30*time.Second, cfg.Interval)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := LoadQuote(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestLoadReplayRejectsFileResumeWithoutDatabase(t *testing.T) {
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.String("state-file", "", "")
	require.NoError(t, flags.Parse([]string{"--in", "ops.jsonl", "--state-file", "state.json"}))

	cfg, err := LoadReplay(writeConfig(t), flags)
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "state-file requires pg-dsn")

	cfg.PGDSN = "postgres://localhost/pool"
	require.NoError(t, cfg.Validate())

	cfg.StateFile = ""
	cfg.PGDSN = ""
	require.NoError(t, cfg.Validate())
}

func TestRewardMultiplierZeroHonored(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("POOLCTL_POOL_REWARD_MULTIPLIER", "0")

	cfg, err := LoadQuote(path, nil)
	require.NoError(t, err)
	require.Zero(t, cfg.Pool.RewardMultiplier)

	t.Setenv("POOLCTL_POOL_REWARD_MULTIPLIER", "")
	cfg, err = LoadQuote(path, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(domain.RewardMultiplier), cfg.Pool.RewardMultiplier)
}
