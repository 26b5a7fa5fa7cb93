package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig configures the HTTP service.
type ServeConfig struct {
	Common
	Listen    string
	RPCURL    string
	EventsOut string
	Risk      Risk
}

func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	v.SetDefault("listen", ":8080")

	common, err := loadCommon(v)
	if err != nil {
		return ServeConfig{}, err
	}
	riskCfg := loadRisk(v)
	return ServeConfig{
		Common:    common,
		Listen:    v.GetString("listen"),
		RPCURL:    v.GetString("rpc"),
		EventsOut: v.GetString("events-out"),
		Risk:      riskCfg,
	}, nil
}

// ReplayConfig configures a batch replay of operation requests.
type ReplayConfig struct {
	Common
	In        string
	Errors    string
	EventsOut string
	StateFile string
	StateName string
	SaveEvery uint64
}

func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}
	v.SetDefault("errors", "./data/replay_errors.jsonl")
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("state-name", "replay")
	v.SetDefault("save-every", uint64(100))

	common, err := loadCommon(v)
	if err != nil {
		return ReplayConfig{}, err
	}
	return ReplayConfig{
		Common:    common,
		In:        v.GetString("in"),
		Errors:    v.GetString("errors"),
		EventsOut: v.GetString("events-out"),
		StateFile: v.GetString("state-file"),
		StateName: v.GetString("state-name"),
		SaveEvery: v.GetUint64("save-every"),
	}, nil
}

// Validate checks the replay inputs. Resuming from a state file needs a
// pg-dsn: the in-memory ledger is re-seeded on every run, so the effects of
// skipped lines would be gone.
func (c ReplayConfig) Validate() error {
	if c.In == "" {
		return fmt.Errorf("input path is required")
	}
	if c.Errors == "" {
		return fmt.Errorf("errors path is required")
	}
	if c.StateFile != "" && c.PGDSN == "" {
		return fmt.Errorf("state-file requires pg-dsn: in-memory balances do not survive between runs")
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool settings: %w", err)
	}
	return nil
}

// QuoteConfig prices one prospective swap.
type QuoteConfig struct {
	Common
	AssetIn      string
	AmountIn     uint64
	ToleranceBps uint64
}

func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return QuoteConfig{}, err
	}
	v.SetDefault("tolerance-bps", uint64(50))

	common, err := loadCommon(v)
	if err != nil {
		return QuoteConfig{}, err
	}
	return QuoteConfig{
		Common:       common,
		AssetIn:      v.GetString("asset-in"),
		AmountIn:     v.GetUint64("amount-in"),
		ToleranceBps: v.GetUint64("tolerance-bps"),
	}, nil
}

// MitigateConfig drives periodic risk evaluation.
type MitigateConfig struct {
	Common
	RPCURL       string
	Threshold    uint64
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Risk         Risk
}

func LoadMitigate(cfgFile string, flags *pflag.FlagSet) (MitigateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return MitigateConfig{}, err
	}
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	common, err := loadCommon(v)
	if err != nil {
		return MitigateConfig{}, err
	}
	riskCfg := loadRisk(v)
	cfg := MitigateConfig{
		Common:       common,
		RPCURL:       v.GetString("rpc"),
		Threshold:    v.GetUint64("threshold"),
		Interval:     v.GetDuration("interval"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Risk:         riskCfg,
	}
	if cfg.Interval < 0 {
		return MitigateConfig{}, fmt.Errorf("interval must not be negative")
	}
	return cfg, nil
}
