package pool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config is the mutable pool configuration.
type Config struct {
	PoolID         string    `json:"pool_id"`
	FeeBasisPoints uint64    `json:"fee_basis_points"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StakeRecord tracks one participant's staked pool shares.
type StakeRecord struct {
	Participant  string    `json:"participant"`
	StakedAmount uint64    `json:"staked_amount"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StateStore persists pool configuration and stake records.
type StateStore interface {
	LoadConfig(ctx context.Context, poolID string) (Config, bool, error)
	SaveConfig(ctx context.Context, cfg Config) error
	// LoadStake returns an empty record for unknown participants.
	LoadStake(ctx context.Context, poolID, participant string) (StakeRecord, error)
	SaveStake(ctx context.Context, poolID string, record StakeRecord) error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]Config
	stakes  map[string]StakeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[string]Config),
		stakes:  make(map[string]StakeRecord),
	}
}

func (s *MemoryStore) LoadConfig(_ context.Context, poolID string) (Config, bool, error) {
	s.mu.RLock()
	cfg, ok := s.configs[poolID]
	s.mu.RUnlock()
	return cfg, ok, nil
}

func (s *MemoryStore) SaveConfig(_ context.Context, cfg Config) error {
	if cfg.PoolID == "" {
		return fmt.Errorf("pool id required")
	}
	s.mu.Lock()
	s.configs[cfg.PoolID] = cfg
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadStake(_ context.Context, poolID, participant string) (StakeRecord, error) {
	s.mu.RLock()
	rec, ok := s.stakes[stakeKey(poolID, participant)]
	s.mu.RUnlock()
	if !ok {
		return StakeRecord{Participant: participant}, nil
	}
	return rec, nil
}

func (s *MemoryStore) SaveStake(_ context.Context, poolID string, record StakeRecord) error {
	if record.Participant == "" {
		return fmt.Errorf("participant required")
	}
	s.mu.Lock()
	s.stakes[stakeKey(poolID, record.Participant)] = record
	s.mu.Unlock()
	return nil
}

func stakeKey(poolID, participant string) string {
	return poolID + "|" + participant
}
