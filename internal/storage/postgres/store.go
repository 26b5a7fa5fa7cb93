package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"liquidityflow/internal/events"
	"liquidityflow/internal/pool"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pool state, events and replay
// progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables used by this package if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) LoadConfig(ctx context.Context, poolID string) (pool.Config, bool, error) {
	return loadConfig(ctx, s.pool, poolID, false)
}

func (s *Store) SaveConfig(ctx context.Context, cfg pool.Config) error {
	return saveConfig(ctx, s.pool, cfg)
}

func (s *Store) LoadStake(ctx context.Context, poolID, participant string) (pool.StakeRecord, error) {
	return loadStake(ctx, s.pool, poolID, participant, false)
}

func (s *Store) SaveStake(ctx context.Context, poolID string, record pool.StakeRecord) error {
	return saveStake(ctx, s.pool, poolID, record)
}

func loadConfig(ctx context.Context, q querier, poolID string, forUpdate bool) (pool.Config, bool, error) {
	sql := `SELECT fee_basis_points, updated_at FROM pool_configs WHERE pool_id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	cfg := pool.Config{PoolID: poolID}
	var fee int64
	if err := q.QueryRow(ctx, sql, poolID).Scan(&fee, &cfg.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pool.Config{}, false, nil
		}
		return pool.Config{}, false, err
	}
	if fee < 0 {
		return pool.Config{}, false, fmt.Errorf("negative fee %d stored for pool %s", fee, poolID)
	}
	cfg.FeeBasisPoints = uint64(fee)
	return cfg, true, nil
}

func saveConfig(ctx context.Context, q querier, cfg pool.Config) error {
	if cfg.PoolID == "" {
		return fmt.Errorf("pool id required")
	}
	_, err := q.Exec(ctx, `
		INSERT INTO pool_configs (pool_id, fee_basis_points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pool_id) DO UPDATE
		SET fee_basis_points = EXCLUDED.fee_basis_points, updated_at = EXCLUDED.updated_at
	`, cfg.PoolID, int64(cfg.FeeBasisPoints), cfg.UpdatedAt)
	return err
}

// loadStake with forUpdate creates a zero row first so a participant's
// first stake is locked like any other.
func loadStake(ctx context.Context, q querier, poolID, participant string, forUpdate bool) (pool.StakeRecord, error) {
	sql := `SELECT staked_amount::text, updated_at FROM pool_stakes WHERE pool_id=$1 AND participant=$2`
	if forUpdate {
		if _, err := q.Exec(ctx, `
			INSERT INTO pool_stakes (pool_id, participant, staked_amount, updated_at)
			VALUES ($1, $2, 0, 'epoch')
			ON CONFLICT (pool_id, participant) DO NOTHING
		`, poolID, participant); err != nil {
			return pool.StakeRecord{}, fmt.Errorf("ensure stake row %s: %w", participant, err)
		}
		sql += ` FOR UPDATE`
	}

	rec := pool.StakeRecord{Participant: participant}
	var amount string
	var updated time.Time
	if err := q.QueryRow(ctx, sql, poolID, participant).Scan(&amount, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, nil
		}
		return pool.StakeRecord{}, err
	}
	v, err := parseAmount(amount)
	if err != nil {
		return pool.StakeRecord{}, fmt.Errorf("stake for %s: %w", participant, err)
	}
	rec.StakedAmount = v
	if v > 0 {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func saveStake(ctx context.Context, q querier, poolID string, record pool.StakeRecord) error {
	if record.Participant == "" {
		return fmt.Errorf("participant required")
	}
	_, err := q.Exec(ctx, `
		INSERT INTO pool_stakes (pool_id, participant, staked_amount, updated_at)
		VALUES ($1, $2, $3::text::numeric, $4)
		ON CONFLICT (pool_id, participant) DO UPDATE
		SET staked_amount = EXCLUDED.staked_amount, updated_at = EXCLUDED.updated_at
	`, poolID, record.Participant, formatAmount(record.StakedAmount), record.UpdatedAt)
	return err
}

// InsertEvents stores envelopes in one batch. Duplicate ids are ignored.
func (s *Store) InsertEvents(ctx context.Context, envs []events.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, env := range envs {
		id, err := uuid.Parse(env.ID)
		if err != nil {
			return fmt.Errorf("event id %q: %w", env.ID, err)
		}
		data, err := json.Marshal(env.Data)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", env.ID, err)
		}
		batch.Queue(`
			INSERT INTO pool_events (id, pool_id, event_type, occurred_at, data)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, id, env.PoolID, env.Type, env.OccurredAt, data)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range envs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the next line to replay for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var next int64
	row := s.pool.QueryRow(ctx, `SELECT next_line FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(next), true, nil
}

// SaveState upserts the next line to replay for a name.
func (s *Store) SaveState(ctx context.Context, name string, next uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, next_line, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET next_line = EXCLUDED.next_line, updated_at = now()
	`, name, int64(next))
	return err
}

// EventSink records envelopes into pool_events. Failures are logged; the
// sink never reports back into accounting.
type EventSink struct {
	Store   *Store
	Logger  *zap.Logger
	Timeout time.Duration
}

func (s *EventSink) Record(env events.Envelope) {
	if s == nil || s.Store == nil {
		return
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Store.InsertEvents(ctx, []events.Envelope{env}); err != nil && s.Logger != nil {
		s.Logger.Warn("store event", zap.String("id", env.ID), zap.String("type", env.Type), zap.Error(err))
	}
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric amount %q: %w", s, err)
	}
	return v, nil
}
