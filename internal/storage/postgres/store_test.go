package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"liquidityflow/internal/custody"
	"liquidityflow/internal/domain"
	"liquidityflow/internal/events"
	"liquidityflow/internal/pool"
)

func TestAmountTextRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 10000, math.MaxUint64} {
		got, err := parseAmount(formatAmount(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	_, err := parseAmount("-1")
	require.Error(t, err)
	_, err = parseAmount("18446744073709551616")
	require.Error(t, err)
}

// openTestStore connects to POOLCTL_TEST_PG_DSN or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POOLCTL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POOLCTL_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	_, err = store.pool.Exec(ctx, `TRUNCATE pool_configs, pool_stakes, pool_events, custody_balances, replay_state`)
	require.NoError(t, err)
	return store
}

func TestStoreStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok, err := store.LoadConfig(ctx, "pool-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveConfig(ctx, pool.Config{PoolID: "pool-1", FeeBasisPoints: 50, UpdatedAt: now}))
	cfg, ok, err := store.LoadConfig(ctx, "pool-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(50), cfg.FeeBasisPoints)

	rec, err := store.LoadStake(ctx, "pool-1", "alice")
	require.NoError(t, err)
	require.Zero(t, rec.StakedAmount)

	require.NoError(t, store.SaveStake(ctx, "pool-1", pool.StakeRecord{Participant: "alice", StakedAmount: math.MaxUint64, UpdatedAt: now}))
	rec, err = store.LoadStake(ctx, "pool-1", "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), rec.StakedAmount)

	env := events.NewEnvelope("pool-1", events.TokensStaked{Participant: "alice", Amount: 1, TotalStaked: 1}, now)
	require.NoError(t, store.InsertEvents(ctx, []events.Envelope{env, env}))

	require.NoError(t, store.SaveState(ctx, "replay", 42))
	next, ok, err := store.LoadState(ctx, "replay")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), next)
}

func TestLedgerAtomicRollback(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	roles := custody.NewRoles()
	roles.Delegate("pool-1", "pool-admin")
	ledger := NewLedger(store, roles)

	alice := domain.Account{Owner: "alice", Asset: "USDC"}
	reserve := domain.Account{Owner: "pool-1", Asset: "USDC"}
	require.NoError(t, ledger.Credit(ctx, map[domain.Account]uint64{alice: 100, reserve: 1000}))

	boom := errors.New("boom")
	err := ledger.Atomically(ctx, func(c pool.Custody) error {
		if err := c.Transfer(ctx, alice, reserve, "alice", 60); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal)

	require.NoError(t, ledger.Transfer(ctx, reserve, alice, "pool-admin", 10))
	err = ledger.Transfer(ctx, reserve, alice, "mallory", 10)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	err = ledger.Transfer(ctx, alice, reserve, "alice", 1000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	bal, err = ledger.Balance(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(110), bal)
}

func testPoolParams() pool.Params {
	p := pool.DefaultParams()
	p.PoolID = "pool-1"
	p.AssetA = "USDC"
	p.AssetB = "ETH"
	p.ShareAsset = "LP"
	p.RewardAsset = "RWD"
	p.PoolAuthority = "pool-admin"
	p.FeeAuthority = "fee-admin"
	p.RewardAuthority = "minter"
	p.FeeVault = "fees"
	p.StakeVault = "vault"
	return p
}

func TestAtomicallyWithStateRollsBackStake(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ledger := NewLedger(store, custody.NewRoles())

	boom := errors.New("boom")
	err := ledger.AtomicallyWithState(ctx, func(_ pool.Custody, st pool.StateStore) error {
		rec, err := st.LoadStake(ctx, "pool-1", "alice")
		if err != nil {
			return err
		}
		rec.StakedAmount = 500
		if err := st.SaveStake(ctx, "pool-1", rec); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := store.LoadStake(ctx, "pool-1", "alice")
	require.NoError(t, err)
	require.Zero(t, rec.StakedAmount)
}

func TestEnginesSharingDatabase(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	params := testPoolParams()

	roles := custody.NewRoles()
	roles.GrantPool(params)
	ledger := NewLedger(store, roles)
	aliceUSDC := domain.Account{Owner: "alice", Asset: "USDC"}
	aliceShares := domain.Account{Owner: "alice", Asset: params.ShareAsset}
	require.NoError(t, ledger.Credit(ctx, map[domain.Account]uint64{
		params.ReserveAccount("USDC"): 1_000_000,
		params.ReserveAccount("ETH"):  1_000_000,
		aliceUSDC:                     100_000,
		aliceShares:                   1_000,
	}))

	first, err := pool.NewEngine(ctx, params, ledger, store)
	require.NoError(t, err)
	second, err := pool.NewEngine(ctx, params, ledger, store)
	require.NoError(t, err)

	_, err = first.AdjustFee(ctx, "fee-admin", 75)
	require.NoError(t, err)
	ev, err := second.SwapTokens(ctx, "alice", "USDC", 10_000, 0)
	require.NoError(t, err)
	require.EqualValues(t, 50, ev.FeeBasisPoints)
	require.EqualValues(t, 9_851, ev.AmountOut)

	_, err = first.StakeTokens(ctx, "alice", 300)
	require.NoError(t, err)
	st, err := second.StakeTokens(ctx, "alice", 200)
	require.NoError(t, err)
	require.EqualValues(t, 500, st.TotalStaked)

	_, err = second.StakeTokens(ctx, "alice", 600)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	rec, err := first.Stake(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 500, rec.StakedAmount)
}
