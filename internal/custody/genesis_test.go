package custody

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/pool"
)

func TestSeedSumsDuplicates(t *testing.T) {
	l := NewLedger()
	err := l.Seed([]GenesisBalance{
		{Owner: "alice", Asset: "USDC", Amount: 10},
		{Owner: "alice", Asset: "USDC", Amount: 5},
		{Owner: "pool-1", Asset: "ETH", Amount: 7},
	})
	require.NoError(t, err)
	require.Equal(t, map[domain.Account]uint64{
		{Owner: "alice", Asset: "USDC"}: 15,
		{Owner: "pool-1", Asset: "ETH"}: 7,
	}, l.Snapshot())
}

func TestSeedRejectsBadEntries(t *testing.T) {
	_, err := Balances([]GenesisBalance{{Owner: "", Asset: "USDC", Amount: 1}})
	require.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = Balances([]GenesisBalance{
		{Owner: "a", Asset: "X", Amount: math.MaxUint64},
		{Owner: "a", Asset: "X", Amount: 1},
	})
	require.ErrorIs(t, err, domain.ErrOverflow)
}

func TestGrantPoolRoles(t *testing.T) {
	p := pool.Params{
		PoolID:          "pool-1",
		RewardAsset:     "RWD",
		PoolAuthority:   "pool-admin",
		RewardAuthority: "minter",
		FeeVault:        "fees",
		StakeVault:      "vault",
	}
	roles := NewRoles()
	roles.GrantPool(p)

	for _, owner := range []string{"pool-1", "fees", "vault"} {
		require.True(t, roles.CanMove(owner, "pool-admin"), owner)
	}
	require.False(t, roles.CanMove("alice", "pool-admin"))
	require.True(t, roles.CanMint("RWD", "minter"))
	require.False(t, roles.CanMint("RWD", "pool-admin"))

	l := NewLedgerWithRoles(roles)
	require.NoError(t, l.Credit(domain.Account{Owner: "fees", Asset: "USDC"}, 3))
	require.NoError(t, l.Transfer(context.Background(),
		domain.Account{Owner: "fees", Asset: "USDC"},
		domain.Account{Owner: "treasury", Asset: "USDC"},
		"pool-admin", 3))
}
