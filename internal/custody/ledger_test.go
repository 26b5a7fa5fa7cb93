package custody

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/pool"
)

var (
	aliceUSD = domain.Account{Owner: "alice", Asset: "USD"}
	bobUSD   = domain.Account{Owner: "bob", Asset: "USD"}
)

func TestLedgerTransferChecksAuthorityAndBalance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Credit(aliceUSD, 100))

	err := l.Transfer(ctx, aliceUSD, bobUSD, "bob", 10)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	err = l.Transfer(ctx, aliceUSD, bobUSD, "alice", 101)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, l.Transfer(ctx, aliceUSD, bobUSD, "alice", 40))
	bal, err := l.Balance(ctx, bobUSD)
	require.NoError(t, err)
	require.EqualValues(t, 40, bal)

	l.Delegate("bob", "operator")
	require.NoError(t, l.Transfer(ctx, bobUSD, aliceUSD, "operator", 40))
	require.Equal(t, map[domain.Account]uint64{aliceUSD: 100}, l.Snapshot())
}

func TestLedgerMintRequiresAuthority(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.SetMintAuthority("RWD", "minter")

	reward := domain.Account{Owner: "alice", Asset: "RWD"}
	require.ErrorIs(t, l.Mint(ctx, "alice", reward, 5), domain.ErrUnauthorized)
	require.NoError(t, l.Mint(ctx, "minter", reward, 5))

	bal, err := l.Balance(ctx, reward)
	require.NoError(t, err)
	require.EqualValues(t, 5, bal)
}

func TestLedgerAtomicallyRollsBack(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Credit(aliceUSD, 100))

	boom := errors.New("boom")
	err := l.Atomically(ctx, func(c pool.Custody) error {
		require.NoError(t, c.Transfer(ctx, aliceUSD, bobUSD, "alice", 60))
		bal, err := c.Balance(ctx, bobUSD)
		require.NoError(t, err)
		require.EqualValues(t, 60, bal)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, map[domain.Account]uint64{aliceUSD: 100}, l.Snapshot())
}
