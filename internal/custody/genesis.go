package custody

import (
	"fmt"

	"liquidityflow/internal/domain"
	"liquidityflow/internal/pool"
)

// GenesisBalance seeds one account when a ledger starts empty.
type GenesisBalance struct {
	Owner  string `mapstructure:"owner" json:"owner"`
	Asset  string `mapstructure:"asset" json:"asset"`
	Amount uint64 `mapstructure:"amount" json:"amount"`
}

// Balances folds the list into a map, summing duplicates.
func Balances(genesis []GenesisBalance) (map[domain.Account]uint64, error) {
	out := make(map[domain.Account]uint64, len(genesis))
	for i, g := range genesis {
		acct := domain.Account{Owner: g.Owner, Asset: g.Asset}
		if err := acct.Validate(); err != nil {
			return nil, fmt.Errorf("genesis entry %d: %w", i, err)
		}
		sum := out[acct] + g.Amount
		if sum < g.Amount {
			return nil, fmt.Errorf("%w: genesis balance for %s", domain.ErrOverflow, acct)
		}
		out[acct] = sum
	}
	return out, nil
}

// Seed credits every genesis balance into l.
func (l *Ledger) Seed(genesis []GenesisBalance) error {
	balances, err := Balances(genesis)
	if err != nil {
		return err
	}
	for acct, amount := range balances {
		if err := l.Credit(acct, amount); err != nil {
			return err
		}
	}
	return nil
}

// GrantPool gives the pool authority control of the reserves, the fee vault
// and the staking vault, and registers the reward mint authority.
func (r *Roles) GrantPool(p pool.Params) {
	for _, owner := range []string{p.PoolID, p.FeeVault, p.StakeVault} {
		if owner != p.PoolAuthority {
			r.Delegate(owner, p.PoolAuthority)
		}
	}
	r.SetMintAuthority(p.RewardAsset, p.RewardAuthority)
}
