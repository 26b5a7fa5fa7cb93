package domain

import (
	"fmt"
	"strings"
)

// Account identifies a balance held by the custody collaborator: one owner's
// holding of one asset.
type Account struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

func (a Account) String() string {
	return a.Owner + "/" + a.Asset
}

// Validate checks that both owner and asset are present.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Owner) == "" || strings.TrimSpace(a.Asset) == "" {
		return fmt.Errorf("%w: account %q requires owner and asset", ErrInvalidParameter, a.String())
	}
	return nil
}

// TransferIntent is the unit of work handed to the custody collaborator. It
// lives only for the duration of one operation.
type TransferIntent struct {
	Source      Account
	Destination Account
	Authorizer  string
	Amount      uint64
}
