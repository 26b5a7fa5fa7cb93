package custody

import "sync"

// Roles records who may move or mint funds besides the account owner.
type Roles struct {
	mu              sync.RWMutex
	delegates       map[string]map[string]struct{}
	mintAuthorities map[string]string
}

func NewRoles() *Roles {
	return &Roles{
		delegates:       make(map[string]map[string]struct{}),
		mintAuthorities: make(map[string]string),
	}
}

// Delegate lets authority move funds out of owner's accounts.
func (r *Roles) Delegate(owner, authority string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.delegates[owner]
	if !ok {
		set = make(map[string]struct{})
		r.delegates[owner] = set
	}
	set[authority] = struct{}{}
}

// SetMintAuthority registers the only party allowed to mint asset.
func (r *Roles) SetMintAuthority(asset, authority string) {
	r.mu.Lock()
	r.mintAuthorities[asset] = authority
	r.mu.Unlock()
}

// CanMove reports whether party may debit accounts held by owner.
func (r *Roles) CanMove(owner, party string) bool {
	if party == "" {
		return false
	}
	if owner == party {
		return true
	}
	r.mu.RLock()
	_, ok := r.delegates[owner][party]
	r.mu.RUnlock()
	return ok
}

func (r *Roles) CanMint(asset, party string) bool {
	if party == "" {
		return false
	}
	r.mu.RLock()
	registered, ok := r.mintAuthorities[asset]
	r.mu.RUnlock()
	return ok && registered == party
}
