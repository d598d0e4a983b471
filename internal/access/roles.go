/*

Role-gated access control shared by every core component. A Registry is an
explicit capability map {role → set of principals}; the admin role is the
sole grantor and revoker of every role, including itself.

*/

package access

import (
	"errors"
	"sync"

	"github.com/unifiprotocol/upcore/internal/types"
)

// Role identifies a capability on a single component.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleMint       Role = "MINT"
	RoleRebalancer Role = "REBALANCER"
	RoleRedeemer   Role = "REDEEMER"
	RoleMonitor    Role = "MONITOR"
	RoleDarbi      Role = "DARBI"
)

var (
	// ErrOnlyAdmin rejects grant/revoke attempts from non-admin principals.
	ErrOnlyAdmin = errors.New("only admin")
	// ErrZeroAddress rejects the null principal.
	ErrZeroAddress = errors.New("zero address")
)

// Registry holds the role assignments of one component. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	roles map[Role]map[types.Address]struct{}
}

// NewRegistry returns a registry with admin granted to the deployer.
func NewRegistry(admin types.Address) *Registry {
	r := &Registry{roles: make(map[Role]map[types.Address]struct{})}
	r.set(RoleAdmin, admin)
	return r
}

func (r *Registry) set(role Role, account types.Address) {
	holders, ok := r.roles[role]
	if !ok {
		holders = make(map[types.Address]struct{})
		r.roles[role] = holders
	}
	holders[account] = struct{}{}
}

// HasRole reports whether account holds role.
func (r *Registry) HasRole(role Role, account types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roles[role][account]
	return ok
}

// GrantRole assigns role to account. Only admins may grant, and a
// role-holder without admin cannot grant anything, its own role included.
func (r *Registry) GrantRole(caller types.Address, role Role, account types.Address) error {
	if account.IsZero() {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[RoleAdmin][caller]; !ok {
		return ErrOnlyAdmin
	}
	r.set(role, account)
	return nil
}

// RevokeRole removes role from account. Admin-gated like GrantRole.
// Revoking a role the account does not hold is a no-op.
func (r *Registry) RevokeRole(caller types.Address, role Role, account types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[RoleAdmin][caller]; !ok {
		return ErrOnlyAdmin
	}
	delete(r.roles[role], account)
	return nil
}

// Require returns reason when account lacks role, nil otherwise. Callers
// pass their operation-specific sentinel as reason so that every gate
// surfaces its own error.
func (r *Registry) Require(role Role, account types.Address, reason error) error {
	if !r.HasRole(role, account) {
		return reason
	}
	return nil
}
