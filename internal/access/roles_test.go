package access

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unifiprotocol/upcore/internal/types"
)

const (
	admin    = types.Address("admin")
	alice    = types.Address("alice")
	bob      = types.Address("bob")
	stranger = types.Address("stranger")
)

func TestNewRegistryGrantsAdminToDeployer(t *testing.T) {
	r := NewRegistry(admin)
	require.True(t, r.HasRole(RoleAdmin, admin))
	require.False(t, r.HasRole(RoleAdmin, alice))
}

func TestGrantRoleAdminOnly(t *testing.T) {
	r := NewRegistry(admin)

	require.NoError(t, r.GrantRole(admin, RoleMint, alice))
	require.True(t, r.HasRole(RoleMint, alice))

	err := r.GrantRole(stranger, RoleMint, bob)
	require.ErrorIs(t, err, ErrOnlyAdmin)
	require.False(t, r.HasRole(RoleMint, bob))
}

func TestRoleHolderCannotGrantItsOwnRole(t *testing.T) {
	r := NewRegistry(admin)
	require.NoError(t, r.GrantRole(admin, RoleRebalancer, alice))

	err := r.GrantRole(alice, RoleRebalancer, bob)
	require.ErrorIs(t, err, ErrOnlyAdmin)
}

func TestGrantRoleZeroAddress(t *testing.T) {
	r := NewRegistry(admin)
	err := r.GrantRole(admin, RoleMint, types.ZeroAddress)
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestRevokeRole(t *testing.T) {
	r := NewRegistry(admin)
	require.NoError(t, r.GrantRole(admin, RoleMonitor, alice))
	require.NoError(t, r.RevokeRole(admin, RoleMonitor, alice))
	require.False(t, r.HasRole(RoleMonitor, alice))

	// Revoking an unheld role is a no-op.
	require.NoError(t, r.RevokeRole(admin, RoleMonitor, alice))

	require.ErrorIs(t, r.RevokeRole(stranger, RoleAdmin, admin), ErrOnlyAdmin)
}

func TestRequireReturnsCallerSentinel(t *testing.T) {
	r := NewRegistry(admin)
	sentinel := ErrZeroAddress // any distinct error works as the reason

	require.NoError(t, r.GrantRole(admin, RoleDarbi, alice))
	require.NoError(t, r.Require(RoleDarbi, alice, sentinel))
	require.ErrorIs(t, r.Require(RoleDarbi, bob, sentinel), sentinel)
}

func TestPauseAdminGated(t *testing.T) {
	r := NewRegistry(admin)
	p := NewPause(r)

	require.False(t, p.Paused())
	require.NoError(t, p.Check())

	require.ErrorIs(t, p.SetPaused(stranger), ErrOnlyAdmin)
	require.NoError(t, p.SetPaused(admin))
	require.True(t, p.Paused())
	require.ErrorIs(t, p.Check(), ErrPaused)

	require.NoError(t, p.SetUnpaused(admin))
	require.NoError(t, p.Check())
}
