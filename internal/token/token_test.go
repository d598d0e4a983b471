package token

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/types"
)

const (
	tokenAddr = types.Address("up.token")
	ctrlAddr  = types.Address("up.controller")
	admin     = types.Address("admin")
	minter    = types.Address("minter")
	alice     = types.Address("alice")
	bob       = types.Address("bob")
)

func newToken(t *testing.T) (*Token, *native.Ledger) {
	t.Helper()
	ledger := native.NewLedger()
	tok := New(tokenAddr, admin, ledger, types.NewRecorder())
	require.NoError(t, tok.Roles().GrantRole(admin, access.RoleMint, minter))
	return tok, ledger
}

func TestMintRequiresRole(t *testing.T) {
	tok, _ := newToken(t)

	err := tok.Mint(alice, alice, sdkmath.NewInt(10), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrOnlyMint)

	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(10), sdkmath.ZeroInt()))
	require.Equal(t, sdkmath.NewInt(10), tok.BalanceOf(alice))
	require.Equal(t, sdkmath.NewInt(10), tok.TotalSupply())
}

func TestMintForwardsPaymentToController(t *testing.T) {
	tok, ledger := newToken(t)
	require.NoError(t, ledger.Credit(minter, sdkmath.NewInt(100)))

	// Without a controller the payment stays on the token account.
	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(1), sdkmath.NewInt(30)))
	require.Equal(t, sdkmath.NewInt(30), ledger.BalanceOf(tokenAddr))

	require.NoError(t, tok.SetController(admin, ctrlAddr))
	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(1), sdkmath.NewInt(70)))
	require.Equal(t, sdkmath.NewInt(70), ledger.BalanceOf(ctrlAddr))
}

func TestSetControllerAdminOnly(t *testing.T) {
	tok, _ := newToken(t)

	require.ErrorIs(t, tok.SetController(alice, ctrlAddr), access.ErrOnlyAdmin)
	require.ErrorIs(t, tok.SetController(admin, types.ZeroAddress), ErrZeroAddress)
	require.NoError(t, tok.SetController(admin, ctrlAddr))
}

func TestTransferAndSupplyConservation(t *testing.T) {
	tok, _ := newToken(t)
	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(100), sdkmath.ZeroInt()))

	require.NoError(t, tok.Transfer(alice, bob, sdkmath.NewInt(35)))
	require.Equal(t, sdkmath.NewInt(65), tok.BalanceOf(alice))
	require.Equal(t, sdkmath.NewInt(35), tok.BalanceOf(bob))
	require.Equal(t, sdkmath.NewInt(100), tok.TotalSupply())

	err := tok.Transfer(alice, bob, sdkmath.NewInt(66))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, sdkmath.NewInt(65), tok.BalanceOf(alice))
}

func TestApproveTransferFrom(t *testing.T) {
	tok, _ := newToken(t)
	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(50), sdkmath.ZeroInt()))
	require.NoError(t, tok.Approve(alice, bob, sdkmath.NewInt(20)))
	require.Equal(t, sdkmath.NewInt(20), tok.Allowance(alice, bob))

	require.NoError(t, tok.TransferFrom(bob, alice, bob, sdkmath.NewInt(15)))
	require.Equal(t, sdkmath.NewInt(5), tok.Allowance(alice, bob))

	err := tok.TransferFrom(bob, alice, bob, sdkmath.NewInt(6))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestBurnFromConsumesAllowance(t *testing.T) {
	tok, _ := newToken(t)
	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(50), sdkmath.ZeroInt()))

	// No allowance yet.
	err := tok.BurnFrom(minter, alice, sdkmath.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, tok.Approve(alice, minter, sdkmath.NewInt(10)))
	require.NoError(t, tok.BurnFrom(minter, alice, sdkmath.NewInt(10)))
	require.Equal(t, sdkmath.NewInt(40), tok.BalanceOf(alice))
	require.Equal(t, sdkmath.NewInt(40), tok.TotalSupply())
	require.True(t, tok.Allowance(alice, minter).IsZero())
}

func TestBurnRequiresRole(t *testing.T) {
	tok, _ := newToken(t)
	require.NoError(t, tok.Mint(minter, minter, sdkmath.NewInt(5), sdkmath.ZeroInt()))

	require.ErrorIs(t, tok.Burn(alice, sdkmath.NewInt(1)), ErrOnlyMint)
	require.NoError(t, tok.Burn(minter, sdkmath.NewInt(5)))
	require.True(t, tok.TotalSupply().IsZero())
}

func TestWithdrawFundsForwardsRetainedNative(t *testing.T) {
	tok, ledger := newToken(t)
	require.NoError(t, ledger.Credit(minter, sdkmath.NewInt(10)))
	require.NoError(t, tok.Mint(minter, alice, sdkmath.NewInt(1), sdkmath.NewInt(10)))

	// No controller bound yet.
	require.ErrorIs(t, tok.WithdrawFunds(admin), ErrNoController)

	require.NoError(t, tok.SetController(admin, ctrlAddr))
	require.NoError(t, tok.WithdrawFunds(admin))
	require.True(t, ledger.BalanceOf(tokenAddr).IsZero())
	require.Equal(t, sdkmath.NewInt(10), ledger.BalanceOf(ctrlAddr))
}
