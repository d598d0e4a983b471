package controller

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
)

const (
	tokenAddr  = types.Address("up.token")
	ctrlAddr   = types.Address("up.controller")
	admin      = types.Address("admin")
	rebalancer = types.Address("rebalancer")
	redeemer   = types.Address("redeemer")
	alice      = types.Address("alice")
)

func scaled(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(types.OneScaled)
}

type fixture struct {
	ledger *native.Ledger
	up     *token.Token
	ctrl   *Controller
	events *types.Recorder
}

// newFixture wires a token/controller pair with operational roles granted
// and no state yet: zero supply, zero backing.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := types.NewRecorder()
	ledger := native.NewLedger()
	up := token.New(tokenAddr, admin, ledger, events)
	ctrl := New(ctrlAddr, admin, up, ledger, events)

	require.NoError(t, up.SetController(admin, ctrlAddr))
	require.NoError(t, up.Roles().GrantRole(admin, access.RoleMint, ctrlAddr))
	require.NoError(t, up.Roles().GrantRole(admin, access.RoleMint, admin))
	require.NoError(t, ctrl.Roles().GrantRole(admin, access.RoleRebalancer, rebalancer))
	require.NoError(t, ctrl.Roles().GrantRole(admin, access.RoleRedeemer, redeemer))
	return &fixture{ledger: ledger, up: up, ctrl: ctrl, events: events}
}

// seed gives the controller native backing and mints supply to holder.
func (f *fixture) seed(t *testing.T, backing, supply sdkmath.Int, holder types.Address) {
	t.Helper()
	require.NoError(t, f.ledger.Credit(ctrlAddr, backing))
	require.NoError(t, f.up.Mint(admin, holder, supply, sdkmath.ZeroInt()))
}

func TestVirtualPriceBasic(t *testing.T) {
	f := newFixture(t)

	// Undefined while nothing is backed.
	require.True(t, f.ctrl.VirtualPrice().IsZero())

	// 5 native backing 2 UP prices each unit at 2.5.
	f.seed(t, scaled(5), scaled(2), alice)
	want, ok := sdkmath.NewIntFromString("2500000000000000000")
	require.True(t, ok)
	require.Equal(t, want, f.ctrl.VirtualPrice())
}

func TestVirtualPriceExcludesBorrowedUP(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)
	before := f.ctrl.VirtualPrice()

	// Synthetic debt does not dilute the price.
	require.NoError(t, f.ctrl.BorrowUP(rebalancer, scaled(3), alice))
	require.Equal(t, before, f.ctrl.VirtualPrice())
	require.Equal(t, scaled(2), f.ctrl.ActualTotalSupply())
	require.Equal(t, scaled(5), f.up.TotalSupply())
}

func TestVirtualPriceCountsLentNative(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)
	before := f.ctrl.VirtualPrice()

	require.NoError(t, f.ctrl.BorrowNative(rebalancer, scaled(3), alice))
	require.Equal(t, scaled(3), f.ctrl.NativeBorrowed())
	require.Equal(t, scaled(5), f.ctrl.NativeBalance())
	require.Equal(t, before, f.ctrl.VirtualPrice())
}

func TestBorrowNativeBounds(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)

	err := f.ctrl.BorrowNative(alice, scaled(1), alice)
	require.ErrorIs(t, err, ErrOnlyRebalancer)

	err = f.ctrl.BorrowNative(rebalancer, scaled(6), alice)
	require.ErrorIs(t, err, ErrNotEnoughBalance)
	require.True(t, f.ctrl.NativeBorrowed().IsZero())

	err = f.ctrl.BorrowNative(rebalancer, scaled(1), types.ZeroAddress)
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestBorrowRepayRequireRebalancer(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)

	err := f.ctrl.BorrowUP(alice, scaled(1), alice)
	require.ErrorIs(t, err, ErrOnlyRebalancer)
	require.True(t, f.ctrl.UpBorrowed().IsZero())

	err = f.ctrl.Repay(alice, sdkmath.ZeroInt(), scaled(1))
	require.ErrorIs(t, err, ErrOnlyRebalancer)
}

func TestBorrowRepayRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(10), scaled(4), alice)
	priceBefore := f.ctrl.VirtualPrice()

	require.NoError(t, f.ctrl.BorrowNative(rebalancer, scaled(4), rebalancer))
	require.NoError(t, f.ctrl.BorrowUP(rebalancer, scaled(2), rebalancer))

	require.NoError(t, f.up.Approve(rebalancer, ctrlAddr, scaled(2)))
	require.NoError(t, f.ctrl.Repay(rebalancer, scaled(2), scaled(4)))

	require.True(t, f.ctrl.NativeBorrowed().IsZero())
	require.True(t, f.ctrl.UpBorrowed().IsZero())
	require.Equal(t, priceBefore, f.ctrl.VirtualPrice())
	require.Equal(t, scaled(4), f.up.TotalSupply())
}

func TestRepayOverpaymentRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(10), scaled(4), alice)
	require.NoError(t, f.ctrl.BorrowNative(rebalancer, scaled(2), rebalancer))
	require.NoError(t, f.ctrl.BorrowUP(rebalancer, scaled(1), rebalancer))

	err := f.ctrl.Repay(rebalancer, scaled(2), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrUpAmountGtBorrowed)

	err = f.ctrl.Repay(rebalancer, sdkmath.ZeroInt(), scaled(3))
	require.ErrorIs(t, err, ErrNativeAmountGtBorrowed)

	// Debt untouched by the failed attempts.
	require.Equal(t, scaled(2), f.ctrl.NativeBorrowed())
	require.Equal(t, scaled(1), f.ctrl.UpBorrowed())
}

func TestRepayValidatesBeforeMoving(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(10), scaled(4), alice)
	require.NoError(t, f.ctrl.BorrowNative(rebalancer, scaled(2), rebalancer))
	require.NoError(t, f.ctrl.BorrowUP(rebalancer, scaled(1), rebalancer))

	// Missing allowance: the native leg must not move either.
	before := f.ledger.BalanceOf(rebalancer)
	err := f.ctrl.Repay(rebalancer, scaled(1), scaled(2))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.Equal(t, before, f.ledger.BalanceOf(rebalancer))
	require.Equal(t, scaled(2), f.ctrl.NativeBorrowed())
}

func TestRedeemPaysBackingAtPrice(t *testing.T) {
	f := newFixture(t)
	// Price 2.5: redeeming 2 UP pays out 5 native.
	f.seed(t, scaled(5), scaled(2), redeemer)

	require.NoError(t, f.up.Approve(redeemer, ctrlAddr, scaled(2)))
	require.NoError(t, f.ctrl.Redeem(redeemer, scaled(2)))

	require.Equal(t, scaled(5), f.ledger.BalanceOf(redeemer))
	require.True(t, f.up.TotalSupply().IsZero())
	require.True(t, f.ledger.BalanceOf(ctrlAddr).IsZero())
}

func TestRedeemGuards(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)

	require.ErrorIs(t, f.ctrl.Redeem(alice, scaled(1)), ErrOnlyRedeemer)
	require.ErrorIs(t, f.ctrl.Redeem(redeemer, sdkmath.ZeroInt()), ErrAmountEq0)
}

func TestRedeemRoundTripLosesAtMostDust(t *testing.T) {
	f := newFixture(t)
	// Deliberately non-divisible backing so the price truncates.
	f.seed(t, sdkmath.NewInt(1_000_000_000_000_000_007), scaled(3), redeemer)

	require.NoError(t, f.up.Approve(redeemer, ctrlAddr, scaled(3)))
	require.NoError(t, f.ctrl.Redeem(redeemer, scaled(3)))

	// Truncating division strands at most a few base units on the
	// controller, never the other way around.
	dust := f.ledger.BalanceOf(ctrlAddr)
	require.False(t, dust.IsNegative())
	require.True(t, dust.LT(sdkmath.NewInt(10)))
}

func TestMintUPTokenOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)

	err := f.ctrl.MintUP(alice, alice, scaled(1))
	require.ErrorIs(t, err, ErrNonUPContract)

	err = f.ctrl.MintUP(tokenAddr, alice, sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrInvalidPayableAmount)
}

func TestMintUPDiscountsPaidValue(t *testing.T) {
	f := newFixture(t)
	// Price 2.5, rate 5%: paying 100 mints (100 − 5)/2.5 = 38.
	f.seed(t, scaled(5), scaled(2), alice)
	require.NoError(t, f.ledger.Credit(tokenAddr, scaled(100)))

	require.NoError(t, f.ctrl.MintUP(tokenAddr, alice, scaled(100)))
	require.Equal(t, scaled(2).Add(scaled(38)), f.up.TotalSupply())
	require.Equal(t, scaled(38), f.up.BalanceOf(alice))
	require.Equal(t, scaled(105), f.ledger.BalanceOf(ctrlAddr))
}

func TestMintUPZeroPriceKeepsPayment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Credit(tokenAddr, scaled(10)))

	// No backed supply: the payment joins the backing, nothing mints.
	require.NoError(t, f.ctrl.MintUP(tokenAddr, alice, scaled(10)))
	require.True(t, f.up.TotalSupply().IsZero())
	require.Equal(t, scaled(10), f.ledger.BalanceOf(ctrlAddr))
}

func TestSetMintRateBounds(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.ctrl.SetMintRate(alice, 10), ErrOnlyAdmin)
	require.ErrorIs(t, f.ctrl.SetMintRate(admin, 101), ErrMintRateGt100)
	require.ErrorIs(t, f.ctrl.SetMintRate(admin, 0), ErrMintRateEq0)
	require.ErrorIs(t, f.ctrl.SetMintRate(admin, -3), ErrMintRateEq0)

	require.NoError(t, f.ctrl.SetMintRate(admin, 100))
	require.EqualValues(t, 100, f.ctrl.MintRate())
}

func TestWithdrawFundsSweeps(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), alice)

	require.ErrorIs(t, f.ctrl.WithdrawFunds(alice, alice), ErrOnlyAdmin)
	require.NoError(t, f.ctrl.WithdrawFunds(admin, admin))
	require.Equal(t, scaled(5), f.ledger.BalanceOf(admin))

	// Repeat sweep of an empty account is a no-op.
	require.NoError(t, f.ctrl.WithdrawFunds(admin, admin))
}

func TestWithdrawFundsTokenSweeps(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(5), scaled(2), ctrlAddr)

	require.NoError(t, f.ctrl.WithdrawFundsToken(admin, alice))
	require.Equal(t, scaled(2), f.up.BalanceOf(alice))
	require.True(t, f.up.BalanceOf(ctrlAddr).IsZero())
}

func TestBorrowEventsCarryCumulativeDebt(t *testing.T) {
	f := newFixture(t)
	f.seed(t, scaled(10), scaled(4), alice)

	require.NoError(t, f.ctrl.BorrowNative(rebalancer, scaled(2), rebalancer))
	require.NoError(t, f.ctrl.BorrowNative(rebalancer, scaled(3), rebalancer))

	events := f.events.EventsNamed(types.BorrowNativeEvent{}.EventName())
	require.Len(t, events, 2)
	last, ok := events[1].(types.BorrowNativeEvent)
	require.True(t, ok)
	require.Equal(t, scaled(3), last.Amount)
	require.Equal(t, scaled(5), last.TotalBorrowed)
}
