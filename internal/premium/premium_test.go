package premium

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/controller"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
)

const (
	tokenAddr   = types.Address("up.token")
	ctrlAddr    = types.Address("up.controller")
	premiumAddr = types.Address("up.premium")
	admin       = types.Address("admin")
	buyer       = types.Address("buyer")
)

func scaled(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(types.OneScaled)
}

type fixture struct {
	ledger *native.Ledger
	up     *token.Token
	ctrl   *controller.Controller
	minter *Minter
}

func newFixture(t *testing.T, rate int64) *fixture {
	t.Helper()
	events := types.NewRecorder()
	ledger := native.NewLedger()
	up := token.New(tokenAddr, admin, ledger, events)
	ctrl := controller.New(ctrlAddr, admin, up, ledger, events)
	require.NoError(t, up.SetController(admin, ctrlAddr))
	require.NoError(t, up.Roles().GrantRole(admin, access.RoleMint, premiumAddr))
	require.NoError(t, up.Roles().GrantRole(admin, access.RoleMint, admin))

	minter, err := New(premiumAddr, admin, up, ctrl, ledger, rate, events)
	require.NoError(t, err)
	return &fixture{ledger: ledger, up: up, ctrl: ctrl, minter: minter}
}

// seed establishes a 2.5 virtual price: 5 native backing 2 UP.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ledger.Credit(ctrlAddr, scaled(5)))
	require.NoError(t, f.up.Mint(admin, admin, scaled(2), sdkmath.ZeroInt()))
}

func TestNewRejectsBadRates(t *testing.T) {
	events := types.NewRecorder()
	ledger := native.NewLedger()
	up := token.New(tokenAddr, admin, ledger, events)
	ctrl := controller.New(ctrlAddr, admin, up, ledger, events)

	_, err := New(premiumAddr, admin, up, ctrl, ledger, 0, events)
	require.ErrorIs(t, err, ErrMintRateEq0)
	_, err = New(premiumAddr, admin, up, ctrl, ledger, 101, events)
	require.ErrorIs(t, err, ErrMintRateGt100)
}

func TestMintUPAtDiscount(t *testing.T) {
	f := newFixture(t, 5)
	f.seed(t)
	require.NoError(t, f.ledger.Credit(buyer, scaled(100)))

	// Rate 5%, price 2.5: 100 paid → 95 effective → 38 minted.
	require.NoError(t, f.minter.MintUP(buyer, buyer, scaled(100)))
	require.Equal(t, scaled(38), f.up.BalanceOf(buyer))
	require.True(t, f.ledger.BalanceOf(buyer).IsZero())
	require.Equal(t, scaled(105), f.ledger.BalanceOf(ctrlAddr))
}

func TestMintUPReadsPriceBeforePayment(t *testing.T) {
	f := newFixture(t, 5)
	f.seed(t)
	require.NoError(t, f.ledger.Credit(buyer, scaled(100)))
	priceBefore := f.ctrl.VirtualPrice()

	require.NoError(t, f.minter.MintUP(buyer, buyer, scaled(100)))

	// Had the payment joined the backing first, far fewer UP would have
	// minted. The post-mint price must not drop below the pre-mint one.
	require.Equal(t, scaled(38), f.up.BalanceOf(buyer))
	require.True(t, f.ctrl.VirtualPrice().GTE(priceBefore))
}

func TestMintUPRejectsZeroPayment(t *testing.T) {
	f := newFixture(t, 5)
	f.seed(t)
	require.ErrorIs(t, f.minter.MintUP(buyer, buyer, sdkmath.ZeroInt()), ErrInvalidPayableAmount)
}

func TestMintUPRejectsUndefinedPrice(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.ledger.Credit(buyer, scaled(10)))

	err := f.minter.MintUP(buyer, buyer, scaled(10))
	require.ErrorIs(t, err, ErrUpPrice0)
	// The payment never left the buyer.
	require.Equal(t, scaled(10), f.ledger.BalanceOf(buyer))
}

func TestMintUPInsufficientFunds(t *testing.T) {
	f := newFixture(t, 5)
	f.seed(t)

	err := f.minter.MintUP(buyer, buyer, scaled(1))
	require.ErrorIs(t, err, native.ErrInsufficientFunds)
	require.True(t, f.up.BalanceOf(buyer).IsZero())
}

func TestPauseBlocksMint(t *testing.T) {
	f := newFixture(t, 5)
	f.seed(t)
	require.NoError(t, f.ledger.Credit(buyer, scaled(10)))

	require.NoError(t, f.minter.Pause(admin))
	require.ErrorIs(t, f.minter.MintUP(buyer, buyer, scaled(10)), access.ErrPaused)

	require.NoError(t, f.minter.Unpause(admin))
	require.NoError(t, f.minter.MintUP(buyer, buyer, scaled(10)))
}

func TestSetMintRateBounds(t *testing.T) {
	f := newFixture(t, 5)

	require.ErrorIs(t, f.minter.SetMintRate(buyer, 10), access.ErrOnlyAdmin)
	require.ErrorIs(t, f.minter.SetMintRate(admin, 0), ErrMintRateEq0)
	require.ErrorIs(t, f.minter.SetMintRate(admin, 101), ErrMintRateGt100)

	require.NoError(t, f.minter.SetMintRate(admin, 1))
	require.EqualValues(t, 1, f.minter.MintRate())
}

func TestUpdateController(t *testing.T) {
	f := newFixture(t, 5)
	other := controller.New(types.Address("up.controller2"), admin, f.up, f.ledger, types.NewRecorder())

	require.ErrorIs(t, f.minter.UpdateController(buyer, other), access.ErrOnlyAdmin)
	require.ErrorIs(t, f.minter.UpdateController(admin, nil), ErrZeroAddress)
	require.NoError(t, f.minter.UpdateController(admin, other))
	require.Same(t, other, f.minter.Controller())
}
