package darbi

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

const bot = types.Address("bot")

type minterFixture struct {
	ledger *native.Ledger
	up     *token.Token
	ctrl   *controller.Controller
	minter *Minter
}

// newMinterFixture backs 100 UP with 250 native: virtual price 2.5.
func newMinterFixture(t *testing.T) *minterFixture {
	t.Helper()
	events := types.NewRecorder()
	ledger := native.NewLedger()
	up := token.New(tokenAddr, admin, ledger, events)
	ctrl := controller.New(ctrlAddr, admin, up, ledger, events)
	require.NoError(t, up.SetController(admin, ctrlAddr))
	require.NoError(t, up.Roles().GrantRole(admin, access.RoleMint, admin))
	require.NoError(t, up.Roles().GrantRole(admin, access.RoleMint, minterAddr))

	require.NoError(t, ledger.Credit(ctrlAddr, scaled(250)))
	require.NoError(t, up.Mint(admin, lp, scaled(100), sdkmath.ZeroInt()))

	minter := NewMinter(minterAddr, admin, up, ctrl, ledger, events)
	require.NoError(t, minter.Roles().GrantRole(admin, access.RoleDarbi, bot))
	require.NoError(t, ledger.Credit(bot, scaled(50)))
	return &minterFixture{ledger: ledger, up: up, ctrl: ctrl, minter: minter}
}

func TestMinterMintsAtVirtualPrice(t *testing.T) {
	f := newMinterFixture(t)

	// 50 native at price 2.5 buys exactly 20 UP, no premium.
	minted, err := f.minter.MintUP(bot, scaled(50))
	require.NoError(t, err)
	require.Equal(t, scaled(20), minted)
	require.Equal(t, scaled(20), f.up.BalanceOf(bot))
	require.True(t, f.ledger.BalanceOf(bot).IsZero())

	// The payment joined the backing: 300 native now backs 120 UP, so the
	// virtual price is unmoved.
	require.Equal(t, scaled(300), f.ledger.BalanceOf(ctrlAddr))
	require.Equal(t, sdkmath.NewIntWithDecimal(25, 17), f.ctrl.VirtualPrice())
}

func TestMinterRequiresDarbiRole(t *testing.T) {
	f := newMinterFixture(t)
	_, err := f.minter.MintUP(lp, scaled(1))
	require.ErrorIs(t, err, ErrOnlyDarbi)
}

func TestMinterRejectsZeroPayment(t *testing.T) {
	f := newMinterFixture(t)
	_, err := f.minter.MintUP(bot, sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrInvalidPayableAmount)
	_, err = f.minter.MintUP(bot, sdkmath.NewInt(-1))
	require.ErrorIs(t, err, ErrInvalidPayableAmount)
}

func TestMinterRejectsUndefinedPrice(t *testing.T) {
	events := types.NewRecorder()
	ledger := native.NewLedger()
	up := token.New(tokenAddr, admin, ledger, events)
	ctrl := controller.New(ctrlAddr, admin, up, ledger, events)
	minter := NewMinter(minterAddr, admin, up, ctrl, ledger, events)
	require.NoError(t, minter.Roles().GrantRole(admin, access.RoleDarbi, bot))
	require.NoError(t, ledger.Credit(bot, scaled(10)))

	// No backed supply: the price is undefined and the payment stays put.
	_, err := minter.MintUP(bot, scaled(10))
	require.ErrorIs(t, err, ErrUpPrice0)
	require.Equal(t, scaled(10), ledger.BalanceOf(bot))
}

func TestMinterUpdateController(t *testing.T) {
	f := newMinterFixture(t)

	require.ErrorIs(t, f.minter.UpdateController(bot, f.ctrl), access.ErrOnlyAdmin)
	require.ErrorIs(t, f.minter.UpdateController(admin, nil), ErrZeroAddress)

	events := types.NewRecorder()
	other := controller.New("up.controller2", admin, f.up, f.ledger, events)
	require.NoError(t, f.minter.UpdateController(admin, other))
	require.Same(t, other, f.minter.Controller())
}
