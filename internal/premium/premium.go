/*

The public premium mint policy. A thin layer over the controller's virtual
price: buyers pay native, a percentage discount is taken off the paid value,
and UP is minted at the resulting price. Pausable, with hard bounds on the
rate.

*/

package premium

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/controller"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
)

var (
	ErrMintRateGt100 = errors.New("mint rate gt 100")
	ErrMintRateEq0   = errors.New("mint rate eq 0")
	// ErrInvalidPayableAmount rejects zero-value mints.
	ErrInvalidPayableAmount = errors.New("invalid payable amount")
	// ErrUpPrice0 rejects mints while the virtual price is undefined; the
	// system is valid but not yet bootstrapped.
	ErrUpPrice0 = errors.New("up price 0")
	// ErrZeroAddress rejects the null principal.
	ErrZeroAddress = errors.New("zero address")
	// ErrNegativeAmount rejects negative or nil amounts.
	ErrNegativeAmount = errors.New("negative amount")
)

// Minter mints UP for the public at a discount to the virtual price.
type Minter struct {
	addr   types.Address
	up     *token.Token
	ledger *native.Ledger
	roles  *access.Registry
	pause  *access.Pause
	events *types.Recorder

	mu       sync.RWMutex
	ctrl     *controller.Controller
	mintRate int64
}

// New creates a premium minter with the given rate. The minter needs the
// token's mint role granted out-of-band.
func New(addr, admin types.Address, up *token.Token, ctrl *controller.Controller, ledger *native.Ledger, mintRate int64, events *types.Recorder) (*Minter, error) {
	if err := validRate(mintRate); err != nil {
		return nil, err
	}
	roles := access.NewRegistry(admin)
	return &Minter{
		addr:     addr,
		up:       up,
		ledger:   ledger,
		roles:    roles,
		pause:    access.NewPause(roles),
		events:   events,
		ctrl:     ctrl,
		mintRate: mintRate,
	}, nil
}

// Address returns the minter's principal.
func (m *Minter) Address() types.Address { return m.addr }

// Roles exposes the minter's role registry.
func (m *Minter) Roles() *access.Registry { return m.roles }

// Paused reports the pause state.
func (m *Minter) Paused() bool { return m.pause.Paused() }

// Pause gates MintUP. Admin only.
func (m *Minter) Pause(caller types.Address) error { return m.pause.SetPaused(caller) }

// Unpause reopens MintUP. Admin only.
func (m *Minter) Unpause(caller types.Address) error { return m.pause.SetUnpaused(caller) }

// MintRate returns the discount rate in percent.
func (m *Minter) MintRate() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mintRate
}

// SetMintRate updates the discount rate within (0, 100]. Admin only.
func (m *Minter) SetMintRate(caller types.Address, rate int64) error {
	if err := m.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if err := validRate(rate); err != nil {
		return err
	}
	m.mu.Lock()
	m.mintRate = rate
	m.mu.Unlock()
	return nil
}

// Controller returns the bound controller.
func (m *Minter) Controller() *controller.Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl
}

// UpdateController repoints the controller reference. Admin only, non-zero.
func (m *Minter) UpdateController(caller types.Address, ctrl *controller.Controller) error {
	if err := m.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if ctrl == nil {
		return ErrZeroAddress
	}
	m.mu.Lock()
	m.ctrl = ctrl
	m.mu.Unlock()
	m.events.Emit(types.UpdateControllerEvent{New: ctrl.Address()})
	return nil
}

// MintUP takes the caller's native payment, forwards it into the backing and
// mints UP to the recipient at the pre-payment virtual price less the mint
// rate. The discount applies to the paid-in value:
//
//	minted = (payment − payment·rate·100/10_000) · 1e18 / virtualPrice
//
// Division truncates toward zero.
func (m *Minter) MintUP(caller, to types.Address, payment sdkmath.Int) error {
	if err := m.pause.Check(); err != nil {
		return err
	}
	if payment.IsNil() || payment.IsNegative() {
		return ErrNegativeAmount
	}
	if payment.IsZero() {
		return ErrInvalidPayableAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}

	m.mu.RLock()
	ctrl := m.ctrl
	rate := m.mintRate
	m.mu.RUnlock()

	price := ctrl.VirtualPrice()
	if price.IsZero() {
		return ErrUpPrice0
	}
	discounted := payment.Sub(payment.MulRaw(rate * 100).QuoRaw(10_000))
	minted := discounted.Mul(types.OneScaled).Quo(price)

	// Payment joins the backing before the mint so a failed mint never
	// leaves UP outstanding without its collateral.
	if err := m.ledger.Transfer(caller, ctrl.Address(), payment); err != nil {
		return err
	}
	if err := m.up.Mint(m.addr, to, minted, sdkmath.ZeroInt()); err != nil {
		return err
	}
	m.events.Emit(types.PremiumMintEvent{To: to, Minted: minted, Price: price, Paid: payment})
	return nil
}

func validRate(rate int64) error {
	if rate > 100 {
		return ErrMintRateGt100
	}
	if rate <= 0 {
		return ErrMintRateEq0
	}
	return nil
}
