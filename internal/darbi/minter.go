/*

Darbi, the arbitrage bot side of the core: a dedicated mint module that
issues UP at the exact virtual price (no premium), and the engine that uses
it to push the market price back to the controller's fair price.

*/

package darbi

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
	// ErrOnlyDarbi rejects mints from principals without the darbi role.
	ErrOnlyDarbi = errors.New("only darbi")
	// ErrInvalidPayableAmount rejects zero-value mints.
	ErrInvalidPayableAmount = errors.New("invalid payable amount")
	// ErrUpPrice0 rejects mints while the virtual price is undefined.
	ErrUpPrice0 = errors.New("up price 0")
	// ErrZeroAddress rejects the null principal.
	ErrZeroAddress = errors.New("zero address")
)

// Minter issues UP to the arbitrage engine at the unmodified virtual price.
// It needs the token's mint role granted out-of-band.
type Minter struct {
	addr   types.Address
	up     *token.Token
	ledger *native.Ledger
	roles  *access.Registry
	events *types.Recorder

	mu   sync.RWMutex
	ctrl *controller.Controller
}

// NewMinter creates the darbi mint module bound to a controller.
func NewMinter(addr, admin types.Address, up *token.Token, ctrl *controller.Controller, ledger *native.Ledger, events *types.Recorder) *Minter {
	return &Minter{
		addr:   addr,
		up:     up,
		ledger: ledger,
		roles:  access.NewRegistry(admin),
		events: events,
		ctrl:   ctrl,
	}
}

// Address returns the minter's principal.
func (m *Minter) Address() types.Address { return m.addr }

// Roles exposes the minter's role registry.
func (m *Minter) Roles() *access.Registry { return m.roles }

// Controller returns the bound controller.
func (m *Minter) Controller() *controller.Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl
}

// UpdateController repoints the controller reference. Admin only, non-nil.
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

// MintUP forwards the caller's native payment into the backing and mints
// payment·1e18/virtualPrice of UP back to the caller. Darbi role required.
func (m *Minter) MintUP(caller types.Address, payment sdkmath.Int) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if err := m.roles.Require(access.RoleDarbi, caller, ErrOnlyDarbi); err != nil {
		return zero, err
	}
	if payment.IsNil() || payment.IsNegative() || payment.IsZero() {
		return zero, ErrInvalidPayableAmount
	}

	m.mu.RLock()
	ctrl := m.ctrl
	m.mu.RUnlock()

	price := ctrl.VirtualPrice()
	if price.IsZero() {
		return zero, ErrUpPrice0
	}
	minted := payment.Mul(types.OneScaled).Quo(price)
	if err := m.ledger.Transfer(caller, ctrl.Address(), payment); err != nil {
		return zero, err
	}
	if err := m.up.Mint(m.addr, caller, minted, zero); err != nil {
		return zero, err
	}
	m.events.Emit(types.DarbiMintEvent{To: caller, Minted: minted, Price: price, Paid: payment})
	return minted, nil
}
