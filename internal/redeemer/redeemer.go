/*

The public exit surface, the counterpart of the premium mint: any holder can
hand in UP and receive its backing at the full virtual price, no discount.
The redeemer holds the controller's redeemer role so holders do not need it
themselves; it pulls the UP, redeems it at the controller and forwards the
native payout. Pausable.

*/

package redeemer

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
	// ErrNotEnoughUPRedeemed rejects redemptions whose payout truncates to
	// zero: the burn would happen but nothing would come back.
	ErrNotEnoughUPRedeemed = errors.New("not enough up redeemed")
	// ErrAmountEq0 rejects zero redemption amounts.
	ErrAmountEq0 = errors.New("amount eq 0")
	// ErrNegativeAmount rejects negative or nil amounts.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrZeroAddress rejects the null principal.
	ErrZeroAddress = errors.New("zero address")
)

// Redeemer lets UP holders exit at the virtual price without holding the
// controller's redeemer role themselves.
type Redeemer struct {
	addr   types.Address
	up     *token.Token
	ledger *native.Ledger
	roles  *access.Registry
	pause  *access.Pause
	events *types.Recorder

	mu   sync.RWMutex
	ctrl *controller.Controller
}

// New creates the public redeemer. It needs the controller's redeemer role
// granted out-of-band before Redeem can complete.
func New(addr, admin types.Address, up *token.Token, ctrl *controller.Controller, ledger *native.Ledger, events *types.Recorder) (*Redeemer, error) {
	if up == nil || ctrl == nil || ledger == nil {
		return nil, errors.New("redeemer dependencies cannot be nil")
	}
	if addr.IsZero() || admin.IsZero() {
		return nil, ErrZeroAddress
	}
	roles := access.NewRegistry(admin)
	return &Redeemer{
		addr:   addr,
		up:     up,
		ledger: ledger,
		roles:  roles,
		pause:  access.NewPause(roles),
		events: events,
		ctrl:   ctrl,
	}, nil
}

// Address returns the redeemer's principal.
func (r *Redeemer) Address() types.Address { return r.addr }

// Roles exposes the redeemer's role registry.
func (r *Redeemer) Roles() *access.Registry { return r.roles }

// Paused reports the pause state.
func (r *Redeemer) Paused() bool { return r.pause.Paused() }

// Pause gates Redeem. Admin only.
func (r *Redeemer) Pause(caller types.Address) error { return r.pause.SetPaused(caller) }

// Unpause reopens Redeem. Admin only.
func (r *Redeemer) Unpause(caller types.Address) error { return r.pause.SetUnpaused(caller) }

// Controller returns the bound controller.
func (r *Redeemer) Controller() *controller.Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctrl
}

// UpdateController repoints the controller reference. Admin only, non-zero.
func (r *Redeemer) UpdateController(caller types.Address, ctrl *controller.Controller) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if ctrl == nil {
		return ErrZeroAddress
	}
	r.mu.Lock()
	r.ctrl = ctrl
	r.mu.Unlock()
	r.events.Emit(types.UpdateControllerEvent{New: ctrl.Address()})
	return nil
}

// Redeem pulls upAmount from the caller (a prior allowance to the redeemer
// is required), redeems it at the controller and forwards the native payout:
//
//	payout = upAmount · virtualPrice / 1e18
//
// A payout that truncates to zero is rejected before anything moves, as is
// a redemption the controller could not cover. Returns the payout.
func (r *Redeemer) Redeem(caller types.Address, upAmount sdkmath.Int) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if err := r.pause.Check(); err != nil {
		return zero, err
	}
	if upAmount.IsNil() || upAmount.IsNegative() {
		return zero, ErrNegativeAmount
	}
	if upAmount.IsZero() {
		return zero, ErrAmountEq0
	}

	r.mu.RLock()
	ctrl := r.ctrl
	r.mu.RUnlock()

	price := ctrl.VirtualPrice()
	payout := upAmount.Mul(price).Quo(types.OneScaled)
	if payout.IsZero() {
		return zero, ErrNotEnoughUPRedeemed
	}
	// Validate the controller side before touching the caller's UP so a
	// failure cannot strand the pulled tokens here.
	if err := ctrl.Roles().Require(access.RoleRedeemer, r.addr, controller.ErrOnlyRedeemer); err != nil {
		return zero, err
	}
	if held := r.ledger.BalanceOf(ctrl.Address()); held.LT(payout) {
		return zero, controller.ErrNotEnoughBalance
	}

	if err := r.up.TransferFrom(r.addr, caller, r.addr, upAmount); err != nil {
		return zero, err
	}
	if err := r.up.Approve(r.addr, ctrl.Address(), upAmount); err != nil {
		return zero, err
	}
	if err := ctrl.Redeem(r.addr, upAmount); err != nil {
		return zero, err
	}
	if err := r.ledger.Transfer(r.addr, caller, payout); err != nil {
		return zero, err
	}
	r.events.Emit(types.PublicRedeemEvent{From: caller, Burned: upAmount, NativePaid: payout})
	return payout, nil
}

// WithdrawFunds sweeps any native balance stranded on the redeemer to the
// recipient. Admin only.
func (r *Redeemer) WithdrawFunds(caller, to types.Address) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	held := r.ledger.BalanceOf(r.addr)
	if held.IsZero() {
		return nil
	}
	return r.ledger.Transfer(r.addr, to, held)
}

// WithdrawFundsToken sweeps any UP held by the redeemer itself to the
// recipient. Admin only.
func (r *Redeemer) WithdrawFundsToken(caller, to types.Address) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	held := r.up.BalanceOf(r.addr)
	if held.IsZero() {
		return nil
	}
	return r.up.Transfer(r.addr, to, held)
}
