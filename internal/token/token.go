/*

UP, the synthetic token. A fixed 18-decimal fungible ledger with a role-gated
mint/burn capability and a controller pointer used to forward native funds
received alongside mints.

*/

package token

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/types"
)

var (
	// ErrOnlyMint rejects mint/burn calls from principals without the mint role.
	ErrOnlyMint = errors.New("only mint")
	// ErrInsufficientBalance rejects transfers and burns exceeding the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance rejects spends exceeding the approval.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrNoController rejects fund forwarding while no controller is set.
	ErrNoController = errors.New("controller not set")
	// ErrZeroAddress rejects the null principal.
	ErrZeroAddress = errors.New("zero address")
	// ErrNegativeAmount rejects negative or nil amounts.
	ErrNegativeAmount = errors.New("negative amount")
)

// Token is the UP supply ledger. Safe for concurrent use.
type Token struct {
	mu sync.RWMutex

	addr       types.Address
	ledger     *native.Ledger
	roles      *access.Registry
	events     *types.Recorder
	controller types.Address

	totalSupply sdkmath.Int
	balances    map[types.Address]sdkmath.Int
	allowances  map[types.Address]map[types.Address]sdkmath.Int
}

// New creates the token with zero supply and admin held by the deployer.
// addr is the token's own account on the native ledger.
func New(addr, admin types.Address, ledger *native.Ledger, events *types.Recorder) *Token {
	return &Token{
		addr:        addr,
		ledger:      ledger,
		roles:       access.NewRegistry(admin),
		events:      events,
		totalSupply: sdkmath.ZeroInt(),
		balances:    make(map[types.Address]sdkmath.Int),
		allowances:  make(map[types.Address]map[types.Address]sdkmath.Int),
	}
}

// Address returns the token's own principal.
func (t *Token) Address() types.Address { return t.addr }

// Roles exposes the token's role registry (grant/revoke/hasRole surface).
func (t *Token) Roles() *access.Registry { return t.roles }

// TotalSupply returns the current supply.
func (t *Token) TotalSupply() sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSupply
}

// BalanceOf returns the balance of account, zero when unknown.
func (t *Token) BalanceOf(account types.Address) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance(account)
}

// Allowance returns the spend approval owner has granted to spender.
func (t *Token) Allowance(owner, spender types.Address) sdkmath.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowance(owner, spender)
}

// Controller returns the configured controller address, zero when unset.
func (t *Token) Controller() types.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.controller
}

// SetController repoints the controller pointer. Admin only, non-zero.
func (t *Token) SetController(caller, controller types.Address) error {
	if err := t.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if controller.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	t.controller = controller
	t.mu.Unlock()
	t.events.Emit(types.UpdateControllerEvent{New: controller})
	return nil
}

// Mint creates amount for to. Callers must hold the mint role. A non-zero
// payment is taken from the caller's native account and forwarded to the
// controller when one is set; without a controller the funds stay on the
// token's own account awaiting WithdrawFunds.
func (t *Token) Mint(caller, to types.Address, amount, payment sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := validAmount(payment); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if err := t.roles.Require(access.RoleMint, caller, ErrOnlyMint); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !payment.IsZero() {
		dest := t.controller
		if dest.IsZero() {
			dest = t.addr
		}
		if err := t.ledger.Transfer(caller, dest, payment); err != nil {
			return fmt.Errorf("forwarding mint payment: %w", err)
		}
	}
	t.totalSupply = t.totalSupply.Add(amount)
	t.balances[to] = t.balance(to).Add(amount)
	return nil
}

// Burn destroys amount from the caller's own balance. Mint role required.
func (t *Token) Burn(caller types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := t.roles.Require(access.RoleMint, caller, ErrOnlyMint); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.burn(caller, amount)
}

// BurnFrom destroys amount from owner's balance, consuming the caller's
// allowance. Mint role required.
func (t *Token) BurnFrom(caller, owner types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := t.roles.Require(access.RoleMint, caller, ErrOnlyMint); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowance(owner, caller)
	if allowed.LT(amount) {
		return fmt.Errorf("%w: %s allows %s, needs %s", ErrInsufficientAllowance, owner, allowed, amount)
	}
	if err := t.burn(owner, amount); err != nil {
		return err
	}
	t.allowances[owner][caller] = allowed.Sub(amount)
	return nil
}

// Transfer moves amount from the caller to another account.
func (t *Token) Transfer(caller, to types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(caller, to, amount)
}

// Approve sets the caller's spend approval for spender, replacing any prior
// value.
func (t *Token) Approve(caller, spender types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if spender.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.allowances[caller]; !ok {
		t.allowances[caller] = make(map[types.Address]sdkmath.Int)
	}
	t.allowances[caller][spender] = amount
	return nil
}

// TransferFrom moves amount from owner to another account, consuming the
// caller's allowance.
func (t *Token) TransferFrom(caller, owner, to types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	allowed := t.allowance(owner, caller)
	if allowed.LT(amount) {
		return fmt.Errorf("%w: %s allows %s, needs %s", ErrInsufficientAllowance, owner, allowed, amount)
	}
	if err := t.move(owner, to, amount); err != nil {
		return err
	}
	t.allowances[owner][caller] = allowed.Sub(amount)
	return nil
}

// WithdrawFunds forwards any native balance sitting on the token's own
// account to the controller. Fails when no controller is set.
func (t *Token) WithdrawFunds(caller types.Address) error {
	t.mu.RLock()
	controller := t.controller
	t.mu.RUnlock()
	if controller.IsZero() {
		return ErrNoController
	}
	held := t.ledger.BalanceOf(t.addr)
	if held.IsZero() {
		return nil
	}
	return t.ledger.Transfer(t.addr, controller, held)
}

func (t *Token) balance(account types.Address) sdkmath.Int {
	bal, ok := t.balances[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}

func (t *Token) allowance(owner, spender types.Address) sdkmath.Int {
	allowed, ok := t.allowances[owner][spender]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return allowed
}

func (t *Token) burn(owner types.Address, amount sdkmath.Int) error {
	bal := t.balance(owner)
	if bal.LT(amount) {
		return fmt.Errorf("%w: burn %s exceeds balance %s of %s", ErrInsufficientBalance, amount, bal, owner)
	}
	t.balances[owner] = bal.Sub(amount)
	t.totalSupply = t.totalSupply.Sub(amount)
	return nil
}

func (t *Token) move(from, to types.Address, amount sdkmath.Int) error {
	bal := t.balance(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: transfer %s exceeds balance %s of %s", ErrInsufficientBalance, amount, bal, from)
	}
	t.balances[from] = bal.Sub(amount)
	t.balances[to] = t.balance(to).Add(amount)
	return nil
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
