/*

The collateral controller. Single source of truth for the UP virtual price:
it owns the native collateral, tracks native and synthetic debt, and exposes
the borrow/repay/redeem primitives to role-holders.

Every mutating operation follows checks → effects → interactions and is
wrapped in a reentrancy guard; a failed check leaves no partial state.

*/

package controller

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
)

var (
	ErrOnlyAdmin      = errors.New("only admin")
	ErrOnlyRebalancer = errors.New("only rebalancer")
	ErrOnlyRedeemer   = errors.New("only redeemer")
	// ErrNonUPContract rejects premium mints from anything but the UP token.
	ErrNonUPContract = errors.New("non up contract")
	// ErrNotEnoughBalance rejects native borrows exceeding held collateral.
	ErrNotEnoughBalance = errors.New("not enough balance")
	// ErrUpAmountGtBorrowed rejects UP repayments above the outstanding debt.
	ErrUpAmountGtBorrowed = errors.New("up amount gt borrowed")
	// ErrNativeAmountGtBorrowed rejects native repayments above the debt.
	ErrNativeAmountGtBorrowed = errors.New("native amount gt borrowed")
	// ErrAmountEq0 rejects zero-amount redemptions.
	ErrAmountEq0 = errors.New("amount eq 0")
	// ErrInvalidPayableAmount rejects zero-value premium mints.
	ErrInvalidPayableAmount = errors.New("invalid payable amount")
	// ErrMintRateGt100 / ErrMintRateEq0 bound the legacy premium rate.
	ErrMintRateGt100 = errors.New("mint rate gt 100")
	ErrMintRateEq0   = errors.New("mint rate eq 0")
	// ErrReentrantCall rejects nested invocation of a mutating operation.
	ErrReentrantCall = errors.New("reentrant call")
	// ErrNegativeAmount rejects negative or nil amounts.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrZeroAddress rejects the null principal.
	ErrZeroAddress = errors.New("zero address")
)

// Controller owns collateral and debt counters for one UP token.
type Controller struct {
	addr   types.Address
	up     *token.Token
	ledger *native.Ledger
	roles  *access.Registry
	events *types.Recorder

	busy atomic.Bool
	mu   sync.RWMutex

	nativeBorrowed sdkmath.Int
	upBorrowed     sdkmath.Int
	mintRate       int64
}

// defaultMintRate is the legacy premium rate applied by the token-forwarded
// mint path until an admin overrides it.
const defaultMintRate = 5

// New binds a controller to its UP token. The deployer holds admin; the
// controller still needs the token's mint role granted out-of-band before
// BorrowUP and MintUP can succeed.
func New(addr, admin types.Address, up *token.Token, ledger *native.Ledger, events *types.Recorder) *Controller {
	return &Controller{
		addr:           addr,
		up:             up,
		ledger:         ledger,
		roles:          access.NewRegistry(admin),
		events:         events,
		nativeBorrowed: sdkmath.ZeroInt(),
		upBorrowed:     sdkmath.ZeroInt(),
		mintRate:       defaultMintRate,
	}
}

// Address returns the controller's native-ledger account.
func (c *Controller) Address() types.Address { return c.addr }

// Roles exposes the controller's role registry.
func (c *Controller) Roles() *access.Registry { return c.roles }

// Token returns the bound UP token.
func (c *Controller) Token() *token.Token { return c.up }

// NativeBorrowed returns the outstanding native debt.
func (c *Controller) NativeBorrowed() sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nativeBorrowed
}

// UpBorrowed returns the outstanding synthetic debt.
func (c *Controller) UpBorrowed() sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upBorrowed
}

// MintRate returns the legacy premium rate in percent.
func (c *Controller) MintRate() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mintRate
}

// NativeBalance is the total backing: held native plus what is lent out.
func (c *Controller) NativeBalance() sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nativeBalance()
}

// ActualTotalSupply is the collateral-backed supply: token supply minus the
// synthetic debt minted against future backing.
func (c *Controller) ActualTotalSupply() sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actualTotalSupply()
}

// VirtualPrice returns the 18-decimal native backing per UP unit. Zero when
// the backed supply is zero; callers must treat zero as "undefined", never
// as "free". Division truncates toward zero, so round-trips may lose dust.
func (c *Controller) VirtualPrice() sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.virtualPrice()
}

func (c *Controller) nativeBalance() sdkmath.Int {
	return c.ledger.BalanceOf(c.addr).Add(c.nativeBorrowed)
}

func (c *Controller) actualTotalSupply() sdkmath.Int {
	return c.up.TotalSupply().Sub(c.upBorrowed)
}

func (c *Controller) virtualPrice() sdkmath.Int {
	supply := c.actualTotalSupply()
	if !supply.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return c.nativeBalance().Mul(types.OneScaled).Quo(supply)
}

// BorrowNative lends amount of held collateral to the recipient and books it
// as native debt. Rebalancer role required.
func (c *Controller) BorrowNative(caller types.Address, amount sdkmath.Int, to types.Address) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if err := validAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if err := c.roles.Require(access.RoleRebalancer, caller, ErrOnlyRebalancer); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.ledger.BalanceOf(c.addr)
	if amount.GT(held) {
		return fmt.Errorf("%w: held %s, requested %s", ErrNotEnoughBalance, held, amount)
	}
	if err := c.ledger.Transfer(c.addr, to, amount); err != nil {
		return err
	}
	c.nativeBorrowed = c.nativeBorrowed.Add(amount)
	c.events.Emit(types.BorrowNativeEvent{To: to, Amount: amount, TotalBorrowed: c.nativeBorrowed})
	return nil
}

// BorrowUP mints amount of UP to the recipient and books it as synthetic
// debt, leaving the virtual price unchanged. Rebalancer role required.
func (c *Controller) BorrowUP(caller types.Address, amount sdkmath.Int, to types.Address) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if err := validAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if err := c.roles.Require(access.RoleRebalancer, caller, ErrOnlyRebalancer); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.up.Mint(c.addr, to, amount, sdkmath.ZeroInt()); err != nil {
		return err
	}
	c.upBorrowed = c.upBorrowed.Add(amount)
	c.events.Emit(types.SyntheticMintEvent{To: to, Amount: amount, TotalBorrowed: c.upBorrowed})
	return nil
}

// Repay settles synthetic debt by burning upAmount from the caller (a prior
// allowance to the controller is required) and native debt with the attached
// nativePayment. Either amount may be zero. Rebalancer role required.
func (c *Controller) Repay(caller types.Address, upAmount, nativePayment sdkmath.Int) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if err := validAmount(upAmount); err != nil {
		return err
	}
	if err := validAmount(nativePayment); err != nil {
		return err
	}
	if err := c.roles.Require(access.RoleRebalancer, caller, ErrOnlyRebalancer); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if upAmount.GT(c.upBorrowed) {
		return fmt.Errorf("%w: borrowed %s, repaying %s", ErrUpAmountGtBorrowed, c.upBorrowed, upAmount)
	}
	if nativePayment.GT(c.nativeBorrowed) {
		return fmt.Errorf("%w: borrowed %s, repaying %s", ErrNativeAmountGtBorrowed, c.nativeBorrowed, nativePayment)
	}
	// Validate both legs before mutating either so the whole call stays
	// atomic: the burn cannot fail after the native transfer commits.
	if c.up.BalanceOf(caller).LT(upAmount) {
		return fmt.Errorf("repay: %w", token.ErrInsufficientBalance)
	}
	if c.up.Allowance(caller, c.addr).LT(upAmount) {
		return fmt.Errorf("repay: %w", token.ErrInsufficientAllowance)
	}
	if err := c.ledger.Transfer(caller, c.addr, nativePayment); err != nil {
		return err
	}
	if !upAmount.IsZero() {
		if err := c.up.BurnFrom(c.addr, caller, upAmount); err != nil {
			return err
		}
	}
	c.nativeBorrowed = c.nativeBorrowed.Sub(nativePayment)
	c.upBorrowed = c.upBorrowed.Sub(upAmount)
	c.events.Emit(types.RepayEvent{NativeRepaid: nativePayment, UpRepaid: upAmount})
	return nil
}

// Redeem burns upAmount from the caller and pays out its backing at the
// current virtual price. Redeemer role required.
func (c *Controller) Redeem(caller types.Address, upAmount sdkmath.Int) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if err := c.roles.Require(access.RoleRedeemer, caller, ErrOnlyRedeemer); err != nil {
		return err
	}
	if err := validAmount(upAmount); err != nil {
		return err
	}
	if upAmount.IsZero() {
		return ErrAmountEq0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Price is read before the burn shrinks the supply.
	payout := upAmount.Mul(c.virtualPrice()).Quo(types.OneScaled)
	held := c.ledger.BalanceOf(c.addr)
	if payout.GT(held) {
		return fmt.Errorf("%w: held %s, payout %s", ErrNotEnoughBalance, held, payout)
	}
	if err := c.up.BurnFrom(c.addr, caller, upAmount); err != nil {
		return err
	}
	if err := c.ledger.Transfer(c.addr, caller, payout); err != nil {
		return err
	}
	c.events.Emit(types.RedeemEvent{Burned: upAmount, NativePaid: payout})
	return nil
}

// MintUP is the legacy premium path forwarded by the UP token itself: only
// the token may call it. The payment joins the backing and UP is minted at
// the pre-payment virtual price less the mint rate. A zero virtual price
// mints nothing and still succeeds (bootstrap case).
func (c *Controller) MintUP(caller, to types.Address, payment sdkmath.Int) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if caller != c.up.Address() {
		return ErrNonUPContract
	}
	if err := validAmount(payment); err != nil {
		return err
	}
	if payment.IsZero() {
		return ErrInvalidPayableAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	price := c.virtualPrice()
	if err := c.ledger.Transfer(caller, c.addr, payment); err != nil {
		return err
	}
	if price.IsZero() {
		return nil
	}
	discounted := payment.Sub(payment.MulRaw(c.mintRate * 100).QuoRaw(10_000))
	minted := discounted.Mul(types.OneScaled).Quo(price)
	if err := c.up.Mint(c.addr, to, minted, sdkmath.ZeroInt()); err != nil {
		return err
	}
	c.events.Emit(types.PremiumMintEvent{To: to, Minted: minted, Price: price, Paid: payment})
	return nil
}

// SetMintRate bounds-checks and updates the legacy premium rate. Admin only.
func (c *Controller) SetMintRate(caller types.Address, rate int64) error {
	if err := c.roles.Require(access.RoleAdmin, caller, ErrOnlyAdmin); err != nil {
		return err
	}
	if rate > 100 {
		return ErrMintRateGt100
	}
	if rate <= 0 {
		return ErrMintRateEq0
	}
	c.mu.Lock()
	c.mintRate = rate
	c.mu.Unlock()
	return nil
}

// WithdrawFunds sweeps all held native collateral to the recipient. Admin
// only.
func (c *Controller) WithdrawFunds(caller, to types.Address) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if err := c.roles.Require(access.RoleAdmin, caller, ErrOnlyAdmin); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.ledger.BalanceOf(c.addr)
	if held.IsZero() {
		return nil
	}
	return c.ledger.Transfer(c.addr, to, held)
}

// WithdrawFundsToken sweeps any UP held by the controller itself to the
// recipient. Admin only.
func (c *Controller) WithdrawFundsToken(caller, to types.Address) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.exit()
	if err := c.roles.Require(access.RoleAdmin, caller, ErrOnlyAdmin); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	held := c.up.BalanceOf(c.addr)
	if held.IsZero() {
		return nil
	}
	return c.up.Transfer(c.addr, to, held)
}

func (c *Controller) enter() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (c *Controller) exit() {
	c.busy.Store(false)
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
