/*

The native-asset ledger. Components and external actors hold native balances
here; every payable operation in the core is a Transfer on this ledger, so a
transfer that would overdraw an account fails atomically and the enclosing
operation aborts with it.

*/

package native

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/types"
)

var (
	// ErrInsufficientFunds rejects transfers exceeding the sender balance.
	ErrInsufficientFunds = errors.New("insufficient native funds")
	// ErrNegativeAmount rejects negative or nil amounts.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrZeroAddress rejects the null principal as a party.
	ErrZeroAddress = errors.New("zero address")
)

// Ledger maps accounts to native balances in 18-decimal base units.
// Safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[types.Address]sdkmath.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[types.Address]sdkmath.Int)}
}

// BalanceOf returns the balance of account, zero when unknown.
func (l *Ledger) BalanceOf(account types.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal, ok := l.balances[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}

// Credit adds amount to account out of thin air. Used to fund test and
// bootstrap accounts; production deposits arrive via Transfer.
func (l *Ledger) Credit(account types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if account.IsZero() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = l.balance(account).Add(amount)
	return nil
}

// Transfer moves amount from one account to another. Zero amounts succeed
// without effect.
func (l *Ledger) Transfer(from, to types.Address, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(from)
	if bal.LT(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, bal, amount)
	}
	l.balances[from] = bal.Sub(amount)
	l.balances[to] = l.balance(to).Add(amount)
	return nil
}

// TotalIssued returns the sum of all balances.
func (l *Ledger) TotalIssued() sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := sdkmath.ZeroInt()
	for _, bal := range l.balances {
		total = total.Add(bal)
	}
	return total
}

func (l *Ledger) balance(account types.Address) sdkmath.Int {
	bal, ok := l.balances[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
