package market

import (
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/types"
)

// VanillaStrategy is the null yield strategy: it holds deposits on its own
// native account and accrues nothing on its own. Anything credited to its
// account beyond the deposits shows up as rewards, which lets tests model
// external yield.
type VanillaStrategy struct {
	addr   types.Address
	ledger *native.Ledger

	mu        sync.RWMutex
	deposited sdkmath.Int
}

// NewVanillaStrategy returns an empty strategy holding funds at addr.
func NewVanillaStrategy(addr types.Address, ledger *native.Ledger) *VanillaStrategy {
	return &VanillaStrategy{addr: addr, ledger: ledger, deposited: sdkmath.ZeroInt()}
}

// Address returns the strategy's principal.
func (s *VanillaStrategy) Address() types.Address { return s.addr }

// Deposit moves amount from the depositor into the strategy.
func (s *VanillaStrategy) Deposit(from types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrZeroAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.Transfer(from, s.addr, amount); err != nil {
		return err
	}
	s.deposited = s.deposited.Add(amount)
	return nil
}

// Withdraw returns up to amount to the recipient, capped by what the
// strategy actually holds, and reports the amount moved.
func (s *VanillaStrategy) Withdraw(to types.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.ledger.BalanceOf(s.addr)
	out := sdkmath.MinInt(amount, held)
	if out.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if err := s.ledger.Transfer(s.addr, to, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if out.GTE(s.deposited) {
		s.deposited = sdkmath.ZeroInt()
	} else {
		s.deposited = s.deposited.Sub(out)
	}
	return out, nil
}

// CheckRewards reports the deposit principal and the accrual above it.
func (s *VanillaStrategy) CheckRewards() (StrategyRewards, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	held := s.ledger.BalanceOf(s.addr)
	rewards := sdkmath.ZeroInt()
	if held.GT(s.deposited) {
		rewards = held.Sub(s.deposited)
	}
	return StrategyRewards{Deposited: s.deposited, Rewards: rewards}, nil
}
