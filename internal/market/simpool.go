/*

In-memory constant-product (native, UP) pool. Serves tests and the service's
simulation mode. No swap fee: the pool lands exactly where the closed-form
engine math says it will.

*/

package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
)

var (
	// ErrSlippage rejects swaps whose output falls under minOut.
	ErrSlippage = errors.New("output below min out")
	// ErrEmptyPool rejects trades against a pool with no liquidity.
	ErrEmptyPool = errors.New("pool has no liquidity")
	// ErrNoShares rejects liquidity removal beyond the holder's shares.
	ErrNoShares = errors.New("insufficient pool shares")
	// ErrZeroAmount rejects zero or negative trade amounts.
	ErrZeroAmount = errors.New("amount must be positive")
)

// SimPool implements Pool and Router over the native ledger and the UP
// token. The pool's reserves are its own ledger/token balances.
type SimPool struct {
	addr   types.Address
	ledger *native.Ledger
	up     *token.Token

	mu          sync.RWMutex
	totalShares sdkmath.Int
	shares      map[types.Address]sdkmath.Int
}

// NewSimPool returns an empty pool holding its reserves at addr.
func NewSimPool(addr types.Address, ledger *native.Ledger, up *token.Token) *SimPool {
	return &SimPool{
		addr:        addr,
		ledger:      ledger,
		up:          up,
		totalShares: sdkmath.ZeroInt(),
		shares:      make(map[types.Address]sdkmath.Int),
	}
}

// Address returns the pool's principal.
func (p *SimPool) Address() types.Address { return p.addr }

// Reserves returns the pool balances, native side first.
func (p *SimPool) Reserves() (sdkmath.Int, sdkmath.Int, error) {
	return p.ledger.BalanceOf(p.addr), p.up.BalanceOf(p.addr), nil
}

// SwapExactIn trades amountIn against the constant-product curve:
// out = reserveOut·in / (reserveIn + in), truncating.
func (p *SimPool) SwapExactIn(caller types.Address, upIn bool, amountIn, minOut sdkmath.Int) (sdkmath.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	rNative, rUP, _ := p.Reserves()
	if !rNative.IsPositive() || !rUP.IsPositive() {
		return sdkmath.ZeroInt(), ErrEmptyPool
	}
	var reserveIn, reserveOut sdkmath.Int
	if upIn {
		reserveIn, reserveOut = rUP, rNative
	} else {
		reserveIn, reserveOut = rNative, rUP
	}
	out := reserveOut.Mul(amountIn).Quo(reserveIn.Add(amountIn))
	if !minOut.IsNil() && out.LT(minOut) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: got %s, want >= %s", ErrSlippage, out, minOut)
	}

	if upIn {
		if err := p.up.Transfer(caller, p.addr, amountIn); err != nil {
			return sdkmath.ZeroInt(), err
		}
		if err := p.ledger.Transfer(p.addr, caller, out); err != nil {
			return sdkmath.ZeroInt(), err
		}
	} else {
		if err := p.ledger.Transfer(caller, p.addr, amountIn); err != nil {
			return sdkmath.ZeroInt(), err
		}
		if err := p.up.Transfer(p.addr, caller, out); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	return out, nil
}

// AddLiquidity deposits both legs and mints shares: √(n·u) for the first
// deposit, the proportional minimum afterwards.
func (p *SimPool) AddLiquidity(caller types.Address, nativeAmount, upAmount sdkmath.Int) (sdkmath.Int, error) {
	if nativeAmount.IsNil() || upAmount.IsNil() || !nativeAmount.IsPositive() || !upAmount.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	rNative, rUP, _ := p.Reserves()
	var minted sdkmath.Int
	if p.totalShares.IsZero() {
		minted = sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(nativeAmount.Mul(upAmount).BigInt()))
	} else {
		byNative := nativeAmount.Mul(p.totalShares).Quo(rNative)
		byUP := upAmount.Mul(p.totalShares).Quo(rUP)
		minted = sdkmath.MinInt(byNative, byUP)
	}
	if !minted.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroAmount
	}

	if err := p.ledger.Transfer(caller, p.addr, nativeAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := p.up.Transfer(caller, p.addr, upAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.totalShares = p.totalShares.Add(minted)
	p.shares[caller] = p.shareOf(caller).Add(minted)
	return minted, nil
}

// RemoveLiquidity burns shares and pays out the proportional reserves.
func (p *SimPool) RemoveLiquidity(caller types.Address, burn sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if burn.IsNil() || !burn.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrZeroAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.shareOf(caller)
	if held.LT(burn) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: has %s, burning %s", ErrNoShares, held, burn)
	}
	rNative, rUP, _ := p.Reserves()
	nativeOut := rNative.Mul(burn).Quo(p.totalShares)
	upOut := rUP.Mul(burn).Quo(p.totalShares)

	p.shares[caller] = held.Sub(burn)
	p.totalShares = p.totalShares.Sub(burn)
	if err := p.ledger.Transfer(p.addr, caller, nativeOut); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := p.up.Transfer(p.addr, caller, upOut); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return nativeOut, upOut, nil
}

// SharesOf returns the account's share balance.
func (p *SimPool) SharesOf(account types.Address) sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shareOf(account)
}

// PositionValue prices the account's proportional reserves in native terms,
// valuing the UP leg at upPrice.
func (p *SimPool) PositionValue(account types.Address, upPrice sdkmath.Int) sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	held := p.shareOf(account)
	if held.IsZero() || p.totalShares.IsZero() {
		return sdkmath.ZeroInt()
	}
	rNative, rUP, _ := p.Reserves()
	nativeLeg := rNative.Mul(held).Quo(p.totalShares)
	upLeg := rUP.Mul(held).Quo(p.totalShares).Mul(upPrice).Quo(types.OneScaled)
	return nativeLeg.Add(upLeg)
}

func (p *SimPool) shareOf(account types.Address) sdkmath.Int {
	s, ok := p.shares[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return s
}
