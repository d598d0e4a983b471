package darbi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/unifiprotocol/upcore/internal/access"
	"github.com/unifiprotocol/upcore/internal/controller"
	"github.com/unifiprotocol/upcore/internal/logger"
	"github.com/unifiprotocol/upcore/internal/market"
	"github.com/unifiprotocol/upcore/internal/native"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/types"
)

var (
	// ErrOnlyMonitor rejects arbitrage triggers from non-monitors.
	ErrOnlyMonitor = errors.New("only monitor")
	// ErrOnlyRebalancer rejects fund adjustments from non-rebalancers.
	ErrOnlyRebalancer = errors.New("only rebalancer")
	// ErrAmountEq0 rejects zero values in admin setters.
	ErrAmountEq0 = errors.New("amount eq 0")
	// ErrReentrantCall rejects nested arbitrage invocation.
	ErrReentrantCall = errors.New("reentrant call")
)

// Engine reads the pool's reserve ratio against the controller's virtual
// price and trades the difference away. It keeps a ring-fenced float
// (darbiFunds) that refunds never touch and trades never dip below.
type Engine struct {
	addr   types.Address
	pool   market.Pool
	router market.Router
	minter *Minter
	up     *token.Token
	ledger *native.Ledger
	roles  *access.Registry
	pause  *access.Pause
	events *types.Recorder
	log    zerolog.Logger

	busy atomic.Bool
	mu   sync.RWMutex

	ctrl               *controller.Controller
	arbitrageThreshold sdkmath.Int
	gasRefund          sdkmath.Int
	darbiFunds         sdkmath.Int
}

// EngineConfig collects the engine's dependencies.
type EngineConfig struct {
	Address    types.Address
	Admin      types.Address
	Pool       market.Pool
	Router     market.Router
	Controller *controller.Controller
	Minter     *Minter
	Token      *token.Token
	Ledger     *native.Ledger
	Events     *types.Recorder

	// ArbitrageThreshold is the minimum input amount worth trading; zero
	// is rejected.
	ArbitrageThreshold sdkmath.Int
	// GasRefund is rebated to the caller out of each refund sweep.
	GasRefund sdkmath.Int
	// DarbiFunds is the ring-fenced operating float.
	DarbiFunds sdkmath.Int
}

// NewEngine validates the configuration and builds the engine. The engine
// must additionally be granted the darbi role on the minter and the
// redeemer role on the controller before Arbitrage can complete both legs.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Pool == nil || cfg.Router == nil || cfg.Controller == nil || cfg.Minter == nil || cfg.Token == nil || cfg.Ledger == nil {
		return nil, errors.New("engine dependencies cannot be nil")
	}
	if cfg.Address.IsZero() || cfg.Admin.IsZero() {
		return nil, ErrZeroAddress
	}
	if cfg.ArbitrageThreshold.IsNil() || !cfg.ArbitrageThreshold.IsPositive() {
		return nil, fmt.Errorf("arbitrage threshold: %w", ErrAmountEq0)
	}
	gasRefund := cfg.GasRefund
	if gasRefund.IsNil() {
		gasRefund = sdkmath.ZeroInt()
	}
	darbiFunds := cfg.DarbiFunds
	if darbiFunds.IsNil() {
		darbiFunds = sdkmath.ZeroInt()
	}
	roles := access.NewRegistry(cfg.Admin)
	return &Engine{
		addr:               cfg.Address,
		pool:               cfg.Pool,
		router:             cfg.Router,
		minter:             cfg.Minter,
		up:                 cfg.Token,
		ledger:             cfg.Ledger,
		roles:              roles,
		pause:              access.NewPause(roles),
		events:             cfg.Events,
		log:                logger.GetForComponent("darbi_engine"),
		ctrl:               cfg.Controller,
		arbitrageThreshold: cfg.ArbitrageThreshold,
		gasRefund:          gasRefund,
		darbiFunds:         darbiFunds,
	}, nil
}

// Address returns the engine's principal.
func (e *Engine) Address() types.Address { return e.addr }

// Roles exposes the engine's role registry.
func (e *Engine) Roles() *access.Registry { return e.roles }

// Paused reports the pause state.
func (e *Engine) Paused() bool { return e.pause.Paused() }

// Pause stops Arbitrage. Admin only.
func (e *Engine) Pause(caller types.Address) error { return e.pause.SetPaused(caller) }

// Unpause resumes Arbitrage. Admin only.
func (e *Engine) Unpause(caller types.Address) error { return e.pause.SetUnpaused(caller) }

// ArbitrageThreshold returns the dust filter.
func (e *Engine) ArbitrageThreshold() sdkmath.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.arbitrageThreshold
}

// GasRefund returns the per-execution caller rebate.
func (e *Engine) GasRefund() sdkmath.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gasRefund
}

// DarbiFunds returns the ring-fenced float.
func (e *Engine) DarbiFunds() sdkmath.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.darbiFunds
}

// SetArbitrageThreshold updates the dust filter. Admin only, non-zero.
func (e *Engine) SetArbitrageThreshold(caller types.Address, threshold sdkmath.Int) error {
	if err := e.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if threshold.IsNil() || !threshold.IsPositive() {
		return ErrAmountEq0
	}
	e.mu.Lock()
	e.arbitrageThreshold = threshold
	e.mu.Unlock()
	return nil
}

// SetGasRefund updates the caller rebate. Admin only, non-zero.
func (e *Engine) SetGasRefund(caller types.Address, refund sdkmath.Int) error {
	if err := e.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if refund.IsNil() || !refund.IsPositive() {
		return ErrAmountEq0
	}
	e.mu.Lock()
	e.gasRefund = refund
	e.mu.Unlock()
	return nil
}

// SetDarbiFunds adjusts the ring-fenced float. Rebalancer role.
func (e *Engine) SetDarbiFunds(caller types.Address, funds sdkmath.Int) error {
	if err := e.roles.Require(access.RoleRebalancer, caller, ErrOnlyRebalancer); err != nil {
		return err
	}
	if funds.IsNil() || funds.IsNegative() {
		return ErrAmountEq0
	}
	e.mu.Lock()
	e.darbiFunds = funds
	e.mu.Unlock()
	return nil
}

// SetMinter repoints the mint module. Admin only, non-nil.
func (e *Engine) SetMinter(caller types.Address, m *Minter) error {
	if err := e.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if m == nil {
		return ErrZeroAddress
	}
	e.mu.Lock()
	e.minter = m
	e.mu.Unlock()
	return nil
}

// SetController repoints the controller. Admin only, non-nil.
func (e *Engine) SetController(caller types.Address, ctrl *controller.Controller) error {
	if err := e.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if ctrl == nil {
		return ErrZeroAddress
	}
	e.mu.Lock()
	e.ctrl = ctrl
	e.mu.Unlock()
	e.events.Emit(types.UpdateControllerEvent{New: ctrl.Address()})
	return nil
}

// MoveMarketBuyAmount computes the trade that aligns the pool price to the
// virtual price. No state change. aToB is true when UP must be sold into
// the pool (UP overpriced), false when native must buy UP. An aligned pool
// or an undefined virtual price yields (false, 0).
func (e *Engine) MoveMarketBuyAmount() (aToB bool, amountIn sdkmath.Int, err error) {
	e.mu.RLock()
	ctrl := e.ctrl
	e.mu.RUnlock()

	rNative, rUP, err := e.pool.Reserves()
	if err != nil {
		return false, sdkmath.ZeroInt(), fmt.Errorf("reading reserves: %w", err)
	}
	price := ctrl.VirtualPrice()
	if price.IsZero() {
		return false, sdkmath.ZeroInt(), nil
	}
	aToB, amountIn = market.AmountToTargetPrice(rNative, rUP, price)
	return aToB, amountIn, nil
}

// Arbitrage executes the aligning trade when it exceeds the threshold.
// Monitor role required. A below-threshold imbalance is a soft no-op
// receipt, not an error; router and controller failures abort the call.
// Every execution finishes with a refund sweep.
func (e *Engine) Arbitrage(caller types.Address) (types.ArbitrageReceipt, error) {
	receipt := types.ArbitrageReceipt{
		AmountIn:  sdkmath.ZeroInt(),
		AmountOut: sdkmath.ZeroInt(),
		Refunded:  sdkmath.ZeroInt(),
		Timestamp: time.Now().UTC(),
	}
	if !e.busy.CompareAndSwap(false, true) {
		return receipt, ErrReentrantCall
	}
	defer e.busy.Store(false)

	if err := e.pause.Check(); err != nil {
		return receipt, err
	}
	if err := e.roles.Require(access.RoleMonitor, caller, ErrOnlyMonitor); err != nil {
		return receipt, err
	}

	aToB, amountIn, err := e.MoveMarketBuyAmount()
	if err != nil {
		return receipt, err
	}

	e.mu.RLock()
	ctrl := e.ctrl
	minter := e.minter
	threshold := e.arbitrageThreshold
	fenced := e.darbiFunds
	e.mu.RUnlock()

	if amountIn.LTE(threshold) {
		receipt.Reason = "below threshold"
		e.log.Debug().Str("amountIn", amountIn.String()).Str("threshold", threshold.String()).
			Msg("Imbalance below threshold, skipping arbitrage")
		return receipt, nil
	}

	price := ctrl.VirtualPrice()
	available := e.ledger.BalanceOf(e.addr)
	spendable := available.Sub(fenced)
	if !spendable.IsPositive() {
		receipt.Reason = "funds below ring-fence"
		return receipt, nil
	}

	if aToB {
		// UP overpriced: mint UP at the virtual price, sell it into the
		// pool. The mint payment is capped by the spendable float.
		nativeNeeded := amountIn.Mul(price).Quo(types.OneScaled)
		spend := sdkmath.MinInt(nativeNeeded, spendable)
		if !spend.IsPositive() {
			receipt.Reason = "funds below ring-fence"
			return receipt, nil
		}
		minted, err := minter.MintUP(e.addr, spend)
		if err != nil {
			return receipt, fmt.Errorf("darbi mint: %w", err)
		}
		out, err := e.router.SwapExactIn(e.addr, true, minted, sdkmath.ZeroInt())
		if err != nil {
			return receipt, fmt.Errorf("selling up: %w", err)
		}
		receipt.AToB = true
		receipt.AmountIn = minted
		receipt.AmountOut = out
	} else {
		// UP underpriced: buy it off the pool with native, then redeem it
		// at the controller for its full backing.
		spend := sdkmath.MinInt(amountIn, spendable)
		if !spend.IsPositive() {
			receipt.Reason = "funds below ring-fence"
			return receipt, nil
		}
		out, err := e.router.SwapExactIn(e.addr, false, spend, sdkmath.ZeroInt())
		if err != nil {
			return receipt, fmt.Errorf("buying up: %w", err)
		}
		if err := e.up.Approve(e.addr, ctrl.Address(), out); err != nil {
			return receipt, err
		}
		if err := ctrl.Redeem(e.addr, out); err != nil {
			return receipt, fmt.Errorf("redeeming up: %w", err)
		}
		receipt.AmountIn = spend
		receipt.AmountOut = out
	}
	receipt.Executed = true

	refunded, err := e.refund(caller, ctrl)
	if err != nil {
		return receipt, err
	}
	receipt.Refunded = refunded

	e.log.Info().Bool("aToB", receipt.AToB).
		Str("amountIn", receipt.AmountIn.String()).
		Str("amountOut", receipt.AmountOut.String()).
		Str("refunded", receipt.Refunded.String()).
		Msg("Arbitrage executed")
	return receipt, nil
}

// Refund sweeps any balance above the ring-fenced float to the controller,
// rebating gasRefund to the caller first. No surplus is a no-op.
func (e *Engine) Refund(caller types.Address) (sdkmath.Int, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return sdkmath.ZeroInt(), ErrReentrantCall
	}
	defer e.busy.Store(false)
	if err := e.roles.Require(access.RoleMonitor, caller, ErrOnlyMonitor); err != nil {
		return sdkmath.ZeroInt(), err
	}
	e.mu.RLock()
	ctrl := e.ctrl
	e.mu.RUnlock()
	return e.refund(caller, ctrl)
}

func (e *Engine) refund(caller types.Address, ctrl *controller.Controller) (sdkmath.Int, error) {
	e.mu.RLock()
	fenced := e.darbiFunds
	rebate := e.gasRefund
	e.mu.RUnlock()

	balance := e.ledger.BalanceOf(e.addr)
	if balance.LTE(fenced) {
		return sdkmath.ZeroInt(), nil
	}
	surplus := balance.Sub(fenced)
	tip := sdkmath.MinInt(rebate, surplus)
	if tip.IsPositive() {
		if err := e.ledger.Transfer(e.addr, caller, tip); err != nil {
			return sdkmath.ZeroInt(), err
		}
		surplus = surplus.Sub(tip)
	}
	if surplus.IsPositive() {
		if err := e.ledger.Transfer(e.addr, ctrl.Address(), surplus); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	return surplus.Add(tip), nil
}
