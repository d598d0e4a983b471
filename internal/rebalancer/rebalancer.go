/*

The rebalancer redistributes the controller's backing across three sinks: a
liquidity position in the (native, UP) pool, the redeemable reserve kept on
the controller itself, and an optional yield strategy. Funds leave the
controller only through its borrow primitives, so the controller's
NativeBalance is invariant across a rebalance up to pool rounding.

*/

package rebalancer

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
	// ErrOnlyRebalancer rejects Rebalance calls from non-holders.
	ErrOnlyRebalancer = errors.New("only rebalancer")
	// ErrAllocationGt100 rejects allocation splits above 100%.
	ErrAllocationGt100 = errors.New("allocation gt 100")
	// ErrSlippageGte100 rejects slippage tolerance of 100% or more.
	ErrSlippageGte100 = errors.New("slippage tolerance gte 100")
	// ErrReentrantCall rejects nested Rebalance invocation.
	ErrReentrantCall = errors.New("reentrant call")
)

// rewardCapacity bounds the reward history ring.
const rewardCapacity = 10

// bpsDenominator: slippage tolerance is carried in basis points.
const bpsDenominator = 10_000

// Rebalancer drives the allocation state machine.
type Rebalancer struct {
	addr   types.Address
	pool   market.Pool
	router market.Router
	up     *token.Token
	ledger *native.Ledger
	roles  *access.Registry
	events *types.Recorder
	log    zerolog.Logger

	busy atomic.Bool
	mu   sync.RWMutex

	ctrl             *controller.Controller
	strategy         market.Strategy
	allocationLP     int64
	allocationRedeem int64
	slippageBps      int64

	rewards      [rewardCapacity]types.Reward
	rewardCursor int
	rewardCount  int
}

// Config collects the rebalancer's dependencies and initial parameters.
type Config struct {
	Address    types.Address
	Admin      types.Address
	Pool       market.Pool
	Router     market.Router
	Controller *controller.Controller
	Token      *token.Token
	Ledger     *native.Ledger
	Strategy   market.Strategy // optional
	Events     *types.Recorder

	// AllocationLP and AllocationRedeem are percentages of the backing;
	// the remainder goes to the strategy.
	AllocationLP     int64
	AllocationRedeem int64
	// SlippageBps is the drift tolerance in basis points, < 10000.
	SlippageBps int64
}

// New validates the configuration and builds the rebalancer. It must be
// granted the rebalancer role on the controller before Rebalance can move
// funds.
func New(cfg Config) (*Rebalancer, error) {
	if cfg.Pool == nil || cfg.Router == nil || cfg.Controller == nil || cfg.Token == nil || cfg.Ledger == nil {
		return nil, errors.New("rebalancer dependencies cannot be nil")
	}
	if err := validAllocations(cfg.AllocationLP, cfg.AllocationRedeem); err != nil {
		return nil, err
	}
	if err := validSlippage(cfg.SlippageBps); err != nil {
		return nil, err
	}
	return &Rebalancer{
		addr:             cfg.Address,
		pool:             cfg.Pool,
		router:           cfg.Router,
		up:               cfg.Token,
		ledger:           cfg.Ledger,
		roles:            access.NewRegistry(cfg.Admin),
		events:           cfg.Events,
		log:              logger.GetForComponent("rebalancer"),
		ctrl:             cfg.Controller,
		strategy:         cfg.Strategy,
		allocationLP:     cfg.AllocationLP,
		allocationRedeem: cfg.AllocationRedeem,
		slippageBps:      cfg.SlippageBps,
	}, nil
}

// Address returns the rebalancer's principal.
func (r *Rebalancer) Address() types.Address { return r.addr }

// Roles exposes the rebalancer's role registry.
func (r *Rebalancer) Roles() *access.Registry { return r.roles }

// AllocationLP returns the LP target percentage.
func (r *Rebalancer) AllocationLP() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocationLP
}

// AllocationRedeem returns the redeem-reserve target percentage.
func (r *Rebalancer) AllocationRedeem() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allocationRedeem
}

// SlippageBps returns the drift tolerance in basis points.
func (r *Rebalancer) SlippageBps() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slippageBps
}

// SetAllocationLP updates the LP target. Admin only.
func (r *Rebalancer) SetAllocationLP(caller types.Address, pct int64) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := validAllocations(pct, r.allocationRedeem); err != nil {
		return err
	}
	r.allocationLP = pct
	return nil
}

// SetAllocationRedeem updates the redeem-reserve target. Admin only.
func (r *Rebalancer) SetAllocationRedeem(caller types.Address, pct int64) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := validAllocations(r.allocationLP, pct); err != nil {
		return err
	}
	r.allocationRedeem = pct
	return nil
}

// SetSlippageTolerance updates the drift tolerance. Admin only, < 100%.
func (r *Rebalancer) SetSlippageTolerance(caller types.Address, bps int64) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if err := validSlippage(bps); err != nil {
		return err
	}
	r.mu.Lock()
	r.slippageBps = bps
	r.mu.Unlock()
	return nil
}

// SetStrategy swaps the yield strategy; nil clears it. Admin only.
func (r *Rebalancer) SetStrategy(caller types.Address, s market.Strategy) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	r.mu.Lock()
	r.strategy = s
	r.mu.Unlock()
	return nil
}

// SetController repoints the controller. Admin only, non-nil.
func (r *Rebalancer) SetController(caller types.Address, ctrl *controller.Controller) error {
	if err := r.roles.Require(access.RoleAdmin, caller, access.ErrOnlyAdmin); err != nil {
		return err
	}
	if ctrl == nil {
		return errors.New("zero address")
	}
	r.mu.Lock()
	r.ctrl = ctrl
	r.mu.Unlock()
	r.events.Emit(types.UpdateControllerEvent{New: ctrl.Address()})
	return nil
}

// Rewards returns the reward history, oldest first.
func (r *Rebalancer) Rewards() []types.Reward {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Reward, 0, r.rewardCount)
	start := r.rewardCursor - r.rewardCount
	for i := 0; i < r.rewardCount; i++ {
		idx := (start + i + rewardCapacity) % rewardCapacity
		out = append(out, r.rewards[idx])
	}
	return out
}

// Rebalance runs the allocation state machine: strategy first, then the LP
// position. Every leg already inside the slippage tolerance is a soft
// no-op; when all are, the receipt reports Executed == false. Rebalancer
// role required.
func (r *Rebalancer) Rebalance(caller types.Address) (types.RebalanceReceipt, error) {
	receipt := types.RebalanceReceipt{
		TargetLP:       sdkmath.ZeroInt(),
		TargetRedeem:   sdkmath.ZeroInt(),
		TargetStrategy: sdkmath.ZeroInt(),
		StrategyMoved:  sdkmath.ZeroInt(),
		LPMoved:        sdkmath.ZeroInt(),
		Timestamp:      time.Now().UTC(),
	}
	if !r.busy.CompareAndSwap(false, true) {
		return receipt, ErrReentrantCall
	}
	defer r.busy.Store(false)

	if err := r.roles.Require(access.RoleRebalancer, caller, ErrOnlyRebalancer); err != nil {
		return receipt, err
	}

	r.mu.RLock()
	ctrl := r.ctrl
	strat := r.strategy
	allocLP := r.allocationLP
	allocRedeem := r.allocationRedeem
	slippage := r.slippageBps
	r.mu.RUnlock()

	backing := ctrl.NativeBalance()
	receipt.TargetLP = backing.MulRaw(allocLP).QuoRaw(100)
	receipt.TargetRedeem = backing.MulRaw(allocRedeem).QuoRaw(100)
	receipt.TargetStrategy = backing.Sub(receipt.TargetLP).Sub(receipt.TargetRedeem)

	strategyMoved, err := r.adjustStrategy(ctrl, strat, receipt.TargetStrategy, slippage)
	if err != nil {
		return receipt, fmt.Errorf("strategy leg: %w", err)
	}
	receipt.StrategyMoved = strategyMoved

	lpMoved, err := r.adjustLiquidity(ctrl, receipt.TargetLP, slippage)
	if err != nil {
		return receipt, fmt.Errorf("lp leg: %w", err)
	}
	receipt.LPMoved = lpMoved

	if strategyMoved.IsZero() && lpMoved.IsZero() {
		receipt.Reason = "already balanced"
		r.log.Debug().Msg("All legs within tolerance, nothing to do")
		return receipt, nil
	}
	receipt.Executed = true

	r.recordReward(strat)
	r.log.Info().
		Str("targetLP", receipt.TargetLP.String()).
		Str("targetRedeem", receipt.TargetRedeem.String()).
		Str("targetStrategy", receipt.TargetStrategy.String()).
		Str("strategyMoved", strategyMoved.String()).
		Str("lpMoved", lpMoved.String()).
		Msg("Rebalance executed")
	return receipt, nil
}

// adjustStrategy moves the strategy's held value toward target. Deposits
// come out of controller borrows; withdrawals repay them.
func (r *Rebalancer) adjustStrategy(ctrl *controller.Controller, strat market.Strategy, target sdkmath.Int, slippage int64) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if strat == nil {
		return zero, nil
	}
	rewards, err := strat.CheckRewards()
	if err != nil {
		return zero, fmt.Errorf("checking rewards: %w", err)
	}
	current := rewards.Deposited.Add(rewards.Rewards)
	tolerance := target.MulRaw(slippage).QuoRaw(bpsDenominator)

	switch {
	case current.GT(target.Add(tolerance)):
		delta := current.Sub(target)
		got, err := strat.Withdraw(r.addr, delta)
		if err != nil {
			return zero, fmt.Errorf("withdrawing: %w", err)
		}
		if got.IsZero() {
			return zero, nil
		}
		if err := r.returnNative(ctrl, got); err != nil {
			return zero, err
		}
		return got, nil
	case current.LT(target.Sub(tolerance)):
		delta := target.Sub(current)
		held := r.ledger.BalanceOf(ctrl.Address())
		delta = sdkmath.MinInt(delta, held)
		if !delta.IsPositive() {
			return zero, nil
		}
		if err := ctrl.BorrowNative(r.addr, delta, r.addr); err != nil {
			return zero, fmt.Errorf("borrowing native: %w", err)
		}
		if err := strat.Deposit(r.addr, delta); err != nil {
			return zero, fmt.Errorf("depositing: %w", err)
		}
		return delta, nil
	default:
		return zero, nil
	}
}

// adjustLiquidity moves the pool position's native-denominated value toward
// target, borrowing both legs from the controller on the way in and
// repaying debt from proceeds on the way out.
func (r *Rebalancer) adjustLiquidity(ctrl *controller.Controller, target sdkmath.Int, slippage int64) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	price := ctrl.VirtualPrice()
	if price.IsZero() {
		return zero, nil
	}
	current := r.router.PositionValue(r.addr, price)
	tolerance := target.MulRaw(slippage).QuoRaw(bpsDenominator)

	switch {
	case current.GT(target.Add(tolerance)):
		excess := current.Sub(target)
		shares := r.router.SharesOf(r.addr)
		burn := shares.Mul(excess).Quo(current)
		if !burn.IsPositive() {
			return zero, nil
		}
		nativeOut, upOut, err := r.router.RemoveLiquidity(r.addr, burn)
		if err != nil {
			return zero, fmt.Errorf("removing liquidity: %w", err)
		}
		if err := r.settleProceeds(ctrl, nativeOut, upOut); err != nil {
			return zero, err
		}
		return excess, nil
	case current.LT(target.Sub(tolerance)):
		deficit := target.Sub(current)
		rNative, rUP, err := r.pool.Reserves()
		if err != nil {
			return zero, fmt.Errorf("reading reserves: %w", err)
		}
		if !rNative.IsPositive() || !rUP.IsPositive() {
			return zero, nil
		}
		// Split the deficit across both legs at the pool ratio.
		nativeLeg := deficit.QuoRaw(2)
		held := r.ledger.BalanceOf(ctrl.Address())
		nativeLeg = sdkmath.MinInt(nativeLeg, held)
		if !nativeLeg.IsPositive() {
			return zero, nil
		}
		upLeg := nativeLeg.Mul(rUP).Quo(rNative)
		if !upLeg.IsPositive() {
			return zero, nil
		}
		if err := ctrl.BorrowNative(r.addr, nativeLeg, r.addr); err != nil {
			return zero, fmt.Errorf("borrowing native: %w", err)
		}
		if err := ctrl.BorrowUP(r.addr, upLeg, r.addr); err != nil {
			return zero, fmt.Errorf("borrowing up: %w", err)
		}
		if _, err := r.router.AddLiquidity(r.addr, nativeLeg, upLeg); err != nil {
			return zero, fmt.Errorf("adding liquidity: %w", err)
		}
		// Report what actually went in: the controller's held balance may
		// have capped the native leg below half the deficit.
		return nativeLeg.Add(upLeg.Mul(price).Quo(types.OneScaled)), nil
	default:
		return zero, nil
	}
}

// settleProceeds repays controller debt from removed liquidity, forwarding
// anything beyond the outstanding debt straight to the controller.
func (r *Rebalancer) settleProceeds(ctrl *controller.Controller, nativeOut, upOut sdkmath.Int) error {
	repayNative := sdkmath.MinInt(nativeOut, ctrl.NativeBorrowed())
	repayUP := sdkmath.MinInt(upOut, ctrl.UpBorrowed())
	if repayUP.IsPositive() {
		if err := r.up.Approve(r.addr, ctrl.Address(), repayUP); err != nil {
			return err
		}
	}
	if repayNative.IsPositive() || repayUP.IsPositive() {
		if err := ctrl.Repay(r.addr, repayUP, repayNative); err != nil {
			return fmt.Errorf("repaying: %w", err)
		}
	}
	if extra := nativeOut.Sub(repayNative); extra.IsPositive() {
		if err := r.ledger.Transfer(r.addr, ctrl.Address(), extra); err != nil {
			return err
		}
	}
	if extra := upOut.Sub(repayUP); extra.IsPositive() {
		if err := r.up.Transfer(r.addr, ctrl.Address(), extra); err != nil {
			return err
		}
	}
	return nil
}

// returnNative repays native debt with funds held by the rebalancer,
// forwarding any amount beyond the outstanding debt to the controller.
func (r *Rebalancer) returnNative(ctrl *controller.Controller, amount sdkmath.Int) error {
	repay := sdkmath.MinInt(amount, ctrl.NativeBorrowed())
	if repay.IsPositive() {
		if err := ctrl.Repay(r.addr, sdkmath.ZeroInt(), repay); err != nil {
			return fmt.Errorf("repaying: %w", err)
		}
	}
	if extra := amount.Sub(repay); extra.IsPositive() {
		if err := r.ledger.Transfer(r.addr, ctrl.Address(), extra); err != nil {
			return err
		}
	}
	return nil
}

// recordReward appends a history entry, overwriting the oldest once the
// ring is full.
func (r *Rebalancer) recordReward(strat market.Strategy) {
	entry := types.Reward{
		Deposited: sdkmath.ZeroInt(),
		Rewards:   sdkmath.ZeroInt(),
		Timestamp: time.Now().UTC(),
	}
	if strat != nil {
		if rewards, err := strat.CheckRewards(); err == nil {
			entry.Deposited = rewards.Deposited
			entry.Rewards = rewards.Rewards
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewards[r.rewardCursor] = entry
	r.rewardCursor = (r.rewardCursor + 1) % rewardCapacity
	if r.rewardCount < rewardCapacity {
		r.rewardCount++
	}
}

func validAllocations(lp, redeem int64) error {
	if lp < 0 || redeem < 0 || lp+redeem > 100 {
		return ErrAllocationGt100
	}
	return nil
}

func validSlippage(bps int64) error {
	if bps < 0 || bps >= bpsDenominator {
		return ErrSlippageGte100
	}
	return nil
}
