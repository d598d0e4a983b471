package market

import (
	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/types"
)

// Pool is the read surface of the external (native, UP) market.
type Pool interface {
	// Reserves returns the current pool reserves, native side first.
	Reserves() (nativeReserve, upReserve sdkmath.Int, err error)
}

// Router executes trades and liquidity changes against the pool. Failures
// propagate as hard errors; the enclosing operation must abort with them.
type Router interface {
	// SwapExactIn trades amountIn for the opposite asset. upIn selects the
	// input side: true sells UP for native, false buys UP with native. The
	// output is sent to the caller's account and returned.
	SwapExactIn(caller types.Address, upIn bool, amountIn, minOut sdkmath.Int) (sdkmath.Int, error)

	// AddLiquidity deposits both legs from the caller and mints pool shares.
	AddLiquidity(caller types.Address, nativeAmount, upAmount sdkmath.Int) (shares sdkmath.Int, err error)

	// RemoveLiquidity burns the caller's shares and returns both legs.
	RemoveLiquidity(caller types.Address, shares sdkmath.Int) (nativeOut, upOut sdkmath.Int, err error)

	// SharesOf returns the caller's pool share balance.
	SharesOf(account types.Address) sdkmath.Int

	// PositionValue returns the native-denominated value of the account's
	// share of both reserves, pricing the UP leg at the given price.
	PositionValue(account types.Address, upPrice sdkmath.Int) sdkmath.Int
}

// StrategyRewards reports a yield strategy's accounting: what was put in and
// what has accrued on top of it.
type StrategyRewards struct {
	Deposited sdkmath.Int
	Rewards   sdkmath.Int
}

// Strategy is an optional yield-bearing sink for idle collateral.
type Strategy interface {
	// Deposit moves amount of native from the depositor into the strategy.
	Deposit(from types.Address, amount sdkmath.Int) error

	// Withdraw returns up to amount of native to the recipient and reports
	// what was actually withdrawn.
	Withdraw(to types.Address, amount sdkmath.Int) (sdkmath.Int, error)

	// CheckRewards reports the strategy's deposit and accrual amounts.
	CheckRewards() (StrategyRewards, error)
}
