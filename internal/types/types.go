/*

Shared primitives for the UP economic core. Every component identifies
principals by Address and accounts in 18-decimal base units.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Address identifies a principal (a component account or an external actor).
type Address string

// ZeroAddress is the null principal. Setters must reject it.
const ZeroAddress Address = ""

// IsZero reports whether the address is the null principal.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return string(a)
}

// OneScaled is the 18-decimal fixed-point unit. Prices and amounts are
// integers scaled by this factor; all divisions truncate toward zero.
var OneScaled = sdkmath.NewIntWithDecimal(1, 18)

// Reward is one entry of the rebalancer's reward history.
type Reward struct {
	Deposited sdkmath.Int `json:"deposited"`
	Rewards   sdkmath.Int `json:"rewards"`
	Timestamp time.Time   `json:"timestamp"`
}

// ArbitrageReceipt describes the outcome of one Arbitrage invocation.
// Executed == false with a non-empty Reason is a soft no-op, not a failure.
type ArbitrageReceipt struct {
	Executed  bool        `json:"executed"`
	AToB      bool        `json:"a_to_b"`
	AmountIn  sdkmath.Int `json:"amount_in"`
	AmountOut sdkmath.Int `json:"amount_out"`
	Refunded  sdkmath.Int `json:"refunded"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RebalanceReceipt describes the outcome of one Rebalance invocation.
type RebalanceReceipt struct {
	Executed       bool        `json:"executed"`
	TargetLP       sdkmath.Int `json:"target_lp"`
	TargetRedeem   sdkmath.Int `json:"target_redeem"`
	TargetStrategy sdkmath.Int `json:"target_strategy"`
	StrategyMoved  sdkmath.Int `json:"strategy_moved"`
	LPMoved        sdkmath.Int `json:"lp_moved"`
	Reason         string      `json:"reason,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}
