package types

import (
	sdkmath "cosmossdk.io/math"
)

// Event is a state-transition notification emitted by a core component after
// an operation commits. Events exist for observability and for tests; they
// are never consulted by accounting logic.
type Event interface {
	EventName() string
}

// BorrowNativeEvent is emitted by the controller when native collateral is
// lent out. TotalBorrowed is the cumulative nativeBorrowed after the call.
type BorrowNativeEvent struct {
	To            Address
	Amount        sdkmath.Int
	TotalBorrowed sdkmath.Int
}

func (BorrowNativeEvent) EventName() string { return "BorrowNative" }

// SyntheticMintEvent is emitted by the controller when UP is minted against
// future backing. TotalBorrowed is the cumulative upBorrowed after the call.
type SyntheticMintEvent struct {
	To            Address
	Amount        sdkmath.Int
	TotalBorrowed sdkmath.Int
}

func (SyntheticMintEvent) EventName() string { return "SyntheticMint" }

// RepayEvent carries the amounts actually repaid in a single call.
type RepayEvent struct {
	NativeRepaid sdkmath.Int
	UpRepaid     sdkmath.Int
}

func (RepayEvent) EventName() string { return "Repay" }

// RedeemEvent carries the UP burned and the native paid out for it.
type RedeemEvent struct {
	Burned     sdkmath.Int
	NativePaid sdkmath.Int
}

func (RedeemEvent) EventName() string { return "Redeem" }

// PublicRedeemEvent is emitted by the public redeemer when it forwards a
// controller payout to a holder.
type PublicRedeemEvent struct {
	From       Address
	Burned     sdkmath.Int
	NativePaid sdkmath.Int
}

func (PublicRedeemEvent) EventName() string { return "PublicRedeem" }

// PremiumMintEvent is emitted on every premium public mint.
type PremiumMintEvent struct {
	To     Address
	Minted sdkmath.Int
	Price  sdkmath.Int
	Paid   sdkmath.Int
}

func (PremiumMintEvent) EventName() string { return "PremiumMint" }

// DarbiMintEvent is emitted when the arbitrage mint module mints UP at the
// exact virtual price.
type DarbiMintEvent struct {
	To     Address
	Minted sdkmath.Int
	Price  sdkmath.Int
	Paid   sdkmath.Int
}

func (DarbiMintEvent) EventName() string { return "DarbiMint" }

// UpdateControllerEvent is emitted whenever a component repoints its
// controller reference.
type UpdateControllerEvent struct {
	New Address
}

func (UpdateControllerEvent) EventName() string { return "UpdateController" }
