package market

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/unifiprotocol/upcore/internal/types"
)

// AmountToTargetPrice solves the constant-product invariant for the input
// amount that moves the pool price (native per UP, 18-decimal scaled) to
// targetPrice.
//
// With k = rN·rU held constant, the post-trade reserves at price P satisfy
// rN' = √(k·P/1e18) and rU' = √(k·1e18/P); the required input is the growth
// of the side being sold in. sellUP is true when UP trades above the target
// (UP must be sold into the pool), false when native must be spent to buy UP.
//
// Degenerate inputs (empty pool, zero target) and an already-aligned pool
// return (false, 0). Square roots truncate, so the pool lands within one
// base unit of the target.
func AmountToTargetPrice(nativeReserve, upReserve, targetPrice sdkmath.Int) (sellUP bool, amountIn sdkmath.Int) {
	zero := sdkmath.ZeroInt()
	if !nativeReserve.IsPositive() || !upReserve.IsPositive() || !targetPrice.IsPositive() {
		return false, zero
	}

	rN := nativeReserve.BigInt()
	rU := upReserve.BigInt()
	price := targetPrice.BigInt()
	one := types.OneScaled.BigInt()

	marketPrice := new(big.Int).Div(new(big.Int).Mul(rN, one), rU)
	switch marketPrice.Cmp(price) {
	case 0:
		return false, zero
	case 1:
		// UP is overpriced: grow the UP reserve until rN'/rU' = P.
		k := new(big.Int).Mul(rN, rU)
		target := new(big.Int).Sqrt(new(big.Int).Div(new(big.Int).Mul(k, one), price))
		in := new(big.Int).Sub(target, rU)
		if in.Sign() <= 0 {
			return false, zero
		}
		return true, sdkmath.NewIntFromBigInt(in)
	default:
		// UP is underpriced: grow the native reserve.
		k := new(big.Int).Mul(rN, rU)
		target := new(big.Int).Sqrt(new(big.Int).Div(new(big.Int).Mul(k, price), one))
		in := new(big.Int).Sub(target, rN)
		if in.Sign() <= 0 {
			return false, zero
		}
		return false, sdkmath.NewIntFromBigInt(in)
	}
}
