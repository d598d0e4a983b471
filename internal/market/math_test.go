package market

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/unifiprotocol/upcore/internal/types"
)

func scaled(n int64) sdkmath.Int {
	return sdkmath.NewInt(n).Mul(types.OneScaled)
}

func TestAmountToTargetPriceAligned(t *testing.T) {
	// 250 native / 100 UP is exactly 2.5.
	price, ok := sdkmath.NewIntFromString("2500000000000000000")
	require.True(t, ok)

	sellUP, amountIn := AmountToTargetPrice(scaled(250), scaled(100), price)
	require.False(t, sellUP)
	require.True(t, amountIn.IsZero())
}

func TestAmountToTargetPriceDegenerate(t *testing.T) {
	for _, tc := range []struct {
		name           string
		rN, rU, target sdkmath.Int
	}{
		{"empty native", sdkmath.ZeroInt(), scaled(100), types.OneScaled},
		{"empty up", scaled(100), sdkmath.ZeroInt(), types.OneScaled},
		{"zero target", scaled(100), scaled(100), sdkmath.ZeroInt()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sellUP, amountIn := AmountToTargetPrice(tc.rN, tc.rU, tc.target)
			require.False(t, sellUP)
			require.True(t, amountIn.IsZero())
		})
	}
}

// applyTrade replays the suggested trade against the constant product and
// returns the resulting pool price.
func applyTrade(rN, rU sdkmath.Int, sellUP bool, in sdkmath.Int) sdkmath.Int {
	if sellUP {
		out := rN.Mul(in).Quo(rU.Add(in))
		rU = rU.Add(in)
		rN = rN.Sub(out)
	} else {
		out := rU.Mul(in).Quo(rN.Add(in))
		rN = rN.Add(in)
		rU = rU.Sub(out)
	}
	return rN.Mul(types.OneScaled).Quo(rU)
}

func TestAmountToTargetPriceSellLeg(t *testing.T) {
	// Market at 4.0, target 2.5: UP is overpriced, the engine must sell
	// UP into the pool.
	rN, rU := scaled(400), scaled(100)
	target, _ := sdkmath.NewIntFromString("2500000000000000000")

	sellUP, in := AmountToTargetPrice(rN, rU, target)
	require.True(t, sellUP)
	require.True(t, in.IsPositive())

	got := applyTrade(rN, rU, sellUP, in)
	diff := got.Sub(target).Abs()
	// Truncated square roots leave at most a sliver of divergence.
	require.True(t, diff.Mul(sdkmath.NewInt(1_000_000)).LT(target),
		"landed at %s, want ~%s", got, target)
}

func TestAmountToTargetPriceBuyLeg(t *testing.T) {
	// Market at 1.0, target 2.5: UP is underpriced, the engine must buy
	// UP with native.
	rN, rU := scaled(100), scaled(100)
	target, _ := sdkmath.NewIntFromString("2500000000000000000")

	sellUP, in := AmountToTargetPrice(rN, rU, target)
	require.False(t, sellUP)
	require.True(t, in.IsPositive())

	got := applyTrade(rN, rU, sellUP, in)
	diff := got.Sub(target).Abs()
	require.True(t, diff.Mul(sdkmath.NewInt(1_000_000)).LT(target),
		"landed at %s, want ~%s", got, target)
}
