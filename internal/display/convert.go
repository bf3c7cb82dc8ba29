/*
This file contains conversions between human-readable token amounts and integer
base-unit (lamport) amounts, with precision handling via SDK math decimals.
*/

package display

import (
	"math"

	sdkmath "cosmossdk.io/math"
)

// maxDecimals is the largest token precision supported on chain.
const maxDecimals = 18

// ToBaseUnits converts a human-readable amount to integer base units,
// rounding half away from zero. Invalid input (NaN, Inf, negative amounts,
// out-of-range decimals) yields 0; callers validate before converting.
func ToBaseUnits(amount float64, decimals int) uint64 {
	if decimals < 0 || decimals > maxDecimals {
		return 0
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0
	}

	scaled := math.Round(amount * math.Pow10(decimals))
	if scaled <= 0 || scaled >= math.MaxUint64 {
		return 0
	}
	return uint64(scaled)
}

// FromBaseUnits converts integer base units to a human-readable amount.
// The division is carried out in decimal space to avoid accumulating
// binary floating point error before the final conversion.
func FromBaseUnits(amount uint64, decimals int) float64 {
	if decimals < 0 || decimals > maxDecimals {
		return 0
	}

	dec := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(amount))
	result, err := dec.Quo(pow10Dec(decimals)).Float64()
	if err != nil || math.IsNaN(result) || math.IsInf(result, 0) {
		return 0
	}
	return result
}

// pow10Dec returns 10^precision as a legacy decimal.
func pow10Dec(precision int) sdkmath.LegacyDec {
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}
	return factor
}
