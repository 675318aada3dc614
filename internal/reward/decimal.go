package reward

import "github.com/shopspring/decimal"

// All intermediate divisions round to 10 fractional digits; addends of the
// shared denominator are rounded to 8 before summation.
const (
	divisionScale    = 10
	denominatorScale = 8
)

var (
	one    = decimal.NewFromInt(1)
	two    = decimal.NewFromInt(2)
	three  = decimal.NewFromInt(3)
	six    = decimal.NewFromInt(6)
	twelve = decimal.NewFromInt(12)
)

// safeDiv divides a by b at the fixed scale. A zero divisor yields zero
// instead of propagating a non-finite result; this guards the liquidity
// percent and token amount computations against stale or empty pools.
func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, divisionScale)
}

// floorZero clamps negative formula outputs to zero before accumulation.
func floorZero(v decimal.Decimal) decimal.Decimal {
	if v.Sign() < 0 {
		return decimal.Zero
	}
	return v
}
