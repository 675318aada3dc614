package reward

import "github.com/shopspring/decimal"

// Params holds the fixed game constants the formula depends on.
type Params struct {
	// GameDuration is the total game length T in blocks (~3 months).
	GameDuration uint64
	// MaxBudget is the total PSWAP supply distributed over the game.
	MaxBudget decimal.Decimal
	// Tier thresholds and rates: below TierLowUSD the reward rate is
	// TierFloorRate, above TierHighUSD it is TierCapRate, in between it is
	// liquidity/12 (linear, continuous at both boundaries).
	TierLowUSD    decimal.Decimal
	TierHighUSD   decimal.Decimal
	TierFloorRate decimal.Decimal
	TierCapRate   decimal.Decimal
}

// DefaultParams returns the production game constants.
func DefaultParams() Params {
	return Params{
		GameDuration:  606462,
		MaxBudget:     decimal.NewFromInt(4_000_000),
		TierLowUSD:    decimal.NewFromInt(12_000_000),
		TierHighUSD:   decimal.NewFromInt(24_000_000),
		TierFloorRate: decimal.NewFromInt(1_000_000),
		TierCapRate:   decimal.NewFromInt(2_000_000),
	}
}

// TierRate returns the total PSWAP reward rate across the three pairs for
// the given total USD liquidity.
func (p Params) TierRate(liquidityUSD decimal.Decimal) decimal.Decimal {
	if liquidityUSD.LessThan(p.TierLowUSD) {
		return p.TierFloorRate
	}
	if liquidityUSD.GreaterThan(p.TierHighUSD) {
		return p.TierCapRate
	}
	return safeDiv(liquidityUSD, twelve)
}

// Decay returns the per-block emission for one pair:
//
//	p(t, liq) = 2 * (L(liq)/3) * (T - t - 1) / T^2
//
// where t is the game time in blocks under the original formula and the
// constant 1 under the updated formula.
func (p Params) Decay(t, liquidityUSD decimal.Decimal) decimal.Decimal {
	gameT := decimal.NewFromInt(int64(p.GameDuration))
	perPair := safeDiv(p.TierRate(liquidityUSD), three)
	numerator := two.Mul(perPair).Mul(gameT.Sub(t).Sub(one))
	return safeDiv(numerator, gameT.Mul(gameT))
}

// Vesting returns Vi(userTime, gameTime) = (1 + userTime/gameTime)^6, the
// coefficient rewarding users who keep liquidity provided over time. The
// caller caps userTime at gameTime.
func Vesting(userTime, gameTime decimal.Decimal) decimal.Decimal {
	return one.Add(safeDiv(userTime, gameTime)).Pow(six)
}

// BlockReward returns Rm, one user's reward for one pair at one block. When
// newFormula is set (current block at or past the formula update block) the
// decay uses t = 1 instead of the game time; the two variants must never be
// conflated and the switch is evaluated per block.
func (p Params) BlockReward(
	userTime decimal.Decimal,
	gameTime decimal.Decimal,
	liquidityUSD decimal.Decimal,
	userTokens decimal.Decimal,
	totalWeighted decimal.Decimal,
	newFormula bool,
) decimal.Decimal {
	t := gameTime
	if newFormula {
		t = one
	}
	emission := p.Decay(t, liquidityUSD)
	share := safeDiv(Vesting(userTime, gameTime).Mul(userTokens), totalWeighted)
	return emission.Mul(share)
}
