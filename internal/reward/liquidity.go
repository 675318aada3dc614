package reward

import (
	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// CalculateLiquidity combines a user's live positions on both protocols
// into token amounts and an overall share of the pair's token0 reserves.
// Empty or stale pools divide to zero instead of propagating a non-finite
// result.
func CalculateLiquidity(
	uniswapPair, mooniswapPair model.PairInfo,
	uniswapUser, mooniswapUser model.UserPosition,
) model.PoolLiquidity {
	if uniswapUser.LPBalance.IsZero() && mooniswapUser.LPBalance.IsZero() {
		return model.PoolLiquidity{
			Token0:  decimal.Zero,
			Token1:  decimal.Zero,
			Percent: decimal.Zero,
		}
	}

	uniswapShare := safeDiv(uniswapUser.LPBalance, uniswapUser.TotalSupply)
	mooniswapShare := safeDiv(mooniswapUser.LPBalance, mooniswapUser.TotalSupply)

	token0 := uniswapShare.Mul(uniswapUser.Reserve0).
		Add(mooniswapShare.Mul(mooniswapUser.Reserve0))
	token1 := uniswapShare.Mul(uniswapUser.Reserve1).
		Add(mooniswapShare.Mul(mooniswapUser.Reserve1))

	totalReserve0 := uniswapPair.Reserve0.Add(mooniswapPair.Reserve0)

	return model.PoolLiquidity{
		Token0:  token0,
		Token1:  token1,
		Percent: safeDiv(token0, totalReserve0),
	}
}
