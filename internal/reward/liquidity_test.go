package reward

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

func TestCalculateLiquidityCombinesProtocols(t *testing.T) {
	uniswapPair := model.PairInfo{Reserve0: dec("10000"), Reserve1: dec("5000")}
	mooniswapPair := model.PairInfo{Reserve0: dec("10000"), Reserve1: dec("5000")}
	uniswapUser := model.UserPosition{
		LPBalance:   dec("100"),
		TotalSupply: dec("1000"),
		Reserve0:    dec("10000"),
		Reserve1:    dec("5000"),
	}
	mooniswapUser := model.UserPosition{
		LPBalance:   dec("50"),
		TotalSupply: dec("500"),
		Reserve0:    dec("10000"),
		Reserve1:    dec("5000"),
	}

	got := CalculateLiquidity(uniswapPair, mooniswapPair, uniswapUser, mooniswapUser)

	// 10% of each pool: 1000 + 1000 token0, 500 + 500 token1, 10% overall.
	if !got.Token0.Equal(dec("2000")) {
		t.Fatalf("token0 = %s, want 2000", got.Token0)
	}
	if !got.Token1.Equal(dec("1000")) {
		t.Fatalf("token1 = %s, want 1000", got.Token1)
	}
	if !got.Percent.Equal(dec("0.1")) {
		t.Fatalf("percent = %s, want 0.1", got.Percent)
	}
}

func TestCalculateLiquidityNoPosition(t *testing.T) {
	got := CalculateLiquidity(model.PairInfo{}, model.PairInfo{}, model.UserPosition{}, model.UserPosition{})
	if !got.Token0.IsZero() || !got.Token1.IsZero() || !got.Percent.IsZero() {
		t.Fatalf("empty position should be all zero: %+v", got)
	}
}

func TestCalculateLiquidityZeroSupply(t *testing.T) {
	user := model.UserPosition{
		LPBalance:   dec("100"),
		TotalSupply: decimal.Zero,
		Reserve0:    dec("10000"),
	}
	got := CalculateLiquidity(model.PairInfo{}, model.PairInfo{}, user, model.UserPosition{})
	if !got.Token0.IsZero() {
		t.Fatalf("zero supply should yield zero token0, got %s", got.Token0)
	}
}
