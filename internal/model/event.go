package model

import "github.com/shopspring/decimal"

// PositionEvent is one user's observed liquidity position in one pool at one
// block, as reported by the protocol's subgraph. A zero LPBalance marks a
// full withdrawal and resets the user's vesting clock.
type PositionEvent struct {
	Block          uint64          `json:"block"`
	UserID         string          `json:"user_id"`
	LPBalance      decimal.Decimal `json:"lp_balance"`
	LPTotalSupply  decimal.Decimal `json:"lp_total_supply"`
	ReserveUSD     decimal.Decimal `json:"reserve_usd"`
	Reserve0       decimal.Decimal `json:"reserve0"`
	Reserve1       decimal.Decimal `json:"reserve1"`
	Token0PriceUSD decimal.Decimal `json:"token0_price_usd"`
	Token1PriceUSD decimal.Decimal `json:"token1_price_usd"`
}

// LiquiditySnapshot records the total USD liquidity across all six pools at
// one sampled block. The tier function looks these up most-recent-at-or-before.
type LiquiditySnapshot struct {
	Block        uint64          `json:"block"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
}
