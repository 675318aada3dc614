package model

import "github.com/shopspring/decimal"

// PairInfo is the live state of one pair on one protocol, canonicalized so
// token0 is the non-quote asset.
type PairInfo struct {
	Reserve0   decimal.Decimal `json:"reserve0"`
	Reserve1   decimal.Decimal `json:"reserve1"`
	ReserveUSD decimal.Decimal `json:"reserve_usd"`
}

// UserPosition is one user's live position in one pool.
type UserPosition struct {
	LPBalance   decimal.Decimal `json:"lp_balance"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	Reserve0    decimal.Decimal `json:"reserve0"`
	Reserve1    decimal.Decimal `json:"reserve1"`
}

// PoolLiquidity is a user's combined position in one pair across both
// protocols: token amounts and overall share of the pair's token0 reserves.
type PoolLiquidity struct {
	Token0  decimal.Decimal `json:"token0"`
	Token1  decimal.Decimal `json:"token1"`
	Percent decimal.Decimal `json:"percent"`
}
