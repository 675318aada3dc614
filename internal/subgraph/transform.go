package subgraph

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// Quote-asset symbols. Token0 in the canonical order is always the non-quote
// asset: XOR for XOR/ETH and XOR/VAL, VAL for VAL/ETH.
const (
	symbolXOR  = "XOR"
	symbolVAL  = "VAL"
	symbolETH  = "ETH"
	symbolWETH = "WETH"
)

type rawToken struct {
	Symbol string `json:"symbol"`
}

type rawPairTokens struct {
	Token0 rawToken `json:"token0"`
	Token1 rawToken `json:"token1"`
}

type rawSnapshot struct {
	Block uint64 `json:"block"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
	Pair                      rawPairTokens `json:"pair"`
	Token0PriceUSD            string        `json:"token0PriceUSD"`
	Token1PriceUSD            string        `json:"token1PriceUSD"`
	LiquidityTokenBalance     string        `json:"liquidityTokenBalance"`
	LiquidityTokenTotalSupply string        `json:"liquidityTokenTotalSupply"`
	ReserveUSD                string        `json:"reserveUSD"`
	Reserve0                  string        `json:"reserve0"`
	Reserve1                  string        `json:"reserve1"`
}

type rawPairInfo struct {
	Reserve0   string   `json:"reserve0"`
	Reserve1   string   `json:"reserve1"`
	ReserveUSD string   `json:"reserveUSD"`
	Token0     rawToken `json:"token0"`
	Token1     rawToken `json:"token1"`
}

type rawUserPosition struct {
	ID                    string `json:"id"`
	LiquidityTokenBalance string `json:"liquidityTokenBalance"`
	Pair                  struct {
		TotalSupply string   `json:"totalSupply"`
		Reserve0    string   `json:"reserve0"`
		Reserve1    string   `json:"reserve1"`
		Token0      rawToken `json:"token0"`
		Token1      rawToken `json:"token1"`
	} `json:"pair"`
}

// needsSwap reports whether the subgraph's token order must be flipped to
// reach the canonical order.
func needsSwap(token0, token1 string) bool {
	if token0 == symbolETH || token0 == symbolWETH {
		return true
	}
	return token0 == symbolVAL && token1 == symbolXOR
}

// toPositionEvent converts a raw subgraph snapshot into the canonical event,
// flipping the token order where needed. Addresses are lower-cased.
func toPositionEvent(raw rawSnapshot) (model.PositionEvent, error) {
	fields := map[string]string{
		"liquidityTokenBalance":     raw.LiquidityTokenBalance,
		"liquidityTokenTotalSupply": raw.LiquidityTokenTotalSupply,
		"reserveUSD":                raw.ReserveUSD,
		"reserve0":                  raw.Reserve0,
		"reserve1":                  raw.Reserve1,
		"token0PriceUSD":            raw.Token0PriceUSD,
		"token1PriceUSD":            raw.Token1PriceUSD,
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for name, value := range fields {
		d, err := parseDecimal(value)
		if err != nil {
			return model.PositionEvent{}, fmt.Errorf("parse %s: %w", name, err)
		}
		parsed[name] = d
	}

	ev := model.PositionEvent{
		Block:          raw.Block,
		UserID:         strings.ToLower(raw.User.ID),
		LPBalance:      parsed["liquidityTokenBalance"],
		LPTotalSupply:  parsed["liquidityTokenTotalSupply"],
		ReserveUSD:     parsed["reserveUSD"],
		Reserve0:       parsed["reserve0"],
		Reserve1:       parsed["reserve1"],
		Token0PriceUSD: parsed["token0PriceUSD"],
		Token1PriceUSD: parsed["token1PriceUSD"],
	}

	if needsSwap(raw.Pair.Token0.Symbol, raw.Pair.Token1.Symbol) {
		ev.Reserve0, ev.Reserve1 = ev.Reserve1, ev.Reserve0
		ev.Token0PriceUSD, ev.Token1PriceUSD = ev.Token1PriceUSD, ev.Token0PriceUSD
	}

	return ev, nil
}

func toPairInfo(raw rawPairInfo) (model.PairInfo, error) {
	reserve0, err := parseDecimal(raw.Reserve0)
	if err != nil {
		return model.PairInfo{}, fmt.Errorf("parse reserve0: %w", err)
	}
	reserve1, err := parseDecimal(raw.Reserve1)
	if err != nil {
		return model.PairInfo{}, fmt.Errorf("parse reserve1: %w", err)
	}
	reserveUSD, err := parseDecimal(raw.ReserveUSD)
	if err != nil {
		return model.PairInfo{}, fmt.Errorf("parse reserveUSD: %w", err)
	}

	if needsSwap(raw.Token0.Symbol, raw.Token1.Symbol) {
		reserve0, reserve1 = reserve1, reserve0
	}
	return model.PairInfo{Reserve0: reserve0, Reserve1: reserve1, ReserveUSD: reserveUSD}, nil
}

func toUserPosition(raw rawUserPosition) (model.UserPosition, error) {
	balance, err := parseDecimal(raw.LiquidityTokenBalance)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("parse liquidityTokenBalance: %w", err)
	}
	totalSupply, err := parseDecimal(raw.Pair.TotalSupply)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("parse totalSupply: %w", err)
	}
	reserve0, err := parseDecimal(raw.Pair.Reserve0)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("parse reserve0: %w", err)
	}
	reserve1, err := parseDecimal(raw.Pair.Reserve1)
	if err != nil {
		return model.UserPosition{}, fmt.Errorf("parse reserve1: %w", err)
	}

	if needsSwap(raw.Pair.Token0.Symbol, raw.Pair.Token1.Symbol) {
		reserve0, reserve1 = reserve1, reserve0
	}
	return model.UserPosition{
		LPBalance:   balance,
		TotalSupply: totalSupply,
		Reserve0:    reserve0,
		Reserve1:    reserve1,
	}, nil
}

// parseDecimal treats an absent value as zero; subgraphs omit fields for
// empty pools.
func parseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
