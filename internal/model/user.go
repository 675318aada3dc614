package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserReward is the persisted reward state for one address. LastBlock is the
// high-water mark up to which the user's reward has been paid; a run only
// accounts for (LastBlock, targetBlock].
type UserReward struct {
	Address   string          `json:"address"`
	LastBlock uint64          `json:"last_block"`
	Reward    decimal.Decimal `json:"reward"`
}

// GameInfo is the single persisted progress record for the reward game.
type GameInfo struct {
	Status             int             `json:"status"`
	PSWAP              decimal.Decimal `json:"pswap"`
	StartBlock         uint64          `json:"start_block"`
	LastBlock          uint64          `json:"last_block"`
	FormulaUpdateBlock uint64          `json:"formula_update_block"`
	LastUpdate         time.Time       `json:"last_update"`
}

// Enabled reports whether reward runs may compute.
func (g GameInfo) Enabled() bool {
	return g.Status == 1
}
