package reward

import (
	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// PairStream bundles the two protocol event series for one trading pair.
// Users are deduplicated across both protocols when the shared denominator
// is computed.
type PairStream struct {
	Uniswap   *EventSeries
	Mooniswap *EventSeries
}

// Series returns the event series for one protocol.
func (ps PairStream) Series(protocol model.Protocol) *EventSeries {
	if protocol == model.ProtocolMooniswap {
		return ps.Mooniswap
	}
	return ps.Uniswap
}

// GameBlocks anchors one run's block arithmetic.
type GameBlocks struct {
	StartBlock         uint64
	FormulaUpdateBlock uint64
}

// DenominatorCache memoizes, per block, the total vesting-weighted token
// value across all active depositors of one pair. The value only depends on
// global pool state at that block, so it is shared by every user processed
// in the same run. It exists for one run over one pair and is never
// persisted.
type DenominatorCache struct {
	values map[uint64]decimal.Decimal
}

func NewDenominatorCache() *DenominatorCache {
	return &DenominatorCache{values: make(map[uint64]decimal.Decimal)}
}

func (c *DenominatorCache) get(block uint64) (decimal.Decimal, bool) {
	v, ok := c.values[block]
	return v, ok
}

// put keeps the first value written for a block.
func (c *DenominatorCache) put(block uint64, v decimal.Decimal) {
	if _, ok := c.values[block]; ok {
		return
	}
	c.values[block] = v
}

// Accumulator computes incremental rewards for one trading pair. One
// instance serves every user within a run so the denominator cache is
// shared; it must not be reused across runs.
type Accumulator struct {
	params    Params
	blocks    GameBlocks
	stream    PairStream
	snapshots *SnapshotSeries
	denom     *DenominatorCache
}

func NewAccumulator(params Params, blocks GameBlocks, stream PairStream, snapshots *SnapshotSeries) *Accumulator {
	return &Accumulator{
		params:    params,
		blocks:    blocks,
		stream:    stream,
		snapshots: snapshots,
		denom:     NewDenominatorCache(),
	}
}

type userStream struct {
	uniswap   *EventSeries
	mooniswap *EventSeries
}

// RewardOver accumulates the user's reward for this pair over the block
// range (fromBlock, toBlock]. The start is clamped to the game start block.
// Any block with missing or degenerate data contributes zero rather than
// aborting the run.
func (a *Accumulator) RewardOver(userID string, fromBlock, toBlock uint64) decimal.Decimal {
	user := userStream{
		uniswap:   a.stream.Uniswap.ForUser(userID),
		mooniswap: a.stream.Mooniswap.ForUser(userID),
	}
	total := decimal.Zero
	if user.uniswap.Len() == 0 && user.mooniswap.Len() == 0 {
		return total
	}

	from := fromBlock
	if from < a.blocks.StartBlock {
		from = a.blocks.StartBlock
	}

	for block := from + 1; block <= toBlock; block++ {
		poolUni, poolUniOK := a.stream.Uniswap.LatestAtOrBefore(block)
		poolMoo, poolMooOK := a.stream.Mooniswap.LatestAtOrBefore(block)
		if !poolUniOK && !poolMooOK {
			continue
		}

		gameTime := decimal.NewFromInt(int64(block - a.blocks.StartBlock))

		userUni, userUniOK := user.uniswap.LatestAtOrBefore(block)
		userMoo, userMooOK := user.mooniswap.LatestAtOrBefore(block)
		if !userUniOK && !userMooOK {
			continue
		}

		userTime := a.userGameTime(user, gameTime, block)
		if userTime.Sign() <= 0 {
			continue
		}

		userTokens := decimal.Zero
		if userUniOK && poolUniOK {
			userTokens = userTokens.Add(tokenValue(userUni, poolUni))
		}
		if userMooOK && poolMooOK {
			userTokens = userTokens.Add(tokenValue(userMoo, poolMoo))
		}
		if userTokens.IsZero() {
			continue
		}

		totalWeighted := a.totalWeighted(block, gameTime, poolUni, poolUniOK, poolMoo, poolMooOK)

		snapshot, ok := a.snapshots.LatestAtOrBefore(block)
		if !ok {
			continue
		}

		newFormula := block >= a.blocks.FormulaUpdateBlock
		rm := a.params.BlockReward(userTime, gameTime, snapshot.LiquidityUSD, userTokens, totalWeighted, newFormula)
		total = total.Add(floorZero(rm))
	}

	return total
}

// userGameTime returns the user's vesting clock at the block: continuous
// blocks since their balance last reached zero, capped at gameTime. Each
// protocol is scanned backward from the block to the most recent zero
// balance; the protocol giving the longer participation wins. A user whose
// latest event is a full withdrawal has a clock of zero.
func (a *Accumulator) userGameTime(user userStream, gameTime decimal.Decimal, block uint64) decimal.Decimal {
	earliest := nearestZeroBalanceBlock(user.uniswap.UpTo(block), block)
	if mooniswap := nearestZeroBalanceBlock(user.mooniswap.UpTo(block), block); mooniswap < earliest {
		earliest = mooniswap
	}
	userTime := decimal.NewFromInt(int64(block - earliest))
	if userTime.GreaterThanOrEqual(gameTime) {
		return gameTime
	}
	return userTime
}

// nearestZeroBalanceBlock walks the user's events backward and returns the
// block of the oldest event in the unbroken run of non-zero balances ending
// at the current block. With no events, or a zero balance as the latest
// event, it returns the current block (elapsed time zero).
func nearestZeroBalanceBlock(events []model.PositionEvent, block uint64) uint64 {
	nearest := block
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].LPBalance.IsZero() {
			break
		}
		nearest = events[i].Block
	}
	return nearest
}

// tokenValue returns the USD value of the user's share of one side of the
// pool: (lpBalance / lpTotalSupply) * reserveUSD / 2. A zero total supply
// yields zero.
func tokenValue(userEvent, poolEvent model.PositionEvent) decimal.Decimal {
	share := safeDiv(userEvent.LPBalance, poolEvent.LPTotalSupply)
	return safeDiv(share.Mul(poolEvent.ReserveUSD), two)
}

// totalWeighted returns the cached or freshly computed sum, over every
// unique depositor active at the block, of Vi(theirTime, gameTime) * their
// token value. Depositors are ordered Uniswap first then Mooniswap, each in
// most-recent-first-seen order restored to chronological.
func (a *Accumulator) totalWeighted(
	block uint64,
	gameTime decimal.Decimal,
	poolUni model.PositionEvent, poolUniOK bool,
	poolMoo model.PositionEvent, poolMooOK bool,
) decimal.Decimal {
	if cached, ok := a.denom.get(block); ok {
		return cached
	}

	uniswapUsers := uniqueByUser(a.stream.Uniswap.UpTo(block))
	mooniswapUsers := uniqueByUser(a.stream.Mooniswap.UpTo(block))
	merged := make([]model.PositionEvent, 0, len(uniswapUsers)+len(mooniswapUsers))
	merged = append(merged, uniswapUsers...)
	merged = append(merged, mooniswapUsers...)
	depositors := uniqueByUser(merged)

	sum := decimal.Zero
	for _, depositor := range depositors {
		user := userStream{
			uniswap:   a.stream.Uniswap.ForUser(depositor.UserID),
			mooniswap: a.stream.Mooniswap.ForUser(depositor.UserID),
		}
		userTime := a.userGameTime(user, gameTime, block)
		if userTime.Sign() <= 0 {
			continue
		}

		tokens := decimal.Zero
		if userEvent, ok := user.uniswap.LatestAtOrBefore(block); ok && poolUniOK {
			tokens = tokens.Add(tokenValue(userEvent, poolUni))
		}
		if userEvent, ok := user.mooniswap.LatestAtOrBefore(block); ok && poolMooOK {
			tokens = tokens.Add(tokenValue(userEvent, poolMoo))
		}
		if tokens.IsZero() {
			continue
		}

		sum = sum.Add(Vesting(userTime, gameTime).Mul(tokens).Round(denominatorScale))
	}

	a.denom.put(block, sum)
	return sum
}
