package reward

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// RunInput carries all materialized inputs for one reward run. The engine
// performs no I/O: event series, snapshots, and prior state must be complete
// before invocation.
type RunInput struct {
	// TargetBlock is the already-offset safe chain height, capped by the
	// caller at the game's final block.
	TargetBlock uint64
	// Streams holds the merged two-protocol event series per trading pair.
	Streams map[model.Pair]PairStream
	// Snapshots is the total-liquidity history for tier lookups.
	Snapshots *SnapshotSeries
	// Info is the prior run progress.
	Info model.GameInfo
	// Users maps address to prior reward state; addresses absent from the
	// map are treated as first observed (last block zero).
	Users map[string]model.UserReward
}

// UserDelta is the incremental reward granted to one address in a run. The
// progress marker advances even when the granted amount is zero so the user
// is not recomputed.
type UserDelta struct {
	Address   string
	Reward    decimal.Decimal
	LastBlock uint64
}

// RunResult is a run's output. Computed is false when a precondition made
// the run a no-op; the caller retries later.
type RunResult struct {
	Computed bool
	Deltas   []UserDelta
	Info     model.GameInfo
}

// Coordinator drives one reward run: it iterates the deduplicated union of
// all six streams' users in a fixed order, sums each user's three-pair
// reward, clamps the sum against the budget, and advances progress markers.
type Coordinator struct {
	params Params
	logger *zap.Logger
}

func NewCoordinator(params Params, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{params: params, logger: logger}
}

// Run executes one reward run. Precondition failures (game disabled, budget
// exhausted, no new blocks, target not past the game start) return a result
// with Computed=false, not an error; errors are reserved for incomplete
// inputs.
func (c *Coordinator) Run(input RunInput) (RunResult, error) {
	if input.Snapshots == nil {
		return RunResult{}, fmt.Errorf("snapshot series is required")
	}
	for _, pair := range model.AllPairs() {
		if _, ok := input.Streams[pair]; !ok {
			return RunResult{}, fmt.Errorf("missing event stream for pair %s", pair)
		}
	}

	noop := RunResult{Computed: false, Info: input.Info}
	if !input.Info.Enabled() {
		c.logger.Info("reward run skipped: game disabled")
		return noop, nil
	}
	if input.Info.PSWAP.GreaterThanOrEqual(c.params.MaxBudget) {
		c.logger.Info("reward run skipped: budget exhausted",
			zap.String("paid", input.Info.PSWAP.String()))
		return noop, nil
	}
	if input.TargetBlock <= input.Info.LastBlock {
		c.logger.Info("reward run skipped: no new blocks",
			zap.Uint64("target", input.TargetBlock),
			zap.Uint64("last_processed", input.Info.LastBlock))
		return noop, nil
	}
	if input.TargetBlock <= input.Info.StartBlock {
		c.logger.Info("reward run skipped: target not past game start",
			zap.Uint64("target", input.TargetBlock),
			zap.Uint64("start", input.Info.StartBlock))
		return noop, nil
	}

	blocks := GameBlocks{
		StartBlock:         input.Info.StartBlock,
		FormulaUpdateBlock: input.Info.FormulaUpdateBlock,
	}

	accumulators := make(map[model.Pair]*Accumulator, len(input.Streams))
	for _, pair := range model.AllPairs() {
		accumulators[pair] = NewAccumulator(c.params, blocks, input.Streams[pair], input.Snapshots)
	}

	users := c.userOrder(input)
	budget := NewBudgetTracker(c.params.MaxBudget, input.Info.PSWAP)

	c.logger.Info("reward run start",
		zap.Uint64("target", input.TargetBlock),
		zap.Uint64("from", input.Info.LastBlock),
		zap.Int("users", len(users)))

	deltas := make([]UserDelta, 0, len(users))
	for _, address := range users {
		fromBlock := input.Users[address].LastBlock

		requested := decimal.Zero
		if !budget.Exhausted() {
			for _, pair := range model.AllPairs() {
				requested = requested.Add(accumulators[pair].RewardOver(address, fromBlock, input.TargetBlock))
			}
		}

		granted := budget.Grant(requested)
		deltas = append(deltas, UserDelta{
			Address:   address,
			Reward:    granted,
			LastBlock: input.TargetBlock,
		})
	}

	info := input.Info
	info.PSWAP = budget.Paid()
	info.LastBlock = input.TargetBlock
	info.LastUpdate = time.Now().UTC()

	c.logger.Info("reward run complete",
		zap.Uint64("target", input.TargetBlock),
		zap.Int("users", len(deltas)),
		zap.String("paid", info.PSWAP.String()))

	return RunResult{Computed: true, Deltas: deltas, Info: info}, nil
}

// userOrder returns the deduplicated union of depositors across all six
// streams: all three Uniswap pools in pair order, then all three Mooniswap
// pools, each stream in its reverse-scan dedup order. First occurrence wins.
// This order is load-bearing: it decides who absorbs budget truncation.
func (c *Coordinator) userOrder(input RunInput) []string {
	seen := make(map[string]struct{})
	order := make([]string, 0, 64)
	appendUsers := func(series *EventSeries) {
		for _, ev := range uniqueByUser(series.UpTo(input.TargetBlock)) {
			if _, ok := seen[ev.UserID]; ok {
				continue
			}
			seen[ev.UserID] = struct{}{}
			order = append(order, ev.UserID)
		}
	}
	for _, pool := range model.AllPools() {
		appendUsers(input.Streams[pool.Pair].Series(pool.Protocol))
	}
	return order
}
