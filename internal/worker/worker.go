package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sora-xor/sora-farming-gateway/internal/chain"
	"github.com/sora-xor/sora-farming-gateway/internal/model"
	"github.com/sora-xor/sora-farming-gateway/internal/reward"
	"github.com/sora-xor/sora-farming-gateway/internal/storage/postgres"
	"github.com/sora-xor/sora-farming-gateway/internal/subgraph"
)

// RunConfig holds runtime settings for the sync worker.
type RunConfig struct {
	SyncInterval time.Duration

	// StartBlock -1 seeds the game at the chain head on first run.
	StartBlock         int64
	FormulaUpdateBlock uint64
	BlockOffset        uint64
}

// Worker drives the periodic cycle: pull position events from the
// subgraphs, record a liquidity snapshot, then run reward accrual up to
// the confirmed head.
type Worker struct {
	cfg       RunConfig
	chain     *chain.Client
	store     *postgres.Store
	uniswap   *subgraph.Client
	mooniswap *subgraph.Client
	coord     *reward.Coordinator
	params    reward.Params
	logger    *zap.Logger

	busy atomic.Bool
}

// NewWorker builds a Worker with its dependencies.
func NewWorker(
	cfg RunConfig,
	chainClient *chain.Client,
	store *postgres.Store,
	uniswapClient *subgraph.Client,
	mooniswapClient *subgraph.Client,
	params reward.Params,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:       cfg,
		chain:     chainClient,
		store:     store,
		uniswap:   uniswapClient,
		mooniswap: mooniswapClient,
		coord:     reward.NewCoordinator(params, logger),
		params:    params,
		logger:    logger,
	}
}

// Run executes cycles on the configured interval until ctx is cancelled.
// A cycle in flight finishes before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if w.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if w.store == nil {
		return fmt.Errorf("store is nil")
	}
	if w.uniswap == nil || w.mooniswap == nil {
		return fmt.Errorf("both subgraph clients are required")
	}
	if w.cfg.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	if err := w.Cycle(ctx); err != nil {
		w.logger.Error("cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Cycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error("cycle failed", zap.Error(err))
			}
		}
	}
}

// Cycle performs one full sync, snapshot, and reward pass. Overlapping
// triggers are dropped, never queued.
func (w *Worker) Cycle(ctx context.Context) error {
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.Warn("previous cycle still running, skipping")
		return nil
	}
	defer w.busy.Store(false)

	started := time.Now()

	head, err := w.chain.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if head <= w.cfg.BlockOffset {
		return fmt.Errorf("head %d below confirmation offset %d", head, w.cfg.BlockOffset)
	}
	confirmed := head - w.cfg.BlockOffset

	info, err := w.ensureGame(ctx, head)
	if err != nil {
		return err
	}

	if err := w.syncPools(ctx); err != nil {
		return err
	}

	if err := w.recordSnapshot(ctx, confirmed); err != nil {
		return err
	}

	if err := w.runRewards(ctx, info, confirmed); err != nil {
		return err
	}

	w.logger.Info("cycle complete",
		zap.Uint64("head", head),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// SyncOnce pulls events and records one liquidity snapshot without
// running reward accrual.
func (w *Worker) SyncOnce(ctx context.Context) error {
	head, err := w.chain.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if head <= w.cfg.BlockOffset {
		return fmt.Errorf("head %d below confirmation offset %d", head, w.cfg.BlockOffset)
	}

	if _, err := w.ensureGame(ctx, head); err != nil {
		return err
	}
	if err := w.syncPools(ctx); err != nil {
		return err
	}
	return w.recordSnapshot(ctx, head-w.cfg.BlockOffset)
}

// RewardOnce runs one reward accrual pass over data already in the store.
func (w *Worker) RewardOnce(ctx context.Context) error {
	head, err := w.chain.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get latest block: %w", err)
	}
	if head <= w.cfg.BlockOffset {
		return fmt.Errorf("head %d below confirmation offset %d", head, w.cfg.BlockOffset)
	}

	info, err := w.ensureGame(ctx, head)
	if err != nil {
		return err
	}
	return w.runRewards(ctx, info, head-w.cfg.BlockOffset)
}

// ensureGame loads the progress record, seeding it on the very first run.
func (w *Worker) ensureGame(ctx context.Context, head uint64) (model.GameInfo, error) {
	info, ok, err := w.store.GetInfo(ctx)
	if err != nil {
		return model.GameInfo{}, err
	}
	if ok {
		return info, nil
	}

	start := head
	if w.cfg.StartBlock >= 0 {
		start = uint64(w.cfg.StartBlock)
	}
	formulaUpdate := w.cfg.FormulaUpdateBlock
	if formulaUpdate == 0 {
		formulaUpdate = start
	}

	info = model.GameInfo{
		Status:             1,
		PSWAP:              decimal.Zero,
		StartBlock:         start,
		LastBlock:          start,
		FormulaUpdateBlock: formulaUpdate,
		LastUpdate:         time.Now().UTC(),
	}
	if err := w.store.InitInfo(ctx, info); err != nil {
		return model.GameInfo{}, err
	}
	w.logger.Info("game initialized",
		zap.Uint64("start_block", info.StartBlock),
		zap.Uint64("formula_update_block", info.FormulaUpdateBlock))
	return info, nil
}

// syncPools pulls new position events for all six pools, resuming each
// pool's pagination from its stored event count.
func (w *Worker) syncPools(ctx context.Context) error {
	for _, pool := range model.AllPools() {
		client := w.clientFor(pool.Protocol)

		count, err := w.store.EventCount(ctx, pool)
		if err != nil {
			return fmt.Errorf("sync %s: %w", pool, err)
		}

		events, err := client.LiquidityEvents(ctx, pool.Pair, count)
		if err != nil {
			return fmt.Errorf("sync %s: %w", pool, err)
		}
		if len(events) == 0 {
			continue
		}

		if err := w.store.InsertEvents(ctx, pool, events); err != nil {
			return fmt.Errorf("sync %s: %w", pool, err)
		}
		w.logger.Info("pool synced", zap.String("pool", pool.String()), zap.Int("events", len(events)))
	}
	return nil
}

// recordSnapshot stores the combined USD liquidity of all six pools at
// the confirmed block.
func (w *Worker) recordSnapshot(ctx context.Context, block uint64) error {
	total := decimal.Zero
	for _, client := range []*subgraph.Client{w.uniswap, w.mooniswap} {
		reserves, err := client.PairReserveUSD(ctx, block)
		if err != nil {
			return fmt.Errorf("snapshot at %d: %w", block, err)
		}
		for _, usd := range reserves {
			total = total.Add(usd)
		}
	}

	snapshot := model.LiquiditySnapshot{Block: block, LiquidityUSD: total}
	if err := w.store.InsertSnapshot(ctx, snapshot); err != nil {
		return err
	}
	w.logger.Info("snapshot recorded", zap.Uint64("block", block), zap.String("liquidity_usd", total.String()))
	return nil
}

// runRewards loads stored state, runs accrual up to the target block, and
// persists the result in one transaction.
func (w *Worker) runRewards(ctx context.Context, info model.GameInfo, confirmed uint64) error {
	target := confirmed
	if end := info.StartBlock + w.params.GameDuration; target > end {
		target = end
	}

	streams := make(map[model.Pair]reward.PairStream, len(model.AllPairs()))
	for _, pair := range model.AllPairs() {
		uniEvents, err := w.store.EventsByPool(ctx, model.PoolID{Protocol: model.ProtocolUniswap, Pair: pair})
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		mooEvents, err := w.store.EventsByPool(ctx, model.PoolID{Protocol: model.ProtocolMooniswap, Pair: pair})
		if err != nil {
			return fmt.Errorf("load events: %w", err)
		}
		streams[pair] = reward.PairStream{
			Uniswap:   reward.NewEventSeries(uniEvents),
			Mooniswap: reward.NewEventSeries(mooEvents),
		}
	}

	snapshots, err := w.store.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}
	users, err := w.store.Users(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	result, err := w.coord.Run(reward.RunInput{
		TargetBlock: target,
		Streams:     streams,
		Snapshots:   reward.NewSnapshotSeries(snapshots),
		Info:        info,
		Users:       users,
	})
	if err != nil {
		return fmt.Errorf("reward run: %w", err)
	}
	if !result.Computed {
		return nil
	}

	if err := w.store.ApplyRunResult(ctx, result); err != nil {
		return fmt.Errorf("apply run: %w", err)
	}
	w.logger.Info("rewards applied",
		zap.Uint64("target_block", target),
		zap.Int("users", len(result.Deltas)),
		zap.String("pswap_paid", result.Info.PSWAP.String()))
	return nil
}

func (w *Worker) clientFor(protocol model.Protocol) *subgraph.Client {
	if protocol == model.ProtocolMooniswap {
		return w.mooniswap
	}
	return w.uniswap
}
