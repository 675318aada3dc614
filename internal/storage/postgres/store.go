package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
	"github.com/sora-xor/sora-farming-gateway/internal/reward"
)

// Store provides Postgres persistence for pool events, liquidity snapshots,
// user rewards, and the game progress record.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertEvents upserts a batch of position events for one pool. Conflicts on
// (protocol, pair, user, block) keep the stored row; subgraph snapshots are
// immutable once observed.
func (s *Store) InsertEvents(ctx context.Context, pool model.PoolID, events []model.PositionEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO pool_events (
				protocol, pair, block, user_address,
				lp_balance, lp_total_supply, reserve_usd, reserve0, reserve1,
				token0_price_usd, token1_price_usd, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
			ON CONFLICT (protocol, pair, user_address, block) DO NOTHING
		`,
			pool.Protocol.String(),
			pool.Pair.String(),
			int64(ev.Block),
			ev.UserID,
			ev.LPBalance.String(),
			ev.LPTotalSupply.String(),
			ev.ReserveUSD.String(),
			ev.Reserve0.String(),
			ev.Reserve1.String(),
			ev.Token0PriceUSD.String(),
			ev.Token1PriceUSD.String(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// EventCount returns how many events are stored for one pool; ingestion
// resumes pagination from this offset.
func (s *Store) EventCount(ctx context.Context, pool model.PoolID) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM pool_events WHERE protocol=$1 AND pair=$2`,
		pool.Protocol.String(), pool.Pair.String())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// EventsByPool loads one pool's events ascending by block.
func (s *Store) EventsByPool(ctx context.Context, pool model.PoolID) ([]model.PositionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT block, user_address, lp_balance, lp_total_supply, reserve_usd,
		       reserve0, reserve1, token0_price_usd, token1_price_usd
		FROM pool_events
		WHERE protocol=$1 AND pair=$2
		ORDER BY block ASC, id ASC
	`, pool.Protocol.String(), pool.Pair.String())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.PositionEvent, 0, 256)
	for rows.Next() {
		var (
			block   int64
			ev      model.PositionEvent
			numbers [7]string
		)
		if err := rows.Scan(&block, &ev.UserID,
			&numbers[0], &numbers[1], &numbers[2], &numbers[3],
			&numbers[4], &numbers[5], &numbers[6]); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Block = uint64(block)
		targets := []*decimal.Decimal{
			&ev.LPBalance, &ev.LPTotalSupply, &ev.ReserveUSD,
			&ev.Reserve0, &ev.Reserve1, &ev.Token0PriceUSD, &ev.Token1PriceUSD,
		}
		for i, target := range targets {
			parsed, err := decimal.NewFromString(numbers[i])
			if err != nil {
				return nil, fmt.Errorf("parse stored decimal: %w", err)
			}
			*target = parsed
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// InsertSnapshot records the total liquidity at a block.
func (s *Store) InsertSnapshot(ctx context.Context, snapshot model.LiquiditySnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO liquidity_snapshots (block, liquidity_usd, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (block) DO NOTHING
	`, int64(snapshot.Block), snapshot.LiquidityUSD.String())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Snapshots loads the full snapshot history ascending by block.
func (s *Store) Snapshots(ctx context.Context) ([]model.LiquiditySnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT block, liquidity_usd FROM liquidity_snapshots ORDER BY block ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]model.LiquiditySnapshot, 0, 256)
	for rows.Next() {
		var (
			block int64
			usd   string
		)
		if err := rows.Scan(&block, &usd); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		parsed, err := decimal.NewFromString(usd)
		if err != nil {
			return nil, fmt.Errorf("parse stored decimal: %w", err)
		}
		snapshots = append(snapshots, model.LiquiditySnapshot{Block: uint64(block), LiquidityUSD: parsed})
	}
	return snapshots, rows.Err()
}

// GetInfo returns the game progress record, reporting whether it exists.
func (s *Store) GetInfo(ctx context.Context) (model.GameInfo, bool, error) {
	var (
		info       model.GameInfo
		pswap      string
		start      int64
		last       int64
		formula    int64
		lastUpdate time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT status, pswap, start_block, last_block, formula_update_block, last_update
		FROM game_info WHERE id = 1
	`)
	err := row.Scan(&info.Status, &pswap, &start, &last, &formula, &lastUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GameInfo{}, false, nil
		}
		return model.GameInfo{}, false, fmt.Errorf("get game info: %w", err)
	}
	parsed, err := decimal.NewFromString(pswap)
	if err != nil {
		return model.GameInfo{}, false, fmt.Errorf("parse stored decimal: %w", err)
	}
	info.PSWAP = parsed
	info.StartBlock = uint64(start)
	info.LastBlock = uint64(last)
	info.FormulaUpdateBlock = uint64(formula)
	info.LastUpdate = lastUpdate
	return info, true, nil
}

// InitInfo creates the game progress record if absent.
func (s *Store) InitInfo(ctx context.Context, info model.GameInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO game_info (id, status, pswap, start_block, last_block, formula_update_block, last_update)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, info.Status, info.PSWAP.String(), int64(info.StartBlock),
		int64(info.LastBlock), int64(info.FormulaUpdateBlock), info.LastUpdate)
	if err != nil {
		return fmt.Errorf("init game info: %w", err)
	}
	return nil
}

// SetStatus enables or disables reward runs.
func (s *Store) SetStatus(ctx context.Context, status int) error {
	if _, err := s.pool.Exec(ctx, `UPDATE game_info SET status=$1 WHERE id=1`, status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetUser returns one user's reward state, reporting whether it exists.
func (s *Store) GetUser(ctx context.Context, address string) (model.UserReward, bool, error) {
	var (
		user      model.UserReward
		last      int64
		rewardStr string
	)
	row := s.pool.QueryRow(ctx,
		`SELECT address, last_block, reward FROM users WHERE address=$1`, address)
	err := row.Scan(&user.Address, &last, &rewardStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserReward{}, false, nil
		}
		return model.UserReward{}, false, fmt.Errorf("get user: %w", err)
	}
	parsed, err := decimal.NewFromString(rewardStr)
	if err != nil {
		return model.UserReward{}, false, fmt.Errorf("parse stored decimal: %w", err)
	}
	user.LastBlock = uint64(last)
	user.Reward = parsed
	return user, true, nil
}

// Users loads all user reward states keyed by address.
func (s *Store) Users(ctx context.Context) (map[string]model.UserReward, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, last_block, reward FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]model.UserReward, 64)
	for rows.Next() {
		var (
			user      model.UserReward
			last      int64
			rewardStr string
		)
		if err := rows.Scan(&user.Address, &last, &rewardStr); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		parsed, err := decimal.NewFromString(rewardStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored decimal: %w", err)
		}
		user.LastBlock = uint64(last)
		user.Reward = parsed
		users[user.Address] = user
	}
	return users, rows.Err()
}

// ApplyRunResult persists a computed run in one transaction: every user
// delta plus the advanced progress record. Progress moves atomically at run
// end so a crash mid-apply never leaves a half-paid run visible.
func (s *Store) ApplyRunResult(ctx context.Context, result reward.RunResult) error {
	if !result.Computed {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, delta := range result.Deltas {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (address, last_block, reward)
			VALUES ($1, $2, $3)
			ON CONFLICT (address) DO UPDATE SET
				last_block = EXCLUDED.last_block,
				reward = (users.reward::numeric + EXCLUDED.reward::numeric)::text
		`, delta.Address, int64(delta.LastBlock), delta.Reward.String())
		if err != nil {
			return fmt.Errorf("apply user delta %s: %w", delta.Address, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE game_info SET
			pswap = $1,
			last_block = $2,
			last_update = $3
		WHERE id = 1
	`, result.Info.PSWAP.String(), int64(result.Info.LastBlock), result.Info.LastUpdate)
	if err != nil {
		return fmt.Errorf("apply game info: %w", err)
	}

	return tx.Commit(ctx)
}
