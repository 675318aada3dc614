package reward

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

func testSnapshots() *SnapshotSeries {
	return NewSnapshotSeries([]model.LiquiditySnapshot{
		{Block: 0, LiquidityUSD: dec("18000000")},
	})
}

func singleUserStream(events ...model.PositionEvent) PairStream {
	return PairStream{
		Uniswap:   NewEventSeries(events),
		Mooniswap: NewEventSeries(nil),
	}
}

func TestTokenValueConcrete(t *testing.T) {
	// userBalance=100, totalSupply=1000, reserveUSD=1,000,000:
	// (100/1000) * 1,000,000 / 2 = 50,000.
	ev := model.PositionEvent{
		Block:         10,
		UserID:        "a",
		LPBalance:     dec("100"),
		LPTotalSupply: dec("1000"),
		ReserveUSD:    dec("1000000"),
	}
	got := tokenValue(ev, ev)
	if !got.Equal(dec("50000")) {
		t.Fatalf("tokenValue = %s, want 50000", got)
	}
}

func TestTokenValueZeroSupply(t *testing.T) {
	userEvent := event(10, "a", "100")
	poolEvent := event(10, "a", "100")
	poolEvent.LPTotalSupply = decimal.Zero
	if got := tokenValue(userEvent, poolEvent); !got.IsZero() {
		t.Fatalf("tokenValue with zero supply = %s, want 0", got)
	}
}

func TestVestingClockResetsAtZeroBalance(t *testing.T) {
	// Balance sequence 100 -> 0 -> 50: the clock resets at the withdrawal
	// and measures only from the re-entry onward.
	events := []model.PositionEvent{
		event(10, "a", "100"),
		event(20, "a", "0"),
		event(30, "a", "50"),
	}
	if got := nearestZeroBalanceBlock(events, 40); got != 30 {
		t.Fatalf("nearestZeroBalanceBlock = %d, want 30", got)
	}

	// No zero balance in history: vested since the first event.
	noReset := []model.PositionEvent{
		event(10, "a", "100"),
		event(30, "a", "50"),
	}
	if got := nearestZeroBalanceBlock(noReset, 40); got != 10 {
		t.Fatalf("nearestZeroBalanceBlock without reset = %d, want 10", got)
	}

	// Latest event is a full withdrawal: clock is zero.
	withdrawn := []model.PositionEvent{
		event(10, "a", "100"),
		event(20, "a", "0"),
	}
	if got := nearestZeroBalanceBlock(withdrawn, 40); got != 40 {
		t.Fatalf("nearestZeroBalanceBlock after withdrawal = %d, want 40", got)
	}
}

func TestUserGameTimeTakesBestProtocol(t *testing.T) {
	acc := NewAccumulator(DefaultParams(), GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}, PairStream{
		Uniswap:   NewEventSeries(nil),
		Mooniswap: NewEventSeries(nil),
	}, testSnapshots())

	user := userStream{
		uniswap:   NewEventSeries([]model.PositionEvent{event(30, "a", "10")}),
		mooniswap: NewEventSeries([]model.PositionEvent{event(10, "a", "10")}),
	}
	// Mooniswap participation started earlier, so it sets the clock.
	got := acc.userGameTime(user, dec("1000"), 40)
	if !got.Equal(dec("30")) {
		t.Fatalf("userGameTime = %s, want 30", got)
	}

	// The clock is capped at the game time.
	capped := acc.userGameTime(user, dec("20"), 40)
	if !capped.Equal(dec("20")) {
		t.Fatalf("capped userGameTime = %s, want 20", capped)
	}
}

func TestRewardZeroBeforeGameStart(t *testing.T) {
	blocks := GameBlocks{StartBlock: 100, FormulaUpdateBlock: 1 << 62}
	stream := singleUserStream(event(10, "a", "100"))
	acc := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots())

	// The whole range is at or before the game start.
	if got := acc.RewardOver("a", 0, 100); !got.IsZero() {
		t.Fatalf("reward before game start = %s, want 0", got)
	}
}

func TestRewardZeroWithoutSnapshot(t *testing.T) {
	blocks := GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}
	stream := singleUserStream(event(10, "a", "100"))
	snapshots := NewSnapshotSeries([]model.LiquiditySnapshot{
		{Block: 1 << 61, LiquidityUSD: dec("18000000")},
	})
	acc := NewAccumulator(DefaultParams(), blocks, stream, snapshots)

	// Tier lookup is strict most-recent-at-or-before; no snapshot in force
	// means zero contribution, not an abort.
	if got := acc.RewardOver("a", 0, 50); !got.IsZero() {
		t.Fatalf("reward without snapshot = %s, want 0", got)
	}
}

func TestRewardPositiveForSoleDepositor(t *testing.T) {
	blocks := GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}
	stream := singleUserStream(event(10, "a", "100"))
	acc := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots())

	got := acc.RewardOver("a", 0, 50)
	if got.Sign() <= 0 {
		t.Fatalf("expected positive reward, got %s", got)
	}

	// A stranger to the pool earns nothing.
	if other := acc.RewardOver("b", 0, 50); !other.IsZero() {
		t.Fatalf("non-depositor reward = %s, want 0", other)
	}
}

func TestRewardRangeHalfOpen(t *testing.T) {
	blocks := GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}
	stream := singleUserStream(event(10, "a", "100"))

	full := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots()).
		RewardOver("a", 10, 50)
	first := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots()).
		RewardOver("a", 10, 30)
	second := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots()).
		RewardOver("a", 30, 50)

	// (10,50] must equal (10,30] + (30,50]: no block is counted twice or
	// skipped at the seam.
	if !first.Add(second).Equal(full) {
		t.Fatalf("range split mismatch: %s + %s != %s", first, second, full)
	}
}

func TestDenominatorCacheSharedAcrossUsers(t *testing.T) {
	blocks := GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}
	stream := PairStream{
		Uniswap: NewEventSeries([]model.PositionEvent{
			event(10, "a", "100"),
			event(10, "b", "300"),
		}),
		Mooniswap: NewEventSeries(nil),
	}
	acc := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots())

	rewardA := acc.RewardOver("a", 0, 30)
	cachedBlocks := len(acc.denom.values)
	if cachedBlocks == 0 {
		t.Fatalf("denominator cache empty after first user")
	}

	rewardB := acc.RewardOver("b", 0, 30)
	if len(acc.denom.values) != cachedBlocks {
		t.Fatalf("second user recomputed denominators: %d != %d", len(acc.denom.values), cachedBlocks)
	}

	// b holds 3x the liquidity of a with the same vesting clock.
	if !rewardB.GreaterThan(rewardA) {
		t.Fatalf("expected larger reward for larger position: %s <= %s", rewardB, rewardA)
	}
}

func TestFormulaCutoverPerBlock(t *testing.T) {
	// formulaUpdateBlock = 100 with a range straddling it: blocks before
	// the cutover use t = gameTime, blocks at/after use t = 1. With a large
	// gameTime the updated variant emits more per block, so the straddling
	// range must earn strictly more than the same range fully on the old
	// variant.
	stream := singleUserStream(event(10, "a", "100"))

	straddling := NewAccumulator(DefaultParams(), GameBlocks{StartBlock: 0, FormulaUpdateBlock: 100}, stream, testSnapshots()).
		RewardOver("a", 90, 110)
	oldOnly := NewAccumulator(DefaultParams(), GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}, stream, testSnapshots()).
		RewardOver("a", 90, 110)
	newOnly := NewAccumulator(DefaultParams(), GameBlocks{StartBlock: 0, FormulaUpdateBlock: 0}, stream, testSnapshots()).
		RewardOver("a", 90, 110)

	if !straddling.GreaterThan(oldOnly) {
		t.Fatalf("straddling range should out-earn old-formula range: %s <= %s", straddling, oldOnly)
	}
	if !newOnly.GreaterThan(straddling) {
		t.Fatalf("new-formula range should out-earn straddling range: %s <= %s", newOnly, straddling)
	}

	// The per-block seam itself: decay at block 99 (old) vs block 100 (new),
	// all other inputs held constant.
	params := DefaultParams()
	liq := dec("18000000")
	before := params.Decay(dec("99"), liq)
	after := params.Decay(dec("1"), liq)
	if !after.GreaterThan(before) {
		t.Fatalf("decay did not step up at the cutover: %s <= %s", after, before)
	}
}

func TestMalformedDataDegradesToZero(t *testing.T) {
	blocks := GameBlocks{StartBlock: 0, FormulaUpdateBlock: 1 << 62}

	// A pool event with a zero total supply poisons single blocks, not the
	// run: the user still earns over blocks with sane data.
	bad := event(10, "a", "100")
	bad.LPTotalSupply = decimal.Zero
	good := event(30, "a", "100")

	stream := singleUserStream(bad, good)
	acc := NewAccumulator(DefaultParams(), blocks, stream, testSnapshots())

	got := acc.RewardOver("a", 0, 50)
	if got.Sign() <= 0 {
		t.Fatalf("expected positive reward despite bad block data, got %s", got)
	}
}
