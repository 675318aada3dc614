package reward

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

func testStreams(events map[model.Pair][]model.PositionEvent) map[model.Pair]PairStream {
	streams := make(map[model.Pair]PairStream, 3)
	for _, pair := range model.AllPairs() {
		streams[pair] = PairStream{
			Uniswap:   NewEventSeries(events[pair]),
			Mooniswap: NewEventSeries(nil),
		}
	}
	return streams
}

func testInput(target uint64, info model.GameInfo, events map[model.Pair][]model.PositionEvent) RunInput {
	return RunInput{
		TargetBlock: target,
		Streams:     testStreams(events),
		Snapshots:   testSnapshots(),
		Info:        info,
		Users:       map[string]model.UserReward{},
	}
}

func enabledInfo() model.GameInfo {
	return model.GameInfo{
		Status:             1,
		PSWAP:              decimal.Zero,
		StartBlock:         0,
		LastBlock:          0,
		FormulaUpdateBlock: 1 << 62,
	}
}

func TestRunRequiresCompleteInputs(t *testing.T) {
	coordinator := NewCoordinator(DefaultParams(), nil)

	if _, err := coordinator.Run(RunInput{TargetBlock: 10, Streams: testStreams(nil), Info: enabledInfo()}); err == nil {
		t.Fatalf("expected error for missing snapshots")
	}

	input := testInput(10, enabledInfo(), nil)
	delete(input.Streams, model.PairXORVAL)
	if _, err := coordinator.Run(input); err == nil {
		t.Fatalf("expected error for missing stream")
	}
}

func TestRunPreconditionNoops(t *testing.T) {
	coordinator := NewCoordinator(DefaultParams(), nil)
	events := map[model.Pair][]model.PositionEvent{
		model.PairXORETH: {event(10, "a", "100")},
	}

	cases := []struct {
		name string
		info model.GameInfo
	}{
		{"disabled", func() model.GameInfo { i := enabledInfo(); i.Status = 0; return i }()},
		{"budget exhausted", func() model.GameInfo { i := enabledInfo(); i.PSWAP = dec("4000000"); return i }()},
		{"no new blocks", func() model.GameInfo { i := enabledInfo(); i.LastBlock = 50; return i }()},
		{"target at game start", func() model.GameInfo { i := enabledInfo(); i.StartBlock = 50; return i }()},
	}

	for _, tc := range cases {
		result, err := coordinator.Run(testInput(50, tc.info, events))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if result.Computed {
			t.Fatalf("%s: expected no-op", tc.name)
		}
		if len(result.Deltas) != 0 {
			t.Fatalf("%s: no-op produced %d deltas", tc.name, len(result.Deltas))
		}
		if result.Info != tc.info {
			t.Fatalf("%s: no-op mutated progress", tc.name)
		}
	}
}

func TestRunIdempotentOnProcessedRange(t *testing.T) {
	coordinator := NewCoordinator(DefaultParams(), nil)
	events := map[model.Pair][]model.PositionEvent{
		model.PairXORETH: {event(10, "a", "100")},
	}

	info := enabledInfo()
	first, err := coordinator.Run(testInput(50, info, events))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Computed {
		t.Fatalf("first run should compute")
	}

	// Same target again: the range is already processed, so the run is a
	// no-op with zero deltas and unchanged progress.
	second, err := coordinator.Run(testInput(50, first.Info, events))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Computed {
		t.Fatalf("second run over processed range should be a no-op")
	}
}

func TestRunAdvancesUserMarkers(t *testing.T) {
	coordinator := NewCoordinator(DefaultParams(), nil)
	events := map[model.Pair][]model.PositionEvent{
		model.PairXORETH: {event(10, "a", "100"), event(10, "b", "100")},
	}

	result, err := coordinator.Run(testInput(50, enabledInfo(), events))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Computed {
		t.Fatalf("run should compute")
	}
	if len(result.Deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(result.Deltas))
	}
	for _, delta := range result.Deltas {
		if delta.LastBlock != 50 {
			t.Fatalf("user %s marker = %d, want 50", delta.Address, delta.LastBlock)
		}
	}
	if result.Info.LastBlock != 50 {
		t.Fatalf("progress marker = %d, want 50", result.Info.LastBlock)
	}
}

func TestRunBudgetTruncationOrder(t *testing.T) {
	// Two users with identical positions; the budget remainder covers only
	// part of one reward. The user whose most recent event is older comes
	// first in the dedup order and absorbs the truncation; the second user
	// still gets a delta with their marker advanced and zero reward.
	params := DefaultParams()
	coordinator := NewCoordinator(params, nil)
	events := map[model.Pair][]model.PositionEvent{
		model.PairXORETH: {event(10, "a", "100"), event(11, "b", "100")},
	}

	info := enabledInfo()
	info.PSWAP = params.MaxBudget.Sub(dec("0.000000000001"))

	result, err := coordinator.Run(testInput(50, info, events))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Computed {
		t.Fatalf("run should compute")
	}
	if len(result.Deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(result.Deltas))
	}

	first, second := result.Deltas[0], result.Deltas[1]
	if first.Address != "a" || second.Address != "b" {
		t.Fatalf("processing order wrong: %s, %s", first.Address, second.Address)
	}
	if !first.Reward.Equal(dec("0.000000000001")) {
		t.Fatalf("first user should absorb the remainder, got %s", first.Reward)
	}
	if !second.Reward.IsZero() {
		t.Fatalf("second user should get zero, got %s", second.Reward)
	}
	if second.LastBlock != 50 {
		t.Fatalf("second user marker should still advance, got %d", second.LastBlock)
	}
	if !result.Info.PSWAP.Equal(params.MaxBudget) {
		t.Fatalf("paid = %s, want full budget", result.Info.PSWAP)
	}
}

func TestRunBudgetConservationAcrossRuns(t *testing.T) {
	params := DefaultParams()
	params.MaxBudget = dec("0.001")
	coordinator := NewCoordinator(params, nil)
	events := map[model.Pair][]model.PositionEvent{
		model.PairXORETH: {event(10, "a", "100")},
		model.PairXORVAL: {event(10, "b", "100")},
	}

	info := enabledInfo()
	users := map[string]model.UserReward{}
	totalGranted := decimal.Zero

	for _, target := range []uint64{1000, 2000, 3000} {
		input := testInput(target, info, events)
		input.Users = users
		result, err := coordinator.Run(input)
		if err != nil {
			t.Fatalf("run to %d: %v", target, err)
		}
		if !result.Computed {
			break
		}
		for _, delta := range result.Deltas {
			totalGranted = totalGranted.Add(delta.Reward)
			state := users[delta.Address]
			state.Address = delta.Address
			state.LastBlock = delta.LastBlock
			state.Reward = state.Reward.Add(delta.Reward)
			users[delta.Address] = state
		}
		info = result.Info
	}

	if totalGranted.GreaterThan(params.MaxBudget) {
		t.Fatalf("granted %s exceeds budget %s", totalGranted, params.MaxBudget)
	}
	if !info.PSWAP.Equal(params.MaxBudget) {
		t.Fatalf("budget not fully distributed: %s", info.PSWAP)
	}
}

func TestRunUserOrderPoolUnion(t *testing.T) {
	// All three Uniswap pools in pair order, then all three Mooniswap pools,
	// and no duplicates for users seen in several pools. A user in a later
	// Uniswap pair still precedes every Mooniswap-only user.
	streams := map[model.Pair]PairStream{
		model.PairXORETH: {
			Uniswap:   NewEventSeries([]model.PositionEvent{event(10, "a", "1")}),
			Mooniswap: NewEventSeries([]model.PositionEvent{event(5, "b", "1")}),
		},
		model.PairXORVAL: {
			Uniswap:   NewEventSeries([]model.PositionEvent{event(7, "c", "1"), event(8, "a", "1")}),
			Mooniswap: NewEventSeries(nil),
		},
		model.PairVALETH: {
			Uniswap:   NewEventSeries(nil),
			Mooniswap: NewEventSeries([]model.PositionEvent{event(9, "d", "1")}),
		},
	}

	coordinator := NewCoordinator(DefaultParams(), nil)
	got := coordinator.userOrder(RunInput{TargetBlock: 100, Streams: streams})
	want := []string{"a", "c", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("user order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("user order = %v, want %v", got, want)
		}
	}
}

func TestRunUserOrderProtocolMajor(t *testing.T) {
	// A user only in Uniswap XOR/VAL comes before a user only in Mooniswap
	// XOR/ETH: the protocol sweep outranks the pair sweep.
	streams := map[model.Pair]PairStream{
		model.PairXORETH: {
			Uniswap:   NewEventSeries(nil),
			Mooniswap: NewEventSeries([]model.PositionEvent{event(5, "moo-xe", "1")}),
		},
		model.PairXORVAL: {
			Uniswap:   NewEventSeries([]model.PositionEvent{event(10, "uni-xv", "1")}),
			Mooniswap: NewEventSeries(nil),
		},
		model.PairVALETH: {
			Uniswap:   NewEventSeries(nil),
			Mooniswap: NewEventSeries(nil),
		},
	}

	coordinator := NewCoordinator(DefaultParams(), nil)
	got := coordinator.userOrder(RunInput{TargetBlock: 100, Streams: streams})
	if len(got) != 2 || got[0] != "uni-xv" || got[1] != "moo-xe" {
		t.Fatalf("user order = %v, want [uni-xv moo-xe]", got)
	}
}
