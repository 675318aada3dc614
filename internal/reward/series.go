package reward

import (
	"sort"

	"github.com/sora-xor/sora-farming-gateway/internal/model"
)

// EventSeries is one pool's position events, sorted ascending by block and
// unique per (user, block). It is immutable for the duration of a run.
type EventSeries struct {
	events []model.PositionEvent
}

// NewEventSeries copies and sorts the events ascending by block. Ties keep
// their input order.
func NewEventSeries(events []model.PositionEvent) *EventSeries {
	sorted := make([]model.PositionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Block < sorted[j].Block
	})
	return &EventSeries{events: sorted}
}

func (s *EventSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.events)
}

// LatestAtOrBefore returns the most recent event at or before the block.
func (s *EventSeries) LatestAtOrBefore(block uint64) (model.PositionEvent, bool) {
	if s == nil || len(s.events) == 0 {
		return model.PositionEvent{}, false
	}
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Block > block
	})
	if idx == 0 {
		return model.PositionEvent{}, false
	}
	return s.events[idx-1], true
}

// UpTo returns the prefix of events with block <= the given block.
func (s *EventSeries) UpTo(block uint64) []model.PositionEvent {
	if s == nil || len(s.events) == 0 {
		return nil
	}
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Block > block
	})
	return s.events[:idx]
}

// ForUser filters the series down to one user's events, preserving order.
func (s *EventSeries) ForUser(userID string) *EventSeries {
	if s == nil {
		return &EventSeries{}
	}
	filtered := make([]model.PositionEvent, 0, 8)
	for _, ev := range s.events {
		if ev.UserID == userID {
			filtered = append(filtered, ev)
		}
	}
	return &EventSeries{events: filtered}
}

// uniqueByUser deduplicates events per user keeping each user's most recent
// event: it scans from the newest event backward, keeps the first occurrence
// per user, and restores chronological order. The resulting order decides
// which user absorbs budget truncation downstream, so it must stay exactly
// this.
func uniqueByUser(events []model.PositionEvent) []model.PositionEvent {
	seen := make(map[string]struct{}, len(events))
	picked := make([]model.PositionEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if _, ok := seen[events[i].UserID]; ok {
			continue
		}
		seen[events[i].UserID] = struct{}{}
		picked = append(picked, events[i])
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// SnapshotSeries is the total-liquidity snapshot history, ascending by block.
type SnapshotSeries struct {
	snapshots []model.LiquiditySnapshot
}

// NewSnapshotSeries copies and sorts the snapshots ascending by block.
func NewSnapshotSeries(snapshots []model.LiquiditySnapshot) *SnapshotSeries {
	sorted := make([]model.LiquiditySnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Block < sorted[j].Block
	})
	return &SnapshotSeries{snapshots: sorted}
}

func (s *SnapshotSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.snapshots)
}

// LatestAtOrBefore returns the snapshot in force at the block. Strict
// most-recent-at-or-before: a block before the first snapshot has none.
func (s *SnapshotSeries) LatestAtOrBefore(block uint64) (model.LiquiditySnapshot, bool) {
	if s == nil || len(s.snapshots) == 0 {
		return model.LiquiditySnapshot{}, false
	}
	idx := sort.Search(len(s.snapshots), func(i int) bool {
		return s.snapshots[i].Block > block
	})
	if idx == 0 {
		return model.LiquiditySnapshot{}, false
	}
	return s.snapshots[idx-1], true
}
