package model

import (
	"testing"
	"time"
)

func TestQueueLockExpired(t *testing.T) {
	now := time.Now().UTC()
	lock := QueueLock{
		Holder:     "worker_a",
		AcquiredAt: now.Add(-time.Minute),
		ExpiresAt:  now,
	}

	if !lock.Expired(now) {
		t.Error("lock expiring exactly now should count as expired")
	}
	if lock.Expired(now.Add(-time.Second)) {
		t.Error("lock should not be expired before its expiry")
	}
	if !lock.Expired(now.Add(time.Second)) {
		t.Error("lock should be expired after its expiry")
	}
}

func TestRecomputeStats(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-time.Hour)
	old := now.Add(-25 * time.Hour)
	started := recent.Add(-2 * time.Second)

	state := NewQueueState()
	state.Items = []QueueItem{
		{ID: "item_1", Status: ItemPending},
		{ID: "item_2", Status: ItemCompleted, StartedAt: &started, FinishedAt: &recent},
		{ID: "item_3", Status: ItemCompleted, FinishedAt: &old},
		{ID: "item_4", Status: ItemFailed, FinishedAt: &recent},
		{ID: "item_5", Status: ItemProcessing, StartedAt: &recent},
	}
	state.RecomputeStats(now)

	if state.Stats.Total != 5 {
		t.Errorf("total: got %d, want 5", state.Stats.Total)
	}
	if state.Stats.ByStatus[ItemCompleted] != 2 {
		t.Errorf("completed count: got %d, want 2", state.Stats.ByStatus[ItemCompleted])
	}
	if state.Stats.Completed24h != 1 {
		t.Errorf("completed24h: got %d, want 1", state.Stats.Completed24h)
	}
	if state.Stats.Failed24h != 1 {
		t.Errorf("failed24h: got %d, want 1", state.Stats.Failed24h)
	}
	// Only item_2 has both timestamps: 2s of processing.
	if state.Stats.AvgProcessingTimeMs != 2000 {
		t.Errorf("avg processing ms: got %v, want 2000", state.Stats.AvgProcessingTimeMs)
	}
}

func TestFindItem(t *testing.T) {
	state := NewQueueState()
	state.Items = []QueueItem{{ID: "item_a"}, {ID: "item_b"}}

	if got := state.FindItem("item_b"); got == nil || got.ID != "item_b" {
		t.Errorf("FindItem(item_b) = %v", got)
	}
	if got := state.FindItem("item_x"); got != nil {
		t.Errorf("FindItem(item_x) should be nil, got %v", got)
	}

	// FindItem must return a pointer into the slice so callers can mutate.
	state.FindItem("item_a").Status = ItemProcessing
	if state.Items[0].Status != ItemProcessing {
		t.Error("FindItem should return a mutable reference")
	}
}

func TestPriorityIsValid(t *testing.T) {
	for _, p := range []Priority{PriorityCritical, PriorityNormal, PriorityLow} {
		if !p.IsValid() {
			t.Errorf("priority %d should be valid", p)
		}
	}
	for _, p := range []Priority{0, 4, -1} {
		if p.IsValid() {
			t.Errorf("priority %d should be invalid", p)
		}
	}
}
