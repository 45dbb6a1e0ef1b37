// Package model defines the data structures shared by the queue, the
// escalation ladder, and the persistence backends: queue items, locks,
// aggregate stats, and the persisted queue snapshot.
package model

import "time"

// SchemaVersion is the version stamped into every persisted QueueState.
// Readers must reject versions they do not recognize.
const SchemaVersion = 2

// Item context keys used to carry escalation state across worker
// invocations.
const (
	// MetaKeySnapshot stores a serialized escalation task for held items.
	MetaKeySnapshot = "escalation_state"
	// MetaKeyCloudApproved records a human grant for the paid cloud tier.
	MetaKeyCloudApproved = "cloud_approved"
)

// Priority orders queue items. Lower values dequeue first.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3
)

// IsValid reports whether p is one of the three defined priorities.
func (p Priority) IsValid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

// TaskMeta is the remediation metadata attached to a queue item. It is the
// input to priority scoring and is handed to level handlers as part of the
// task context.
type TaskMeta struct {
	Type         string            `json:"type,omitempty"`
	Labels       []string          `json:"labels,omitempty"`
	Draft        bool              `json:"draft,omitempty"`
	HasConflicts bool              `json:"hasConflicts,omitempty"`
	ReviewCount  int               `json:"reviewCount,omitempty"`
	OpenedAt     time.Time         `json:"openedAt,omitzero"`
	Context      map[string]string `json:"context,omitempty"`
}

// QueueItem is one unit of remediation work in the shared queue.
type QueueItem struct {
	ID         string     `json:"id"`
	Priority   Priority   `json:"priority"`
	Status     ItemStatus `json:"status"`
	Meta       TaskMeta   `json:"meta"`
	AddedAt    time.Time  `json:"addedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Retries    int        `json:"retries"`
	LastError  *string    `json:"lastError,omitempty"`
	FailReason *string    `json:"failReason,omitempty"`
	// Held keeps a pending item out of dequeue selection, e.g. while it
	// waits for a human decision on cloud escalation.
	Held bool `json:"held,omitempty"`
}

// QueueLock is the single mutual-exclusion record over a queue state. At
// most one unexpired lock exists at any instant.
type QueueLock struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the lock has passed its TTL at the given instant.
func (l *QueueLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// QueueStats are aggregate counters maintained alongside the items.
// Invariant: Total == len(items) and the ByStatus counts sum to Total after
// every successful write.
type QueueStats struct {
	Total               int                `json:"total"`
	ByStatus            map[ItemStatus]int `json:"byStatus"`
	Completed24h        int                `json:"completed24h"`
	Failed24h           int                `json:"failed24h"`
	AvgProcessingTimeMs float64            `json:"avgProcessingTime"`
}

// QueueState is the full persisted snapshot of the shared queue.
type QueueState struct {
	Version   int         `json:"version"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Lock      *QueueLock  `json:"lock"`
	Items     []QueueItem `json:"items"`
	Stats     QueueStats  `json:"stats"`
}

// NewQueueState returns an empty state at the current schema version.
func NewQueueState() *QueueState {
	return &QueueState{
		Version:   SchemaVersion,
		UpdatedAt: time.Now().UTC(),
		Items:     []QueueItem{},
		Stats:     QueueStats{ByStatus: map[ItemStatus]int{}},
	}
}

// RecomputeStats rebuilds the aggregate stats from the item list. Rolling
// 24h windows are evaluated against now; average processing time is the
// mean over completed items that carry both timestamps.
func (s *QueueState) RecomputeStats(now time.Time) {
	stats := QueueStats{
		Total:    len(s.Items),
		ByStatus: map[ItemStatus]int{},
	}

	var sumMs float64
	var timed int
	cutoff := now.Add(-24 * time.Hour)

	for i := range s.Items {
		item := &s.Items[i]
		stats.ByStatus[item.Status]++

		if item.FinishedAt != nil && item.FinishedAt.After(cutoff) {
			switch item.Status {
			case ItemCompleted:
				stats.Completed24h++
			case ItemFailed:
				stats.Failed24h++
			}
		}
		if item.Status == ItemCompleted && item.StartedAt != nil && item.FinishedAt != nil {
			sumMs += float64(item.FinishedAt.Sub(*item.StartedAt).Milliseconds())
			timed++
		}
	}
	if timed > 0 {
		stats.AvgProcessingTimeMs = sumMs / float64(timed)
	}
	s.Stats = stats
}

// FindItem returns a pointer to the item with the given ID, or nil.
func (s *QueueState) FindItem(id string) *QueueItem {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i]
		}
	}
	return nil
}
