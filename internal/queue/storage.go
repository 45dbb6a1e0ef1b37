// Package queue provides mutually-exclusive, crash-safe access to the
// shared list of pending remediation work. A Storage backend holds the
// persisted QueueState and the single advisory lock; Manager layers
// priority-ordered scheduling and stats maintenance on top.
package queue

import (
	"errors"
	"time"

	"github.com/remedyq/remedyq/internal/model"
)

// Sentinel errors callers branch on.
var (
	// ErrUnsupportedVersion is returned when a persisted state carries a
	// schema version this code does not recognize. Never silently migrated.
	ErrUnsupportedVersion = errors.New("unsupported queue state version")
	// ErrNotLockHolder is returned by Manager operations invoked without
	// holding the queue lock.
	ErrNotLockHolder = errors.New("caller does not hold the queue lock")
	// ErrItemNotFound is returned when an item ID is not in the queue.
	ErrItemNotFound = errors.New("queue item not found")
	// ErrEmpty is returned by Dequeue when no eligible pending item exists.
	ErrEmpty = errors.New("no pending items")
)

// Storage is the durable state container for the queue. Every backend
// must provide the same lock semantics: acquisition succeeds for a free
// or expired lock and is idempotent per holder; a competing unexpired
// holder fails without mutating state; release by a non-holder is a
// silent no-op.
type Storage interface {
	// Read returns the current state. Absence of persisted state yields a
	// fresh empty state, not an error.
	Read() (*model.QueueState, error)
	// Write persists the state, stamping a fresh UpdatedAt.
	Write(state *model.QueueState) error
	// AcquireLock attempts to take the queue lock for holder with the
	// given TTL. Returns false, without error, on contention.
	AcquireLock(holder string, ttl time.Duration) (bool, error)
	// ReleaseLock clears the lock if holder still owns it.
	ReleaseLock(holder string) error
	// IsLocked reports whether an unexpired lock exists.
	IsLocked() (bool, error)
	// GetLock returns the current lock record, expired or not, or nil.
	GetLock() (*model.QueueLock, error)
}

// tryLock implements the shared lock-acquisition rule on a state snapshot.
// It returns the updated lock on success, or nil when a live competing
// holder exists.
func tryLock(current *model.QueueLock, holder string, ttl time.Duration, now time.Time) *model.QueueLock {
	if current != nil && !current.Expired(now) && current.Holder != holder {
		return nil
	}
	return &model.QueueLock{
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// cloneState deep-copies a queue state so callers can mutate their copy
// without aliasing backend-owned memory.
func cloneState(s *model.QueueState) *model.QueueState {
	out := &model.QueueState{
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		Items:     make([]model.QueueItem, len(s.Items)),
		Stats:     s.Stats,
	}
	if s.Lock != nil {
		lock := *s.Lock
		out.Lock = &lock
	}
	for i, item := range s.Items {
		out.Items[i] = cloneItem(item)
	}
	out.Stats.ByStatus = make(map[model.ItemStatus]int, len(s.Stats.ByStatus))
	for k, v := range s.Stats.ByStatus {
		out.Stats.ByStatus[k] = v
	}
	return out
}

func cloneItem(item model.QueueItem) model.QueueItem {
	out := item
	out.Meta.Labels = append([]string(nil), item.Meta.Labels...)
	if item.Meta.Context != nil {
		out.Meta.Context = make(map[string]string, len(item.Meta.Context))
		for k, v := range item.Meta.Context {
			out.Meta.Context[k] = v
		}
	}
	if item.StartedAt != nil {
		t := *item.StartedAt
		out.StartedAt = &t
	}
	if item.FinishedAt != nil {
		t := *item.FinishedAt
		out.FinishedAt = &t
	}
	if item.LastError != nil {
		s := *item.LastError
		out.LastError = &s
	}
	if item.FailReason != nil {
		s := *item.FailReason
		out.FailReason = &s
	}
	return out
}
