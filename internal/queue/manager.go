package queue

import (
	"fmt"
	"log"
	"time"

	"github.com/remedyq/remedyq/internal/events"
	"github.com/remedyq/remedyq/internal/model"
	"github.com/remedyq/remedyq/internal/scoring"
)

// DefaultMaxItemRetries bounds how often a failed processing step may
// requeue an item before it is dead-lettered to failed.
const DefaultMaxItemRetries = 3

// Manager layers priority-ordered scheduling, stats maintenance, and
// dead-letter accounting over a Storage backend. Every mutating operation
// is a single read-modify-write cycle and requires the caller to hold the
// queue lock.
type Manager struct {
	storage    Storage
	bus        *events.Bus
	logger     *log.Logger
	maxRetries int
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxRetries overrides the dead-letter retry bound.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

// WithBus attaches an event bus for lifecycle events.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// NewManager creates a queue manager over the given backend.
func NewManager(storage Storage, logger *log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		storage:    storage,
		logger:     logger,
		maxRetries: DefaultMaxItemRetries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Storage exposes the backend, mainly so workers can drive the lock.
func (m *Manager) Storage() Storage {
	return m.storage
}

// Enqueue scores the metadata and appends a new pending item. The caller
// must hold the queue lock.
func (m *Manager) Enqueue(holder string, meta model.TaskMeta) (*model.QueueItem, error) {
	if err := m.checkHolder(holder); err != nil {
		return nil, err
	}

	id, err := model.GenerateID(model.IDTypeItem)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := model.QueueItem{
		ID:       id,
		Priority: scoring.Score(meta, now),
		Status:   model.ItemPending,
		Meta:     meta,
		AddedAt:  now,
	}

	state, err := m.storage.Read()
	if err != nil {
		return nil, err
	}
	state.Items = append(state.Items, item)
	if err := m.writeState(state); err != nil {
		return nil, err
	}

	m.logf("enqueued item=%s priority=%d", item.ID, item.Priority)
	m.publish(events.EventItemEnqueued, map[string]any{
		"item":     item.ID,
		"priority": int(item.Priority),
	})
	return &item, nil
}

// Dequeue selects the highest-priority eligible pending item and marks it
// processing within the same lock-guarded read-modify-write cycle.
// Selection: lowest priority value first, FIFO by AddedAt within equal
// priority. Held items are skipped.
func (m *Manager) Dequeue(holder string) (*model.QueueItem, error) {
	if err := m.checkHolder(holder); err != nil {
		return nil, err
	}

	state, err := m.storage.Read()
	if err != nil {
		return nil, err
	}

	var best *model.QueueItem
	for i := range state.Items {
		item := &state.Items[i]
		if item.Status != model.ItemPending || item.Held {
			continue
		}
		if best == nil ||
			item.Priority < best.Priority ||
			(item.Priority == best.Priority && item.AddedAt.Before(best.AddedAt)) {
			best = item
		}
	}
	if best == nil {
		return nil, ErrEmpty
	}

	if err := model.ValidateItemTransition(best.Status, model.ItemProcessing); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	best.Status = model.ItemProcessing
	best.StartedAt = &now

	if err := m.writeState(state); err != nil {
		return nil, err
	}

	m.logf("dequeued item=%s priority=%d holder=%s", best.ID, best.Priority, holder)
	out := cloneItem(*best)
	return &out, nil
}

// Complete marks a processing item completed.
func (m *Manager) Complete(holder, id string) error {
	err := m.transition(holder, id, model.ItemCompleted, func(item *model.QueueItem) {
		now := time.Now().UTC()
		item.FinishedAt = &now
	})
	if err != nil {
		return err
	}
	m.publish(events.EventItemCompleted, map[string]any{"item": id})
	return nil
}

// Fail marks a processing item failed with a terminal reason.
func (m *Manager) Fail(holder, id, reason string) error {
	err := m.transition(holder, id, model.ItemFailed, func(item *model.QueueItem) {
		now := time.Now().UTC()
		item.FinishedAt = &now
		item.FailReason = &reason
	})
	if err != nil {
		return err
	}
	m.publish(events.EventItemFailed, map[string]any{"item": id, "reason": reason})
	return nil
}

// Release returns a processing item to pending after a failed step,
// recording the error. Once the retry bound is spent the item is
// dead-lettered to failed instead.
func (m *Manager) Release(holder, id, errMsg string) error {
	if err := m.checkHolder(holder); err != nil {
		return err
	}

	state, err := m.storage.Read()
	if err != nil {
		return err
	}
	item := state.FindItem(id)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	item.Retries++
	item.LastError = &errMsg

	if item.Retries >= m.maxRetries {
		if err := model.ValidateItemTransition(item.Status, model.ItemFailed); err != nil {
			return err
		}
		now := time.Now().UTC()
		reason := fmt.Sprintf("max retries exceeded (%d/%d): %s", item.Retries, m.maxRetries, errMsg)
		item.Status = model.ItemFailed
		item.FinishedAt = &now
		item.FailReason = &reason
		if err := m.writeState(state); err != nil {
			return err
		}
		m.logf("dead-lettered item=%s retries=%d", id, item.Retries)
		m.publish(events.EventItemFailed, map[string]any{"item": id, "reason": reason})
		return nil
	}

	if err := model.ValidateItemTransition(item.Status, model.ItemPending); err != nil {
		return err
	}
	item.Status = model.ItemPending
	item.StartedAt = nil
	if err := m.writeState(state); err != nil {
		return err
	}
	m.logf("released item=%s retries=%d", id, item.Retries)
	return nil
}

// Hold parks a processing item back to pending but keeps it out of
// dequeue selection, stashing the caller's snapshot in the item context.
func (m *Manager) Hold(holder, id, snapshot string) error {
	if err := m.checkHolder(holder); err != nil {
		return err
	}

	state, err := m.storage.Read()
	if err != nil {
		return err
	}
	item := state.FindItem(id)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err := model.ValidateItemTransition(item.Status, model.ItemPending); err != nil {
		return err
	}

	item.Status = model.ItemPending
	item.StartedAt = nil
	item.Held = true
	if item.Meta.Context == nil {
		item.Meta.Context = make(map[string]string)
	}
	item.Meta.Context[model.MetaKeySnapshot] = snapshot

	if err := m.writeState(state); err != nil {
		return err
	}
	m.logf("held item=%s", id)
	return nil
}

// Unhold makes a held item eligible for dequeue again, optionally marking
// the cloud tier approved for it.
func (m *Manager) Unhold(holder, id string, approveCloud bool) error {
	if err := m.checkHolder(holder); err != nil {
		return err
	}

	state, err := m.storage.Read()
	if err != nil {
		return err
	}
	item := state.FindItem(id)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if !item.Held {
		return fmt.Errorf("item %s is not held", id)
	}

	item.Held = false
	if approveCloud {
		if item.Meta.Context == nil {
			item.Meta.Context = make(map[string]string)
		}
		item.Meta.Context[model.MetaKeyCloudApproved] = "true"
	}

	if err := m.writeState(state); err != nil {
		return err
	}
	m.logf("unheld item=%s approved=%t", id, approveCloud)
	return nil
}

// ResolveHeld marks a held item completed on behalf of a human decision,
// recording the note in the item context.
func (m *Manager) ResolveHeld(holder, id, note string) error {
	if err := m.checkHolder(holder); err != nil {
		return err
	}

	state, err := m.storage.Read()
	if err != nil {
		return err
	}
	item := state.FindItem(id)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if !item.Held {
		return fmt.Errorf("item %s is not held", id)
	}

	// pending → processing → completed in one cycle.
	if err := model.ValidateItemTransition(item.Status, model.ItemProcessing); err != nil {
		return err
	}
	if err := model.ValidateItemTransition(model.ItemProcessing, model.ItemCompleted); err != nil {
		return err
	}

	now := time.Now().UTC()
	item.Status = model.ItemCompleted
	item.FinishedAt = &now
	item.Held = false
	if note != "" {
		if item.Meta.Context == nil {
			item.Meta.Context = make(map[string]string)
		}
		item.Meta.Context["resolution"] = note
	}

	if err := m.writeState(state); err != nil {
		return err
	}
	m.logf("resolved held item=%s", id)
	m.publish(events.EventItemCompleted, map[string]any{"item": id})
	return nil
}

// Cancel removes a pending item from scheduling.
func (m *Manager) Cancel(holder, id string) error {
	return m.transition(holder, id, model.ItemCancelled, func(item *model.QueueItem) {
		now := time.Now().UTC()
		item.FinishedAt = &now
	})
}

// Stats returns the aggregate stats recomputed against the current time,
// so the rolling 24h windows are fresh.
func (m *Manager) Stats() (model.QueueStats, error) {
	state, err := m.storage.Read()
	if err != nil {
		return model.QueueStats{}, err
	}
	state.RecomputeStats(time.Now().UTC())
	return state.Stats, nil
}

// Items returns a snapshot of all queue items.
func (m *Manager) Items() ([]model.QueueItem, error) {
	state, err := m.storage.Read()
	if err != nil {
		return nil, err
	}
	return state.Items, nil
}

func (m *Manager) transition(holder, id string, to model.ItemStatus, mutate func(*model.QueueItem)) error {
	if err := m.checkHolder(holder); err != nil {
		return err
	}

	state, err := m.storage.Read()
	if err != nil {
		return err
	}
	item := state.FindItem(id)
	if item == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err := model.ValidateItemTransition(item.Status, to); err != nil {
		return err
	}

	item.Status = to
	if mutate != nil {
		mutate(item)
	}
	if err := m.writeState(state); err != nil {
		return err
	}
	m.logf("item=%s -> %s", id, to)
	return nil
}

// writeState recomputes stats and persists: stats stay consistent with
// the item list after every successful write.
func (m *Manager) writeState(state *model.QueueState) error {
	state.RecomputeStats(time.Now().UTC())
	return m.storage.Write(state)
}

func (m *Manager) checkHolder(holder string) error {
	lock, err := m.storage.GetLock()
	if err != nil {
		return err
	}
	if lock == nil || lock.Expired(time.Now().UTC()) || lock.Holder != holder {
		return fmt.Errorf("%w: %s", ErrNotLockHolder, holder)
	}
	return nil
}

func (m *Manager) publish(eventType events.EventType, data map[string]any) {
	if m.bus != nil {
		m.bus.Publish(eventType, data)
	}
}

func (m *Manager) logf(format string, args ...any) {
	m.logger.Printf("%s INFO queue: %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}
