package queue

import (
	"sync"
	"time"

	"github.com/remedyq/remedyq/internal/model"
)

// MemoryStorage is a process-lifetime Storage backend. It exists for
// tests and single-process setups; nothing survives a restart.
type MemoryStorage struct {
	mu    sync.Mutex
	state *model.QueueState
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{state: model.NewQueueState()}
}

func (m *MemoryStorage) Read() (*model.QueueState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

func (m *MemoryStorage) Write(state *model.QueueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneState(state)
	next.UpdatedAt = time.Now().UTC()
	// Lock ownership is managed through AcquireLock/ReleaseLock only.
	next.Lock = m.state.Lock
	m.state = next
	return nil
}

func (m *MemoryStorage) AcquireLock(holder string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock := tryLock(m.state.Lock, holder, ttl, time.Now().UTC())
	if lock == nil {
		return false, nil
	}
	m.state.Lock = lock
	return true, nil
}

func (m *MemoryStorage) ReleaseLock(holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Lock != nil && m.state.Lock.Holder == holder {
		m.state.Lock = nil
	}
	return nil
}

func (m *MemoryStorage) IsLocked() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Lock != nil && !m.state.Lock.Expired(time.Now().UTC()), nil
}

func (m *MemoryStorage) GetLock() (*model.QueueLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Lock == nil {
		return nil, nil
	}
	lock := *m.state.Lock
	return &lock, nil
}
