package queue

import (
	"fmt"
	"os"
	"time"

	"github.com/remedyq/remedyq/internal/atomicfile"
	"github.com/remedyq/remedyq/internal/lock"
	"github.com/remedyq/remedyq/internal/model"
)

// FileStorage persists the queue state as a single JSON document.
// Atomicity across processes comes from rename-on-write; same-path access
// within a process is serialized by a keyed mutex. A missing file reads as
// a fresh empty state; an unreadable or version-mismatched file is a fatal
// error for that operation.
type FileStorage struct {
	path    string
	mutexes *lock.MutexMap
}

// NewFileStorage creates a file backend at path. The parent directory is
// created on first write.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path:    path,
		mutexes: lock.NewMutexMap(),
	}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Read() (*model.QueueState, error) {
	var state *model.QueueState
	err := f.mutexes.WithLock(f.path, func() error {
		var err error
		state, err = f.readLocked()
		return err
	})
	return state, err
}

func (f *FileStorage) Write(state *model.QueueState) error {
	return f.mutexes.WithLock(f.path, func() error {
		current, err := f.readLocked()
		if err != nil {
			return err
		}

		next := cloneState(state)
		next.Version = model.SchemaVersion
		next.UpdatedAt = time.Now().UTC()
		// Lock ownership changes only through AcquireLock/ReleaseLock.
		next.Lock = current.Lock
		return atomicfile.WriteJSON(f.path, next)
	})
}

func (f *FileStorage) AcquireLock(holder string, ttl time.Duration) (bool, error) {
	acquired := false
	err := f.mutexes.WithLock(f.path, func() error {
		state, err := f.readLocked()
		if err != nil {
			return err
		}

		queueLock := tryLock(state.Lock, holder, ttl, time.Now().UTC())
		if queueLock == nil {
			return nil
		}
		state.Lock = queueLock
		state.UpdatedAt = time.Now().UTC()
		if err := atomicfile.WriteJSON(f.path, state); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (f *FileStorage) ReleaseLock(holder string) error {
	return f.mutexes.WithLock(f.path, func() error {
		state, err := f.readLocked()
		if err != nil {
			return err
		}
		if state.Lock == nil || state.Lock.Holder != holder {
			// A worker that lost its lock to expiry must not clobber the
			// new holder's lock.
			return nil
		}
		state.Lock = nil
		state.UpdatedAt = time.Now().UTC()
		return atomicfile.WriteJSON(f.path, state)
	})
}

func (f *FileStorage) IsLocked() (bool, error) {
	state, err := f.Read()
	if err != nil {
		return false, err
	}
	return state.Lock != nil && !state.Lock.Expired(time.Now().UTC()), nil
}

func (f *FileStorage) GetLock() (*model.QueueLock, error) {
	state, err := f.Read()
	if err != nil {
		return nil, err
	}
	return state.Lock, nil
}

func (f *FileStorage) readLocked() (*model.QueueState, error) {
	var state model.QueueState
	if err := atomicfile.ReadJSON(f.path, &state); err != nil {
		if os.IsNotExist(err) {
			return model.NewQueueState(), nil
		}
		return nil, fmt.Errorf("read queue state: %w", err)
	}
	if state.Version != model.SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, state.Version, model.SchemaVersion)
	}
	if state.Stats.ByStatus == nil {
		state.Stats.ByStatus = map[model.ItemStatus]int{}
	}
	if state.Items == nil {
		state.Items = []model.QueueItem{}
	}
	return &state, nil
}
