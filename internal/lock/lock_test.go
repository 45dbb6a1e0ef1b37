package lock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMutexMapSerializesPerKey(t *testing.T) {
	m := NewMutexMap()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithLock("shared", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter: got %d, want 50", counter)
	}
}

func TestMutexMapIndependentKeys(t *testing.T) {
	m := NewMutexMap()

	m.Lock("a")
	defer m.Unlock("a")

	// A different key must not be blocked by "a".
	done := make(chan struct{})
	go func() {
		m.Lock("b")
		m.Unlock("b")
		close(done)
	}()
	<-done
}

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	first := NewFileLock(path)
	if err := first.TryLock(); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	second := NewFileLock(path)
	if err := second.TryLock(); err == nil {
		second.Unlock()
		t.Fatal("second lock should fail while the first is held")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	// Lock file is removed on release.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed after unlock")
	}

	if err := second.TryLock(); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	second.Unlock()
}

func TestFileLockCreatesStateDir(t *testing.T) {
	// A fresh install has no state directory until the first queue write;
	// the daemon lock must not depend on it existing.
	path := filepath.Join(t.TempDir(), ".remedyq", "queue.json.worker.lock")

	fl := NewFileLock(path)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("lock in missing directory: %v", err)
	}
	defer fl.Unlock()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

func TestFileLockUnlockWithoutLock(t *testing.T) {
	fl := NewFileLock(filepath.Join(t.TempDir(), "daemon.lock"))
	if err := fl.Unlock(); err != nil {
		t.Errorf("unlock without lock should be a no-op: %v", err)
	}
}
