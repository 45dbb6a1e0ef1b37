package queue

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/remedyq/remedyq/internal/model"
)

func TestFileStorageMissingFileReadsEmpty(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "queue.json"))

	state, err := storage.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if state.Version != model.SchemaVersion {
		t.Errorf("version: got %d, want %d", state.Version, model.SchemaVersion)
	}
	if len(state.Items) != 0 {
		t.Errorf("expected empty state, got %d items", len(state.Items))
	}
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	storage := NewFileStorage(path)

	state := model.NewQueueState()
	state.UpdatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	state.Items = append(state.Items, model.QueueItem{
		ID:       "item_0a1b2c3d-0000-1111-2222-333344445555",
		Priority: model.PriorityCritical,
		Status:   model.ItemPending,
		Meta: model.TaskMeta{
			Type:    "security",
			Labels:  []string{"urgent"},
			Context: map[string]string{"repo": "remedyq"},
		},
		AddedAt: time.Now().UTC(),
	})

	if err := storage.Write(state); err != nil {
		t.Fatalf("write: %v", err)
	}

	// A second storage over the same path sees the same state.
	got, err := NewFileStorage(path).Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(got.Items))
	}
	item := got.Items[0]
	if item.Priority != model.PriorityCritical || item.Meta.Type != "security" {
		t.Errorf("item lost fields: %+v", item)
	}
	if item.Meta.Context["repo"] != "remedyq" {
		t.Errorf("context lost: %v", item.Meta.Context)
	}
	if !got.UpdatedAt.After(state.UpdatedAt) {
		t.Errorf("UpdatedAt not advanced by write: %v", got.UpdatedAt)
	}
}

func TestFileStorageRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "items": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStorage(path).Read()
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestFileStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{definitely not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStorage(path).Read(); err == nil {
		t.Error("expected error for corrupt state file")
	}
}

func TestFileStorageLockSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	first := NewFileStorage(path)
	if ok, err := first.AcquireLock("worker_a", time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	// A different process (fresh storage instance) sees the same lock.
	second := NewFileStorage(path)
	acquired, err := second.AcquireLock("worker_b", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if acquired {
		t.Error("lock must be visible across storage instances")
	}
}
