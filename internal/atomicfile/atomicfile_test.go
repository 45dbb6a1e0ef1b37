package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	if err := WriteJSON(path, doc{Name: "a", Count: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got doc
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Errorf("round trip: got %+v", got)
	}
}

func TestWriteKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	if err := WriteJSON(path, doc{Name: "first"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	// No backup until a previous version exists.
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Error("first write should not create a backup")
	}

	if err := WriteJSON(path, doc{Name: "second"}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	var backup doc
	if err := ReadJSON(path+".bak", &backup); err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if backup.Name != "first" {
		t.Errorf("backup holds %q, want the previous version", backup.Name)
	}
}

func TestWriteRawRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	if err := WriteJSON(path, doc{Name: "good"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteRaw(path, []byte("{truncated")); err == nil {
		t.Fatal("expected validation error for invalid JSON")
	}

	// The good file must survive a rejected write.
	var got doc
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read after rejected write: %v", err)
	}
	if got.Name != "good" {
		t.Errorf("target corrupted: %+v", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSON(filepath.Join(dir, "doc.json"), doc{}); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "doc.json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	err := ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &doc{})
	if !os.IsNotExist(err) {
		t.Errorf("expected os.IsNotExist error, got %v", err)
	}
}
