package escalation

import (
	"testing"
	"time"
)

func TestIsTerminalTask(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskPending, false},
		{TaskInProgress, false},
		{TaskPendingHuman, false},
		{TaskResolved, true},
		{TaskExhausted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsTerminalTask(tt.status); got != tt.terminal {
				t.Errorf("IsTerminalTask(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestValidateTaskTransition(t *testing.T) {
	valid := []struct {
		from, to TaskStatus
	}{
		{TaskPending, TaskInProgress},
		{TaskInProgress, TaskPendingHuman},
		{TaskInProgress, TaskResolved},
		{TaskInProgress, TaskExhausted},
		{TaskPendingHuman, TaskInProgress},
		{TaskPendingHuman, TaskResolved},
	}
	for _, tt := range valid {
		t.Run(string(tt.from)+"→"+string(tt.to), func(t *testing.T) {
			if err := ValidateTaskTransition(tt.from, tt.to); err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
		})
	}

	invalid := []struct {
		from, to TaskStatus
	}{
		{TaskPending, TaskResolved},
		{TaskPending, TaskPendingHuman},
		{TaskPendingHuman, TaskExhausted},
		{TaskResolved, TaskInProgress},
		{TaskExhausted, TaskInProgress},
	}
	for _, tt := range invalid {
		t.Run("invalid_"+string(tt.from)+"→"+string(tt.to), func(t *testing.T) {
			if err := ValidateTaskTransition(tt.from, tt.to); err == nil {
				t.Errorf("expected error for %q → %q", tt.from, tt.to)
			}
		})
	}
}

func TestSnapshotRestore(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	task := &Task{
		ID:     "item_0a1b2c3d-0000-1111-2222-333344445555",
		Level:  LevelJules,
		Status: TaskPendingHuman,
		Attempts: map[Level]int{
			LevelOllama: 2,
			LevelJules:  3,
		},
		Context:       map[string]string{"type": "bugfix"},
		CloudApproved: true,
		History: []Attempt{
			{Level: LevelOllama, Outcome: OutcomeFailed, Detail: "no fix", At: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	snapshot, err := task.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored, err := RestoreTask(snapshot)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored.ID != task.ID || restored.Level != task.Level || restored.Status != task.Status {
		t.Errorf("identity fields lost: %+v", restored)
	}
	if restored.Attempts[LevelJules] != 3 {
		t.Errorf("attempts lost: %v", restored.Attempts)
	}
	if !restored.CloudApproved {
		t.Error("approval flag lost")
	}
	if len(restored.History) != 1 || restored.History[0].Detail != "no fix" {
		t.Errorf("history lost: %v", restored.History)
	}
	if restored.Context["type"] != "bugfix" {
		t.Errorf("context lost: %v", restored.Context)
	}
}

func TestRestoreTaskInvalid(t *testing.T) {
	if _, err := RestoreTask("{not json"); err == nil {
		t.Error("expected error for malformed snapshot")
	}
}

func TestRestoreTaskNilAttempts(t *testing.T) {
	restored, err := RestoreTask(`{"id":"task_x","level":0,"status":"pending"}`)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Attempts == nil {
		t.Error("attempts map should be initialized")
	}
}
