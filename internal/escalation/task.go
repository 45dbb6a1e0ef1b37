package escalation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// TaskStatus is the processing status of a task inside the ladder.
type TaskStatus string

const (
	// TaskPending means the task has not yet been picked up.
	TaskPending TaskStatus = "pending"
	// TaskInProgress means the ladder is actively stepping the task.
	TaskInProgress TaskStatus = "in_progress"
	// TaskPendingHuman means the task is parked at level 5 awaiting a
	// human decision.
	TaskPendingHuman TaskStatus = "pending_human"
	// TaskResolved is terminal: some level produced a fix.
	TaskResolved TaskStatus = "resolved"
	// TaskExhausted is terminal: every automatic tier failed.
	TaskExhausted TaskStatus = "exhausted"
)

var terminalTaskStatuses = map[TaskStatus]bool{
	TaskResolved:  true,
	TaskExhausted: true,
}

var validTaskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending: {
		TaskInProgress: true,
	},
	TaskInProgress: {
		TaskPendingHuman: true,
		TaskResolved:     true,
		TaskExhausted:    true,
	},
	TaskPendingHuman: {
		TaskInProgress: true,
		TaskResolved:   true,
	},
}

// IsTerminalTask reports whether a task status is terminal.
func IsTerminalTask(s TaskStatus) bool {
	return terminalTaskStatuses[s]
}

// ValidateTaskTransition returns an error when from → to is not a legal
// task transition.
func ValidateTaskTransition(from, to TaskStatus) error {
	if IsTerminalTask(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTaskTransitions[from]
	if !ok {
		return fmt.Errorf("unknown task status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid task transition: %q → %q", from, to)
	}
	return nil
}

// Attempt is one recorded ladder step for the history.
type Attempt struct {
	Level   Level     `json:"level"`
	Outcome Outcome   `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Task is one unit of remediation work being driven up the ladder. It is
// owned exclusively by the StateManager while being processed.
type Task struct {
	ID            string            `json:"id"`
	Level         Level             `json:"level"`
	Status        TaskStatus        `json:"status"`
	Attempts      map[Level]int     `json:"attempts"`
	Context       map[string]string `json:"context,omitempty"`
	History       []Attempt         `json:"history,omitempty"`
	CloudApproved bool              `json:"cloudApproved,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// mergeContext folds handler-provided context updates into the task so
// later levels receive everything earlier levels learned.
func (t *Task) mergeContext(updates map[string]string) {
	if len(updates) == 0 {
		return
	}
	if t.Context == nil {
		t.Context = make(map[string]string, len(updates))
	}
	for k, v := range updates {
		t.Context[k] = v
	}
}

// Snapshot serializes the task so callers can persist it across worker
// invocations, e.g. while parked for a human decision.
func (t *Task) Snapshot() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("snapshot task %s: %w", t.ID, err)
	}
	return string(data), nil
}

// RestoreTask rebuilds a task from a snapshot produced by Snapshot.
func RestoreTask(snapshot string) (*Task, error) {
	var t Task
	if err := sonic.Unmarshal([]byte(snapshot), &t); err != nil {
		return nil, fmt.Errorf("restore task: %w", err)
	}
	if t.Attempts == nil {
		t.Attempts = make(map[Level]int)
	}
	return &t, nil
}
