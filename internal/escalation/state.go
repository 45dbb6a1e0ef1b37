package escalation

import (
	"fmt"
	"sync"
	"time"

	"github.com/remedyq/remedyq/internal/complexity"
)

// Decision is what a ladder step concluded for a task.
type Decision string

const (
	// DecisionRetry keeps the task at the same level for another attempt.
	DecisionRetry Decision = "retry"
	// DecisionAdvanced moved the task to a higher level.
	DecisionAdvanced Decision = "advanced"
	// DecisionParked left the task at level 5 awaiting a human.
	DecisionParked Decision = "parked"
	// DecisionResolved is terminal success.
	DecisionResolved Decision = "resolved"
	// DecisionExhausted is terminal failure of every automatic tier.
	DecisionExhausted Decision = "exhausted"
)

// StateManager owns per-task escalation state and the level-transition
// rules. State is task-scoped: concurrent ladders over different tasks
// are safe.
type StateManager struct {
	mu    sync.RWMutex
	cfg   Config
	tasks map[string]*Task
}

// NewStateManager creates a state manager for the given policy.
func NewStateManager(cfg Config) *StateManager {
	cfg.ApplyDefaults()
	return &StateManager{
		cfg:   cfg,
		tasks: make(map[string]*Task),
	}
}

// Config returns the active escalation policy.
func (sm *StateManager) Config() Config {
	return sm.cfg
}

// CreateTask registers a new task at level 0.
func (sm *StateManager) CreateTask(id string, context map[string]string) (*Task, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.tasks[id]; exists {
		return nil, fmt.Errorf("task %s already exists", id)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        id,
		Level:     LevelStatic,
		Status:    TaskPending,
		Attempts:  make(map[Level]int),
		Context:   context,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sm.tasks[id] = task
	return task, nil
}

// AdoptTask registers a task restored from a snapshot, replacing any
// existing registration with the same ID.
func (sm *StateManager) AdoptTask(task *Task) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if task.Attempts == nil {
		task.Attempts = make(map[Level]int)
	}
	sm.tasks[task.ID] = task
}

// GetTask returns the registered task with the given ID, or nil.
func (sm *StateManager) GetTask(id string) *Task {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.tasks[id]
}

// RemoveTask archives a task out of the manager. Callers do this once the
// task reaches a terminal status.
func (sm *StateManager) RemoveTask(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.tasks, id)
}

// ApproveCloud grants the human approval required for a level 6 run. It
// acts on tasks resident in this StateManager, for embedders driving the
// ladder in-process. The CLI approves parked queue items out of process
// through queue.Manager.Unhold, which records the grant in item metadata
// for the next worker to restore.
func (sm *StateManager) ApproveCloud(id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	task, ok := sm.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if IsTerminalTask(task.Status) {
		return fmt.Errorf("task %s is already %s", id, task.Status)
	}
	task.CloudApproved = true
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// ResolveByHuman resolves a task parked at level 5 directly. Like
// ApproveCloud it operates on tasks resident in this StateManager; held
// queue items are resolved out of process through queue.Manager.ResolveHeld.
func (sm *StateManager) ResolveByHuman(id, note string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	task, ok := sm.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if err := ValidateTaskTransition(task.Status, TaskResolved); err != nil {
		return err
	}

	now := time.Now().UTC()
	task.Status = TaskResolved
	task.History = append(task.History, Attempt{
		Level:   LevelHuman,
		Outcome: OutcomeSucceeded,
		Detail:  note,
		At:      now,
	})
	task.UpdatedAt = now
	return nil
}

// BeginStep moves a task into in_progress for one ladder step. Parked
// tasks resume toward level 6 only when resumeToCloud is set.
func (sm *StateManager) BeginStep(task *Task, resumeToCloud bool) error {
	switch task.Status {
	case TaskPending:
		if err := ValidateTaskTransition(task.Status, TaskInProgress); err != nil {
			return err
		}
		task.Status = TaskInProgress
	case TaskPendingHuman:
		if !resumeToCloud {
			return ErrParked
		}
		if err := ValidateTaskTransition(task.Status, TaskInProgress); err != nil {
			return err
		}
		task.Status = TaskInProgress
		task.Level = LevelCloud
	case TaskInProgress:
		// mid-flight step, nothing to do
	default:
		return fmt.Errorf("task %s is %s", task.ID, task.Status)
	}
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// Park moves a task to the level 5 human review queue.
func (sm *StateManager) Park(task *Task, reason string) error {
	if task.Status == TaskPendingHuman {
		return nil
	}
	if err := ValidateTaskTransition(task.Status, TaskPendingHuman); err != nil {
		return err
	}

	now := time.Now().UTC()
	task.Status = TaskPendingHuman
	task.Level = LevelHuman
	task.History = append(task.History, Attempt{
		Level:   LevelHuman,
		Outcome: OutcomeNeedsEscalation,
		Detail:  reason,
		At:      now,
	})
	task.UpdatedAt = now
	return nil
}

// RecordOutcome applies the transition rules for one handler invocation
// and returns what the ladder decided. tier is meaningful only for level 1
// and cloudAvailable reports whether a level 6 run is enabled and
// affordable right now.
func (sm *StateManager) RecordOutcome(task *Task, level Level, res Result, tier complexity.Tier, cloudAvailable bool) (Decision, error) {
	now := time.Now().UTC()
	task.History = append(task.History, Attempt{
		Level:   level,
		Outcome: res.Outcome,
		Detail:  res.Detail,
		At:      now,
	})
	task.mergeContext(res.Context)
	task.UpdatedAt = now

	switch level {
	case LevelStatic:
		// Static analysis always advances to complexity evaluation,
		// regardless of pass or actionable findings.
		task.Level = LevelComplexity
		return DecisionAdvanced, nil

	case LevelComplexity:
		switch complexity.TierToAgent(tier, cloudAvailable) {
		case complexity.AgentOllama:
			task.Level = LevelOllama
		case complexity.AgentCloud:
			task.Level = LevelCloud
		default:
			task.Level = LevelJules
		}
		return DecisionAdvanced, nil

	case LevelOllama, LevelJules, LevelJulesBoost:
		if res.Outcome == OutcomeSucceeded {
			return sm.resolve(task)
		}
		if res.Outcome == OutcomeFailed {
			task.Attempts[level]++
			if task.Attempts[level] < sm.cfg.MaxAttempts(level) {
				return DecisionRetry, nil
			}
		}
		// Retry budget spent, or the handler asked to escalate.
		return sm.advanceFrom(task, level)

	case LevelCloud:
		if res.Outcome == OutcomeSucceeded {
			return sm.resolve(task)
		}
		if err := ValidateTaskTransition(task.Status, TaskExhausted); err != nil {
			return "", err
		}
		task.Status = TaskExhausted
		return DecisionExhausted, nil

	default:
		return "", fmt.Errorf("no transition rule for level %s", level)
	}
}

func (sm *StateManager) resolve(task *Task) (Decision, error) {
	if err := ValidateTaskTransition(task.Status, TaskResolved); err != nil {
		return "", err
	}
	task.Status = TaskResolved
	return DecisionResolved, nil
}

func (sm *StateManager) advanceFrom(task *Task, level Level) (Decision, error) {
	switch level {
	case LevelOllama:
		task.Level = LevelJules
	case LevelJules:
		task.Level = LevelJulesBoost
	case LevelJulesBoost:
		if err := sm.Park(task, "free tiers exhausted"); err != nil {
			return "", err
		}
		return DecisionParked, nil
	}
	return DecisionAdvanced, nil
}
