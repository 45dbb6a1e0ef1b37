package escalation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/remedyq/remedyq/internal/complexity"
	"github.com/remedyq/remedyq/internal/cost"
	"github.com/remedyq/remedyq/internal/events"
)

// Sentinel errors callers branch on.
var (
	// ErrParked signals the task is waiting at level 5 for a human
	// decision and the ladder took no automatic action.
	ErrParked = errors.New("task parked for human review")
	// ErrTaskTerminal signals the task already reached resolved or
	// exhausted.
	ErrTaskTerminal = errors.New("task is in a terminal state")
)

// StepResult summarizes one ladder step.
type StepResult struct {
	Level    Level
	Outcome  Outcome
	Decision Decision
	Tier     complexity.Tier
}

// Ladder drives a task one step at a time: pick the level, gate the paid
// tier on budget and approval, invoke the handler, and record the outcome.
// The ladder holds no locks; it operates on a single task handed to it by
// whichever worker dequeued it.
type Ladder struct {
	cfg      Config
	state    *StateManager
	registry *Registry
	tracker  *cost.Tracker
	bus      *events.Bus
	logger   *log.Logger
}

// NewLadder wires a ladder. The registry is validated against the policy:
// a missing handler for a reachable level is a construction error, not a
// runtime surprise. bus may be nil.
func NewLadder(state *StateManager, registry *Registry, tracker *cost.Tracker, bus *events.Bus, logger *log.Logger) (*Ladder, error) {
	cfg := state.Config()
	if err := registry.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate handler registry: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ladder{
		cfg:      cfg,
		state:    state,
		registry: registry,
		tracker:  tracker,
		bus:      bus,
		logger:   logger,
	}, nil
}

// ProcessStep runs exactly one escalation step for the task. Expected
// policy outcomes (retry, advance, park) come back as a StepResult;
// handler infrastructure errors propagate to the caller unrecorded so the
// whole step can be retried.
func (l *Ladder) ProcessStep(ctx context.Context, task *Task) (StepResult, error) {
	if IsTerminalTask(task.Status) {
		return StepResult{}, fmt.Errorf("%w: task %s is %s", ErrTaskTerminal, task.ID, task.Status)
	}

	resume := task.Status == TaskPendingHuman && l.cloudGateOpen(task)
	if err := l.state.BeginStep(task, resume); err != nil {
		if errors.Is(err, ErrParked) {
			return StepResult{Level: LevelHuman, Decision: DecisionParked}, nil
		}
		return StepResult{}, err
	}

	level := task.Level

	// A task routed straight to the cloud tier still has to pass the
	// approval and affordability gates; failing either parks it at level 5
	// rather than dropping it.
	if level == LevelCloud && !l.cloudGateOpen(task) {
		if err := l.state.Park(task, l.cloudGateReason(task)); err != nil {
			return StepResult{}, err
		}
		l.logf("task=%s parked: %s", task.ID, l.cloudGateReason(task))
		return StepResult{Level: LevelHuman, Decision: DecisionParked}, nil
	}

	handler, ok := l.registry.Get(level)
	if !ok {
		return StepResult{}, fmt.Errorf("no handler for level %s", level)
	}

	l.publish(events.EventLevelStarted, map[string]any{
		"task":  task.ID,
		"level": int(level),
	})

	res, err := handler.Process(ctx, task)
	if err != nil {
		return StepResult{}, fmt.Errorf("level %s handler: %w", level, err)
	}

	var tier complexity.Tier
	if level == LevelComplexity {
		if res.Complexity == nil {
			return StepResult{}, fmt.Errorf("level %s handler returned no dimensions", level)
		}
		score := complexity.WeightedScore(*res.Complexity, l.cfg.Weights)
		tier = complexity.ScoreToTier(score, l.cfg.Thresholds)
		res.Detail = fmt.Sprintf("score=%.2f tier=%s", score, tier)
	}

	if res.Cost > 0 {
		l.tracker.Record(task.ID, agentClassFor(level), res.Cost, res.Detail)
	}

	cloudAvailable := l.cfg.CloudAgentEnabled && l.tracker.CanAfford(l.cfg.CloudCostEstimate, "")
	decision, err := l.state.RecordOutcome(task, level, res, tier, cloudAvailable)
	if err != nil {
		return StepResult{}, err
	}

	l.logf("task=%s level=%s outcome=%s decision=%s attempts=%d",
		task.ID, level, res.Outcome, decision, task.Attempts[level])

	switch decision {
	case DecisionAdvanced:
		l.publish(events.EventLevelAdvanced, map[string]any{
			"task": task.ID,
			"from": int(level),
			"to":   int(task.Level),
		})
	case DecisionResolved:
		l.publish(events.EventTaskResolved, map[string]any{"task": task.ID, "level": int(level)})
	case DecisionExhausted:
		l.publish(events.EventTaskExhausted, map[string]any{"task": task.ID})
	}

	return StepResult{Level: level, Outcome: res.Outcome, Decision: decision, Tier: tier}, nil
}

// Run drives a task until it resolves, exhausts, or parks. It is the
// convenience loop used by workers; each iteration is one ProcessStep.
func (l *Ladder) Run(ctx context.Context, task *Task) (StepResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return StepResult{}, err
		}

		res, err := l.ProcessStep(ctx, task)
		if err != nil {
			return StepResult{}, err
		}

		switch res.Decision {
		case DecisionResolved, DecisionExhausted, DecisionParked:
			return res, nil
		}

		task.UpdatedAt = time.Now().UTC()
	}
}

func (l *Ladder) cloudGateOpen(task *Task) bool {
	if !l.cfg.CloudAgentEnabled {
		return false
	}
	if l.cfg.CloudAgentApprovalRequired && !task.CloudApproved {
		return false
	}
	return l.tracker.CanAfford(l.cfg.CloudCostEstimate, "")
}

func (l *Ladder) cloudGateReason(task *Task) string {
	switch {
	case !l.cfg.CloudAgentEnabled:
		return "cloud agent disabled"
	case l.cfg.CloudAgentApprovalRequired && !task.CloudApproved:
		return "awaiting cloud agent approval"
	default:
		return "daily cost budget exhausted"
	}
}

func (l *Ladder) publish(eventType events.EventType, data map[string]any) {
	if l.bus != nil {
		l.bus.Publish(eventType, data)
	}
}

func (l *Ladder) logf(format string, args ...any) {
	l.logger.Printf("%s INFO ladder: %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

func agentClassFor(level Level) complexity.AgentClass {
	switch level {
	case LevelOllama:
		return complexity.AgentOllama
	case LevelCloud:
		return complexity.AgentCloud
	default:
		return complexity.AgentJules
	}
}
