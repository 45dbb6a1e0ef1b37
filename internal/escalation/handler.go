package escalation

import (
	"context"
	"fmt"

	"github.com/remedyq/remedyq/internal/complexity"
)

// Outcome is what a level handler reports about one invocation.
type Outcome string

const (
	// OutcomeSucceeded means the level produced a fix.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the attempt failed; the ladder decides whether to
	// retry or advance.
	OutcomeFailed Outcome = "failed"
	// OutcomeNeedsEscalation means the level declines the task; advance
	// without consuming further retries.
	OutcomeNeedsEscalation Outcome = "needs_escalation"
)

// Result is the report from one handler invocation.
type Result struct {
	Outcome Outcome
	// Detail is a human-readable note recorded into the task history.
	Detail string
	// Cost is the money spent by this invocation, if any.
	Cost float64
	// Context carries forward anything the level learned.
	Context map[string]string
	// Complexity is populated by the level 1 handler and drives routing.
	Complexity *complexity.Dimensions
}

// Handler is the opaque capability that actually attempts a task at one
// level. The ladder knows nothing about how a fix is produced.
type Handler interface {
	Level() Level
	Process(ctx context.Context, task *Task) (Result, error)
}

// Registry maps levels to their handlers. It is validated at construction:
// a ladder refuses to start unless every reachable level for the active
// policy has a handler.
type Registry struct {
	handlers map[Level]Handler
}

// NewRegistry builds a registry from the given handlers. Duplicate levels
// and out-of-range levels are rejected.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[Level]Handler, len(handlers))}
	for _, h := range handlers {
		level := h.Level()
		if !level.IsValid() {
			return nil, fmt.Errorf("handler level %d out of range", int(level))
		}
		if _, dup := r.handlers[level]; dup {
			return nil, fmt.Errorf("duplicate handler for level %s", level)
		}
		r.handlers[level] = h
	}
	return r, nil
}

// Validate checks that every level reachable under cfg has a handler.
// Level 5 is a parking state and needs no handler; level 6 needs one only
// when the cloud tier is enabled.
func (r *Registry) Validate(cfg Config) error {
	required := []Level{LevelStatic, LevelComplexity, LevelOllama, LevelJules, LevelJulesBoost}
	if cfg.CloudAgentEnabled {
		required = append(required, LevelCloud)
	}
	for _, level := range required {
		if _, ok := r.handlers[level]; !ok {
			return fmt.Errorf("no handler registered for reachable level %s", level)
		}
	}
	return nil
}

// Get returns the handler for a level.
func (r *Registry) Get(level Level) (Handler, bool) {
	h, ok := r.handlers[level]
	return h, ok
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	ForLevel Level
	Fn       func(ctx context.Context, task *Task) (Result, error)
}

func (h HandlerFunc) Level() Level { return h.ForLevel }

func (h HandlerFunc) Process(ctx context.Context, task *Task) (Result, error) {
	return h.Fn(ctx, task)
}
