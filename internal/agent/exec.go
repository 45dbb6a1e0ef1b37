// Package agent adapts external commands into escalation level handlers.
// Each level's fixer is an executable: exit code 0 reports success, exit
// code 2 declines the task and asks for escalation, anything else is a
// failed attempt. The complexity evaluator instead prints its dimensions
// as JSON on stdout.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/remedyq/remedyq/internal/complexity"
	"github.com/remedyq/remedyq/internal/escalation"
)

// Exit code contract for level handler commands.
const (
	exitSucceeded       = 0
	exitNeedsEscalation = 2
)

// ExecHandler runs one external command per invocation of its level.
type ExecHandler struct {
	level   escalation.Level
	command []string
	timeout time.Duration
	logger  *log.Logger
}

// NewExecHandler creates a handler that shells out to command for the
// given level. A zero timeout means no deadline beyond the caller's.
func NewExecHandler(level escalation.Level, command []string, timeout time.Duration, logger *log.Logger) (*ExecHandler, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("level %s: empty handler command", level)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExecHandler{level: level, command: command, timeout: timeout, logger: logger}, nil
}

func (h *ExecHandler) Level() escalation.Level { return h.level }

// Process executes the command with the task identity and context in the
// environment. Failure to start or a timeout is an infrastructure error;
// a non-zero exit is a policy outcome.
func (h *ExecHandler) Process(ctx context.Context, task *escalation.Task) (escalation.Result, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, h.command[0], h.command[1:]...)
	cmd.Env = append(cmd.Environ(),
		"REMEDYQ_TASK_ID="+task.ID,
		fmt.Sprintf("REMEDYQ_LEVEL=%d", int(h.level)),
		"REMEDYQ_CONTEXT="+encodeContext(task.Context),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return escalation.Result{}, fmt.Errorf("level %s command timed out: %w", h.level, ctx.Err())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return h.resultFor(exitSucceeded, stdout.Bytes(), stderr.String())
	case errors.As(err, &exitErr):
		return h.resultFor(exitErr.ExitCode(), stdout.Bytes(), stderr.String())
	default:
		return escalation.Result{}, fmt.Errorf("level %s command: %w", h.level, err)
	}
}

func (h *ExecHandler) resultFor(code int, stdout []byte, stderr string) (escalation.Result, error) {
	res := escalation.Result{Detail: strings.TrimSpace(stderr)}

	switch code {
	case exitSucceeded:
		res.Outcome = escalation.OutcomeSucceeded
	case exitNeedsEscalation:
		res.Outcome = escalation.OutcomeNeedsEscalation
	default:
		res.Outcome = escalation.OutcomeFailed
		if res.Detail == "" {
			res.Detail = fmt.Sprintf("exit code %d", code)
		}
	}

	// The complexity evaluator reports dimensions instead of a fix.
	if h.level == escalation.LevelComplexity {
		var dims complexity.Dimensions
		if err := sonic.Unmarshal(bytes.TrimSpace(stdout), &dims); err != nil {
			return escalation.Result{}, fmt.Errorf("level %s: parse dimensions: %w", h.level, err)
		}
		res.Complexity = &dims
		res.Outcome = escalation.OutcomeSucceeded
	}

	return res, nil
}

func encodeContext(context map[string]string) string {
	if len(context) == 0 {
		return "{}"
	}
	data, err := json.Marshal(context)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// BuildRegistry assembles a handler registry from per-level commands,
// keyed by level name (static-analysis, complexity-eval, ollama, jules,
// jules-boost, cloud-agent).
func BuildRegistry(commands map[string][]string, timeout time.Duration, logger *log.Logger) (*escalation.Registry, error) {
	levelsByName := map[string]escalation.Level{
		escalation.LevelStatic.String():     escalation.LevelStatic,
		escalation.LevelComplexity.String(): escalation.LevelComplexity,
		escalation.LevelOllama.String():     escalation.LevelOllama,
		escalation.LevelJules.String():      escalation.LevelJules,
		escalation.LevelJulesBoost.String(): escalation.LevelJulesBoost,
		escalation.LevelCloud.String():      escalation.LevelCloud,
	}

	var handlers []escalation.Handler
	for name, command := range commands {
		level, ok := levelsByName[name]
		if !ok {
			return nil, fmt.Errorf("unknown handler level %q", name)
		}
		h, err := NewExecHandler(level, command, timeout, logger)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return escalation.NewRegistry(handlers...)
}
