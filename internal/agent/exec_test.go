package agent

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/remedyq/remedyq/internal/escalation"
)

func testLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func testTask() *escalation.Task {
	return &escalation.Task{
		ID:      "item_0a1b2c3d-0000-1111-2222-333344445555",
		Context: map[string]string{"type": "bugfix"},
	}
}

func TestNewExecHandlerEmptyCommand(t *testing.T) {
	if _, err := NewExecHandler(escalation.LevelOllama, nil, 0, testLogger()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestProcessExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		outcome escalation.Outcome
	}{
		{"success", "exit 0", escalation.OutcomeSucceeded},
		{"needs escalation", "exit 2", escalation.OutcomeNeedsEscalation},
		{"failure", "exit 1", escalation.OutcomeFailed},
		{"other failure", "exit 7", escalation.OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewExecHandler(escalation.LevelOllama, []string{"sh", "-c", tt.script}, 0, testLogger())
			if err != nil {
				t.Fatal(err)
			}

			res, err := h.Process(context.Background(), testTask())
			if err != nil {
				t.Fatalf("process: %v", err)
			}
			if res.Outcome != tt.outcome {
				t.Errorf("outcome: got %s, want %s", res.Outcome, tt.outcome)
			}
		})
	}
}

func TestProcessCapturesStderrDetail(t *testing.T) {
	h, err := NewExecHandler(escalation.LevelJules,
		[]string{"sh", "-c", "echo 'could not build a patch' >&2; exit 1"}, 0, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.Process(context.Background(), testTask())
	if err != nil {
		t.Fatal(err)
	}
	if res.Detail != "could not build a patch" {
		t.Errorf("detail: got %q", res.Detail)
	}
}

func TestProcessEnvironment(t *testing.T) {
	h, err := NewExecHandler(escalation.LevelJules,
		[]string{"sh", "-c", `printf '%s' "$REMEDYQ_TASK_ID" >&2; exit 1`}, 0, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	task := testTask()
	res, err := h.Process(context.Background(), task)
	if err != nil {
		t.Fatal(err)
	}
	if res.Detail != task.ID {
		t.Errorf("REMEDYQ_TASK_ID not exported: got %q", res.Detail)
	}
}

func TestProcessTimeoutIsInfraError(t *testing.T) {
	h, err := NewExecHandler(escalation.LevelOllama,
		[]string{"sh", "-c", "sleep 5"}, 50*time.Millisecond, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.Process(context.Background(), testTask()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestProcessMissingBinaryIsInfraError(t *testing.T) {
	h, err := NewExecHandler(escalation.LevelOllama,
		[]string{"/definitely/not/a/binary"}, 0, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.Process(context.Background(), testTask()); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestProcessComplexityDimensions(t *testing.T) {
	script := `echo '{"filesChanged": 2, "semanticComplexity": 8, "riskLevel": 6}'`
	h, err := NewExecHandler(escalation.LevelComplexity,
		[]string{"sh", "-c", script}, 0, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.Process(context.Background(), testTask())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != escalation.OutcomeSucceeded {
		t.Errorf("outcome: got %s", res.Outcome)
	}
	if res.Complexity == nil {
		t.Fatal("dimensions not parsed")
	}
	if res.Complexity.SemanticComplexity != 8 || res.Complexity.FilesChanged != 2 {
		t.Errorf("dimensions: %+v", res.Complexity)
	}
}

func TestProcessComplexityBadOutput(t *testing.T) {
	h, err := NewExecHandler(escalation.LevelComplexity,
		[]string{"sh", "-c", "echo not-json"}, 0, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.Process(context.Background(), testTask()); err == nil {
		t.Error("expected parse error for malformed dimensions")
	}
}

func TestBuildRegistry(t *testing.T) {
	commands := map[string][]string{
		"static-analysis": {"true"},
		"complexity-eval": {"true"},
		"ollama":          {"true"},
		"jules":           {"true"},
		"jules-boost":     {"true"},
	}
	registry, err := BuildRegistry(commands, time.Minute, testLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := registry.Validate(escalation.DefaultConfig()); err != nil {
		t.Errorf("registry should satisfy the default policy: %v", err)
	}
}

func TestBuildRegistryUnknownLevel(t *testing.T) {
	if _, err := BuildRegistry(map[string][]string{"warp-drive": {"true"}}, 0, testLogger()); err == nil {
		t.Error("expected error for unknown level name")
	}
}
