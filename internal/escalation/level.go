// Package escalation implements the ladder of resolution tiers a
// remediation task climbs: static analysis, complexity evaluation, cheap
// automated fixes, free-tier agents, a human review queue, and finally a
// paid cloud agent gated on approval and budget.
package escalation

import "fmt"

// Level is one rung of the escalation ladder. Levels are totally ordered
// and escalation only ever moves forward.
type Level int

const (
	// LevelStatic runs static analysis. Free, instant, no retries.
	LevelStatic Level = 0
	// LevelComplexity evaluates task complexity and routes to level 2 or 3.
	LevelComplexity Level = 1
	// LevelOllama is the cheap local automated fixer.
	LevelOllama Level = 2
	// LevelJules is the capable free-tier hosted agent.
	LevelJules Level = 3
	// LevelJulesBoost is the free-tier agent with expanded context.
	LevelJulesBoost Level = 4
	// LevelHuman parks the task for human review. Unbounded wait, no cost.
	LevelHuman Level = 5
	// LevelCloud is the paid cloud agent. Requires approval and budget.
	LevelCloud Level = 6
)

// MinLevel and MaxLevel bound the ladder.
const (
	MinLevel = LevelStatic
	MaxLevel = LevelCloud
)

var levelNames = map[Level]string{
	LevelStatic:     "static-analysis",
	LevelComplexity: "complexity-eval",
	LevelOllama:     "ollama",
	LevelJules:      "jules",
	LevelJulesBoost: "jules-boost",
	LevelHuman:      "human-review",
	LevelCloud:      "cloud-agent",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level-%d", int(l))
}

// IsValid reports whether l is inside the ladder.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}
