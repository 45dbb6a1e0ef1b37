package escalation

import "github.com/remedyq/remedyq/internal/complexity"

// Config is the immutable escalation policy.
type Config struct {
	// MaxOllamaAttempts bounds retries at level 2.
	MaxOllamaAttempts int `yaml:"max_ollama_attempts"`
	// MaxJulesAttempts bounds retries at level 3.
	MaxJulesAttempts int `yaml:"max_jules_attempts"`
	// MaxJulesBoostAttempts bounds retries at level 4.
	MaxJulesBoostAttempts int `yaml:"max_jules_boost_attempts"`
	// CloudAgentEnabled makes level 6 reachable at all.
	CloudAgentEnabled bool `yaml:"cloud_agent_enabled"`
	// CloudAgentApprovalRequired gates level 6 on an explicit human grant.
	CloudAgentApprovalRequired bool `yaml:"cloud_agent_approval_required"`
	// CostBudgetDaily is the daily spend ceiling for level 6. Zero disables
	// the paid tier entirely.
	CostBudgetDaily float64 `yaml:"cost_budget_daily"`
	// CloudCostEstimate is the per-run cost assumed when checking
	// affordability before a level 6 invocation.
	CloudCostEstimate float64 `yaml:"cloud_cost_estimate"`

	// Weights and Thresholds drive the level 1 complexity routing.
	Weights    complexity.Weights    `yaml:"complexity_weights"`
	Thresholds complexity.Thresholds `yaml:"complexity_thresholds"`
}

// DefaultConfig returns the escalation policy defaults. The paid tier is
// off: enabling it requires both the flag and a non-zero budget.
func DefaultConfig() Config {
	return Config{
		MaxOllamaAttempts:          2,
		MaxJulesAttempts:           3,
		MaxJulesBoostAttempts:      3,
		CloudAgentEnabled:          false,
		CloudAgentApprovalRequired: true,
		CostBudgetDaily:            0,
		CloudCostEstimate:          5.0,
		Weights:                    complexity.DefaultWeights(),
		Thresholds:                 complexity.DefaultThresholds(),
	}
}

// ApplyDefaults fills zero-valued policy knobs with their defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.MaxOllamaAttempts <= 0 {
		c.MaxOllamaAttempts = def.MaxOllamaAttempts
	}
	if c.MaxJulesAttempts <= 0 {
		c.MaxJulesAttempts = def.MaxJulesAttempts
	}
	if c.MaxJulesBoostAttempts <= 0 {
		c.MaxJulesBoostAttempts = def.MaxJulesBoostAttempts
	}
	if c.CloudCostEstimate <= 0 {
		c.CloudCostEstimate = def.CloudCostEstimate
	}
	if c.Weights == (complexity.Weights{}) {
		c.Weights = def.Weights
	}
	if c.Thresholds == (complexity.Thresholds{}) {
		c.Thresholds = def.Thresholds
	}
}

// MaxAttempts returns the retry budget for a bounded level. Levels outside
// 2–4 have no retry budget.
func (c Config) MaxAttempts(level Level) int {
	switch level {
	case LevelOllama:
		return c.MaxOllamaAttempts
	case LevelJules:
		return c.MaxJulesAttempts
	case LevelJulesBoost:
		return c.MaxJulesBoostAttempts
	default:
		return 0
	}
}
