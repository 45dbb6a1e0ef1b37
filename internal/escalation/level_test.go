package escalation

import "testing"

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelStatic, "static-analysis"},
		{LevelComplexity, "complexity-eval"},
		{LevelOllama, "ollama"},
		{LevelJules, "jules"},
		{LevelJulesBoost, "jules-boost"},
		{LevelHuman, "human-review"},
		{LevelCloud, "cloud-agent"},
		{Level(9), "level-9"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestLevelIsValid(t *testing.T) {
	for l := MinLevel; l <= MaxLevel; l++ {
		if !l.IsValid() {
			t.Errorf("level %d should be valid", int(l))
		}
	}
	if Level(-1).IsValid() || Level(7).IsValid() {
		t.Error("out-of-range levels should be invalid")
	}
}

func TestConfigMaxAttempts(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		level Level
		want  int
	}{
		{LevelOllama, 2},
		{LevelJules, 3},
		{LevelJulesBoost, 3},
		{LevelStatic, 0},
		{LevelCloud, 0},
	}
	for _, tt := range tests {
		if got := cfg.MaxAttempts(tt.level); got != tt.want {
			t.Errorf("MaxAttempts(%s) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestApplyDefaultsFillsZeroes(t *testing.T) {
	cfg := Config{CloudAgentEnabled: true}
	cfg.ApplyDefaults()

	if cfg.MaxOllamaAttempts != 2 || cfg.MaxJulesAttempts != 3 {
		t.Errorf("retry budgets not defaulted: %+v", cfg)
	}
	if cfg.CloudCostEstimate != 5.0 {
		t.Errorf("cost estimate not defaulted: %v", cfg.CloudCostEstimate)
	}
	if !cfg.CloudAgentEnabled {
		t.Error("explicit flags must survive defaulting")
	}
	if cfg.Thresholds.Trivial != 2.5 {
		t.Errorf("thresholds not defaulted: %+v", cfg.Thresholds)
	}
}
