// Package complexity scores remediation tasks on a set of weighted
// dimensions and buckets the result into a qualitative tier that drives
// agent selection in the escalation ladder.
package complexity

import "math"

// Dimensions are the raw complexity inputs, each on a 0–10 scale.
type Dimensions struct {
	FilesChanged       float64 `json:"filesChanged" yaml:"files_changed"`
	LinesChanged       float64 `json:"linesChanged" yaml:"lines_changed"`
	DependencyDepth    float64 `json:"dependencyDepth" yaml:"dependency_depth"`
	TestCoverageNeed   float64 `json:"testCoverageNeed" yaml:"test_coverage_need"`
	CrossModuleImpact  float64 `json:"crossModuleImpact" yaml:"cross_module_impact"`
	SemanticComplexity float64 `json:"semanticComplexity" yaml:"semantic_complexity"`
	ContextRequired    float64 `json:"contextRequired" yaml:"context_required"`
	RiskLevel          float64 `json:"riskLevel" yaml:"risk_level"`
}

// Weights assigns a relative weight to each dimension. Callers normally
// supply weights summing to 1.0 so the score stays on the 0–10 scale.
type Weights struct {
	FilesChanged       float64 `yaml:"files_changed"`
	LinesChanged       float64 `yaml:"lines_changed"`
	DependencyDepth    float64 `yaml:"dependency_depth"`
	TestCoverageNeed   float64 `yaml:"test_coverage_need"`
	CrossModuleImpact  float64 `yaml:"cross_module_impact"`
	SemanticComplexity float64 `yaml:"semantic_complexity"`
	ContextRequired    float64 `yaml:"context_required"`
	RiskLevel          float64 `yaml:"risk_level"`
}

// DefaultWeights weight semantic complexity and risk the heaviest.
func DefaultWeights() Weights {
	return Weights{
		FilesChanged:       0.10,
		LinesChanged:       0.10,
		DependencyDepth:    0.10,
		TestCoverageNeed:   0.10,
		CrossModuleImpact:  0.15,
		SemanticComplexity: 0.20,
		ContextRequired:    0.10,
		RiskLevel:          0.15,
	}
}

// Tier is a qualitative complexity bucket.
type Tier string

const (
	TierTrivial  Tier = "trivial"
	TierSimple   Tier = "simple"
	TierModerate Tier = "moderate"
	TierComplex  Tier = "complex"
	TierExpert   Tier = "expert"
)

// Thresholds are the upper bounds of each tier below expert.
type Thresholds struct {
	Trivial  float64 `yaml:"trivial"`
	Simple   float64 `yaml:"simple"`
	Moderate float64 `yaml:"moderate"`
	Complex  float64 `yaml:"complex"`
}

// DefaultThresholds returns the standard tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Trivial: 2.5, Simple: 5.0, Moderate: 7.0, Complex: 8.5}
}

// AgentClass names the class of agent a complexity tier routes to.
type AgentClass string

const (
	// AgentOllama is the cheap local automated fixer.
	AgentOllama AgentClass = "ollama"
	// AgentJules is the capable free-tier hosted agent.
	AgentJules AgentClass = "jules"
	// AgentCloud is the paid cloud agent.
	AgentCloud AgentClass = "cloud"
)

// WeightedScore computes the weighted sum of the raw dimensions, rounded
// to two decimal places.
func WeightedScore(d Dimensions, w Weights) float64 {
	sum := d.FilesChanged*w.FilesChanged +
		d.LinesChanged*w.LinesChanged +
		d.DependencyDepth*w.DependencyDepth +
		d.TestCoverageNeed*w.TestCoverageNeed +
		d.CrossModuleImpact*w.CrossModuleImpact +
		d.SemanticComplexity*w.SemanticComplexity +
		d.ContextRequired*w.ContextRequired +
		d.RiskLevel*w.RiskLevel
	return math.Round(sum*100) / 100
}

// ScoreToTier buckets a weighted score using the given thresholds.
func ScoreToTier(score float64, t Thresholds) Tier {
	switch {
	case score <= t.Trivial:
		return TierTrivial
	case score <= t.Simple:
		return TierSimple
	case score <= t.Moderate:
		return TierModerate
	case score <= t.Complex:
		return TierComplex
	default:
		return TierExpert
	}
}

// TierToAgent maps a complexity tier to the agent class that should
// attempt it. Expert work goes to the paid cloud agent only when the cloud
// tier is explicitly enabled; otherwise it falls back to the free-tier
// agent rather than silently escalating cost.
func TierToAgent(tier Tier, cloudEnabled bool) AgentClass {
	switch tier {
	case TierTrivial, TierSimple:
		return AgentOllama
	case TierModerate, TierComplex:
		return AgentJules
	case TierExpert:
		if cloudEnabled {
			return AgentCloud
		}
		return AgentJules
	default:
		return AgentJules
	}
}
