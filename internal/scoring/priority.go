// Package scoring derives a queue priority from remediation task metadata.
package scoring

import (
	"strings"
	"time"

	"github.com/remedyq/remedyq/internal/model"
)

// Boost thresholds: items older than AgeBoostAfter or with more than
// ReviewBoostOver reviews are each bumped one priority step.
const (
	AgeBoostAfter   = 7 * 24 * time.Hour
	ReviewBoostOver = 2
)

// typePriorities is the floor applied for the task type.
var typePriorities = map[string]model.Priority{
	"security": model.PriorityCritical,
	"ci-fix":   model.PriorityCritical,
	"bugfix":   model.PriorityNormal,
	"feature":  model.PriorityNormal,
	"docs":     model.PriorityLow,
	"chore":    model.PriorityLow,
}

// labelRule maps a label pattern to a priority floor. Exact rules match the
// whole label, the rest match as substrings.
type labelRule struct {
	pattern  string
	exact    bool
	priority model.Priority
}

var labelRules = []labelRule{
	{pattern: "critical", priority: model.PriorityCritical},
	{pattern: "urgent", priority: model.PriorityCritical},
	{pattern: "hotfix", priority: model.PriorityCritical},
	{pattern: "p0", exact: true, priority: model.PriorityCritical},
	{pattern: "security", priority: model.PriorityCritical},
	{pattern: "vulnerability", priority: model.PriorityCritical},
	{pattern: "high", priority: model.PriorityNormal},
	{pattern: "important", priority: model.PriorityNormal},
	{pattern: "p1", exact: true, priority: model.PriorityNormal},
	{pattern: "bug", priority: model.PriorityNormal},
	{pattern: "fix", priority: model.PriorityNormal},
	{pattern: "low", priority: model.PriorityLow},
	{pattern: "nice-to-have", priority: model.PriorityLow},
	{pattern: "p3", exact: true, priority: model.PriorityLow},
}

// Score maps task metadata to a priority in {1,2,3}. The evaluation order
// is a tie-break policy and must not be reordered: type and label floors
// are applied as minimums, the draft/conflict penalty as a maximum, and the
// age/review boosts last so a stale draft can still climb back up.
func Score(meta model.TaskMeta, now time.Time) model.Priority {
	score := model.PriorityNormal

	if p, ok := typePriorities[strings.ToLower(meta.Type)]; ok {
		score = minPriority(score, p)
	}

	for _, label := range meta.Labels {
		l := strings.ToLower(strings.TrimSpace(label))
		for _, rule := range labelRules {
			if rule.exact {
				if l == rule.pattern {
					score = minPriority(score, rule.priority)
				}
			} else if strings.Contains(l, rule.pattern) {
				score = minPriority(score, rule.priority)
			}
		}
	}

	if meta.Draft || meta.HasConflicts {
		score = maxPriority(score, model.PriorityLow)
	}

	if !meta.OpenedAt.IsZero() && now.Sub(meta.OpenedAt) > AgeBoostAfter {
		score = boost(score)
	}
	if meta.ReviewCount > ReviewBoostOver {
		score = boost(score)
	}

	return score
}

func boost(p model.Priority) model.Priority {
	if p > model.PriorityCritical {
		return p - 1
	}
	return p
}

func minPriority(a, b model.Priority) model.Priority {
	if b < a {
		return b
	}
	return a
}

func maxPriority(a, b model.Priority) model.Priority {
	if b > a {
		return b
	}
	return a
}
