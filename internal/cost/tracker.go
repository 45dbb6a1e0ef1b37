// Package cost maintains the daily ledger of money spent by paid
// resolution tiers and answers affordability queries against a daily
// budget. The tracker never blocks a caller; the escalation ladder is
// responsible for consulting CanAfford before invoking a paid tier.
package cost

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/remedyq/remedyq/internal/atomicfile"
	"github.com/remedyq/remedyq/internal/complexity"
)

// DayFormat keys ledger days by UTC calendar date.
const DayFormat = "2006-01-02"

// warnFraction is the remaining-budget fraction at or below which the
// budget warning fires.
const warnFraction = 0.20

// Entry is one immutable ledger record.
type Entry struct {
	Timestamp   time.Time             `json:"timestamp"`
	TaskID      string                `json:"taskId"`
	Tier        complexity.AgentClass `json:"tier"`
	Amount      float64               `json:"amount"`
	Description string                `json:"description,omitempty"`
}

// DailyStats is the derived per-day aggregate. It is computed on demand
// and never stored.
type DailyStats struct {
	Date       string                            `json:"date"`
	TotalCost  float64                           `json:"totalCost"`
	Operations int                               `json:"operations"`
	ByTier     map[complexity.AgentClass]float64 `json:"byTier"`
}

// WarningFunc receives the remaining and total daily budget when the
// ledger nears exhaustion. Invoked synchronously from Record, at most once
// per recording call.
type WarningFunc func(remaining, total float64)

// Tracker is the in-memory daily cost ledger.
type Tracker struct {
	mu          sync.Mutex
	dailyBudget float64
	ledger      map[string][]Entry
	warned      map[string]bool
	onWarning   WarningFunc
}

// NewTracker creates a tracker with the given daily budget. A budget of 0
// categorically disables the paid tier: CanAfford always answers false.
func NewTracker(dailyBudget float64, onWarning WarningFunc) *Tracker {
	return &Tracker{
		dailyBudget: dailyBudget,
		ledger:      make(map[string][]Entry),
		warned:      make(map[string]bool),
		onWarning:   onWarning,
	}
}

// DailyBudget returns the configured daily budget.
func (t *Tracker) DailyBudget() float64 {
	return t.dailyBudget
}

// Record appends an entry to today's ledger and fires the budget warning
// on the entry that drops the remaining budget to the warning threshold.
func (t *Tracker) Record(taskID string, tier complexity.AgentClass, amount float64, description string) Entry {
	now := time.Now().UTC()
	entry := Entry{
		Timestamp:   now,
		TaskID:      taskID,
		Tier:        tier,
		Amount:      amount,
		Description: description,
	}

	t.mu.Lock()
	day := now.Format(DayFormat)
	t.ledger[day] = append(t.ledger[day], entry)

	var warn bool
	var remaining float64
	if t.dailyBudget > 0 && !t.warned[day] {
		remaining = t.dailyBudget - t.totalForLocked(day)
		if remaining > 0 && remaining <= t.dailyBudget*warnFraction {
			t.warned[day] = true
			warn = true
		}
	}
	t.mu.Unlock()

	if warn && t.onWarning != nil {
		t.onWarning(remaining, t.dailyBudget)
	}
	return entry
}

// CanAfford reports whether spending amount on the given day would stay
// within the daily budget. A zero budget always answers false.
func (t *Tracker) CanAfford(amount float64, day string) bool {
	if t.dailyBudget <= 0 {
		return false
	}
	if day == "" {
		day = time.Now().UTC().Format(DayFormat)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalForLocked(day)+amount <= t.dailyBudget
}

// GetDailyStats aggregates the ledger for one day. An unknown day yields
// zeroed stats.
func (t *Tracker) GetDailyStats(day string) DailyStats {
	if day == "" {
		day = time.Now().UTC().Format(DayFormat)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statsForLocked(day)
}

// GetStatsInRange returns per-day stats for ledger days within [from, to]
// inclusive, in ascending date order. Days with no entries are skipped.
func (t *Tracker) GetStatsInRange(from, to string) ([]DailyStats, error) {
	if _, err := time.Parse(DayFormat, from); err != nil {
		return nil, fmt.Errorf("parse from date: %w", err)
	}
	if _, err := time.Parse(DayFormat, to); err != nil {
		return nil, fmt.Errorf("parse to date: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var days []string
	for day := range t.ledger {
		if day >= from && day <= to {
			days = append(days, day)
		}
	}
	sort.Strings(days)

	stats := make([]DailyStats, 0, len(days))
	for _, day := range days {
		stats = append(stats, t.statsForLocked(day))
	}
	return stats, nil
}

// GetTotalCost sums every entry across all ledger days.
func (t *Tracker) GetTotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for day := range t.ledger {
		total += t.totalForLocked(day)
	}
	return total
}

// Cleanup deletes ledger days older than the retention window.
func (t *Tracker) Cleanup(keepDays int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format(DayFormat)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for day := range t.ledger {
		if day < cutoff {
			delete(t.ledger, day)
			delete(t.warned, day)
			removed++
		}
	}
	return removed
}

func (t *Tracker) totalForLocked(day string) float64 {
	var total float64
	for _, e := range t.ledger[day] {
		total += e.Amount
	}
	return total
}

func (t *Tracker) statsForLocked(day string) DailyStats {
	stats := DailyStats{
		Date:   day,
		ByTier: make(map[complexity.AgentClass]float64),
	}
	for _, e := range t.ledger[day] {
		stats.TotalCost += e.Amount
		stats.Operations++
		stats.ByTier[e.Tier] += e.Amount
	}
	return stats
}

// ledgerFile is the persisted snapshot shape.
type ledgerFile struct {
	Version int                `json:"version"`
	Days    map[string][]Entry `json:"days"`
}

// SaveFile snapshots the ledger to a JSON file. The ledger assumes
// single-process ownership; sharing the file across workers requires the
// same lock discipline as the queue.
func (t *Tracker) SaveFile(path string) error {
	t.mu.Lock()
	snapshot := ledgerFile{Version: 1, Days: make(map[string][]Entry, len(t.ledger))}
	for day, entries := range t.ledger {
		snapshot.Days[day] = append([]Entry(nil), entries...)
	}
	t.mu.Unlock()

	return atomicfile.WriteJSON(path, snapshot)
}

// LoadFile replaces the ledger with a previously saved snapshot. A missing
// file leaves the ledger empty and is not an error.
func (t *Tracker) LoadFile(path string) error {
	var snapshot ledgerFile
	if err := atomicfile.ReadJSON(path, &snapshot); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if snapshot.Version != 1 {
		return fmt.Errorf("unsupported ledger version %d", snapshot.Version)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger = snapshot.Days
	if t.ledger == nil {
		t.ledger = make(map[string][]Entry)
	}
	return nil
}
