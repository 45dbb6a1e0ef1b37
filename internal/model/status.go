package model

import "fmt"

// ItemStatus is the lifecycle status of a queue item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemCancelled  ItemStatus = "cancelled"
)

var terminalItemStatuses = map[ItemStatus]bool{
	ItemCompleted: true,
	ItemFailed:    true,
	ItemCancelled: true,
}

// Queue item transitions: pending ↔ processing → terminal.
// processing → pending covers lock-expiry recovery of an orphaned item.
var validItemTransitions = map[ItemStatus]map[ItemStatus]bool{
	ItemPending: {
		ItemProcessing: true,
		ItemCancelled:  true,
		ItemFailed:     true,
	},
	ItemProcessing: {
		ItemPending:   true,
		ItemCompleted: true,
		ItemFailed:    true,
		ItemCancelled: true,
	},
}

// IsTerminalItem reports whether a queue item status is terminal.
func IsTerminalItem(s ItemStatus) bool {
	return terminalItemStatuses[s]
}

// ValidateItemTransition returns an error when from → to is not a legal
// queue item transition.
func ValidateItemTransition(from, to ItemStatus) error {
	if IsTerminalItem(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validItemTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid queue item transition: %q → %q", from, to)
	}
	return nil
}
