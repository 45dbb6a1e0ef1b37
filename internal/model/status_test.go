package model

import "testing"

func TestIsTerminalItem(t *testing.T) {
	tests := []struct {
		status   ItemStatus
		terminal bool
	}{
		{ItemPending, false},
		{ItemProcessing, false},
		{ItemCompleted, true},
		{ItemFailed, true},
		{ItemCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsTerminalItem(tt.status); got != tt.terminal {
				t.Errorf("IsTerminalItem(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestValidateItemTransition(t *testing.T) {
	valid := []struct {
		from, to ItemStatus
	}{
		{ItemPending, ItemProcessing},
		{ItemPending, ItemCancelled},
		{ItemPending, ItemFailed},
		{ItemProcessing, ItemPending},
		{ItemProcessing, ItemCompleted},
		{ItemProcessing, ItemFailed},
		{ItemProcessing, ItemCancelled},
	}
	for _, tt := range valid {
		t.Run(string(tt.from)+"→"+string(tt.to), func(t *testing.T) {
			if err := ValidateItemTransition(tt.from, tt.to); err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
		})
	}

	invalid := []struct {
		from, to ItemStatus
	}{
		{ItemPending, ItemCompleted}, // must pass through processing
		{ItemCompleted, ItemPending},
		{ItemCompleted, ItemProcessing},
		{ItemFailed, ItemPending},
		{ItemCancelled, ItemProcessing},
	}
	for _, tt := range invalid {
		t.Run("invalid_"+string(tt.from)+"→"+string(tt.to), func(t *testing.T) {
			if err := ValidateItemTransition(tt.from, tt.to); err == nil {
				t.Errorf("expected error for %q → %q", tt.from, tt.to)
			}
		})
	}
}
