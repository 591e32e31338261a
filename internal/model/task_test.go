package model

import "testing"

func TestToggleStatus(t *testing.T) {
	if got := ToggleStatus(StatusPending); got != StatusCompleted {
		t.Errorf("ToggleStatus(pending) = %q, want completed", got)
	}
	if got := ToggleStatus(StatusCompleted); got != StatusPending {
		t.Errorf("ToggleStatus(completed) = %q, want pending", got)
	}
	// Toggling twice must restore the original state.
	if got := ToggleStatus(ToggleStatus(StatusPending)); got != StatusPending {
		t.Errorf("double toggle = %q, want pending", got)
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []string{PriorityHigh, PriorityMedium, PriorityLow} {
		if !ValidPriority(p) {
			t.Errorf("ValidPriority(%q) = false", p)
		}
	}
	for _, p := range []string{"", "urgent", "HIGH", "critical"} {
		if ValidPriority(p) {
			t.Errorf("ValidPriority(%q) = true", p)
		}
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleAdmin) || !ValidRole(RoleUser) {
		t.Error("admin and user must be valid roles")
	}
	if ValidRole("moderator") || ValidRole("") {
		t.Error("unknown roles must be rejected")
	}
}
