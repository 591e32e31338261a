package model

import "time"

// Task priority levels.  Every persisted task carries exactly one of
// these; PriorityMedium is the default applied when a client omits
// the field on creation.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task status values.  A task is always in exactly one of these two
// states; toggling computes the complement server-side.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// ValidPriority reports whether the given string is a recognized
// priority level.
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ToggleStatus returns the complementary status for the given one.
// Toggling twice returns the original value.
func ToggleStatus(status string) string {
	if status == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// Task represents a row in the `tasks` table.  Description and
// AssignedTo are nullable columns and therefore pointers.  CreatedBy
// and CreatedAt are set at insertion and never change afterwards.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – short summary, 1–200 characters.
//  Description – optional free text, at most 1000 characters.
//  DueDate     – calendar date the task is due (time portion zero).
//  Priority    – "high", "medium" or "low".
//  Status      – "pending" or "completed".
//  AssignedTo  – optional assignee user ID (nil = unassigned).
//  CreatedBy   – user who created the task, immutable.
//  CreatedAt   – creation timestamp, immutable.
type Task struct {
	ID          uint64    // tasks.id
	Title       string    // tasks.title
	Description *string   // tasks.description (nullable)
	DueDate     time.Time // tasks.due_date
	Priority    string    // tasks.priority
	Status      string    // tasks.status
	AssignedTo  *uint64   // tasks.assigned_to (nullable)
	CreatedBy   uint64    // tasks.created_by
	CreatedAt   time.Time // tasks.created_at
}
