// Package queue defines message payloads exchanged over the message broker.
package queue

// Activity event types published to the task.activity queue.
const (
	EventTaskCreated   = "task.created"
	EventTaskCompleted = "task.completed"
	EventTaskReopened  = "task.reopened"
	EventTaskAssigned  = "task.assigned"
	EventTaskDeleted   = "task.deleted"
	EventUserDeleted   = "user.deleted"
)

// TaskActivityEvent is published after a successful mutation.  It
// contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.  Fields
// that do not apply to a given event type are left at their zero value.
type TaskActivityEvent struct {
	Type       string `json:"type"`
	TaskID     uint64 `json:"task_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Priority   string `json:"priority,omitempty"`
	Status     string `json:"status,omitempty"`
	AssignedTo uint64 `json:"assigned_to,omitempty"`
	ActorID    uint64 `json:"actor_id"`
	TargetUser uint64 `json:"target_user,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
