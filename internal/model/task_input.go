package model

// task_input.go holds the form-level validation applied to task payloads
// before any database call is made.  Validation errors carry the first
// violated constraint so handlers can return it verbatim; a failed
// validation never reaches the repository layer.

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits for task payloads.
const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 1000
)

// DueDateLayout is the wire format for due dates (calendar date, no time).
const DueDateLayout = "2006-01-02"

// Validation errors returned in order of field precedence: title,
// description, due date, priority.
var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title too long")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrDueDateRequired    = errors.New("due date is required")
	ErrDueDateInvalid     = errors.New("due date must be YYYY-MM-DD")
	ErrPriorityInvalid    = errors.New("priority must be high, medium or low")
)

// TaskInput is the payload for creating a task.  Description and
// AssignedTo are optional; Priority defaults to "medium" when empty.
type TaskInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Priority    string  `json:"priority"`
	AssignedTo  *uint64 `json:"assigned_to"`
}

// Validate checks the input against the task constraints and normalizes
// it in place: the title is trimmed and an empty priority becomes
// "medium".  It returns the first violated constraint, or nil together
// with the parsed due date.
func (in *TaskInput) Validate() (time.Time, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return time.Time{}, ErrTitleRequired
	}
	if utf8.RuneCountInString(in.Title) > TitleMaxLen {
		return time.Time{}, ErrTitleTooLong
	}
	if utf8.RuneCountInString(in.Description) > DescriptionMaxLen {
		return time.Time{}, ErrDescriptionTooLong
	}
	if strings.TrimSpace(in.DueDate) == "" {
		return time.Time{}, ErrDueDateRequired
	}
	due, err := time.Parse(DueDateLayout, strings.TrimSpace(in.DueDate))
	if err != nil {
		return time.Time{}, ErrDueDateInvalid
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !ValidPriority(in.Priority) {
		return time.Time{}, ErrPriorityInvalid
	}
	return due, nil
}

// TaskPatch is the payload for editing a task.  Every field is a
// pointer: nil means "leave unchanged", a non-nil value is validated
// and applied.  ClearAssignee distinguishes "unassign" from "leave
// assignment alone" since both would otherwise be a nil AssignedTo.
type TaskPatch struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	DueDate       *string `json:"due_date"`
	Priority      *string `json:"priority"`
	AssignedTo    *uint64 `json:"assigned_to"`
	ClearAssignee bool    `json:"clear_assignee"`
}

// Empty reports whether the patch changes nothing.
func (p *TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.AssignedTo == nil && !p.ClearAssignee
}

// Validate checks all provided fields against the task constraints,
// normalizing the title in place.  The returned due date is zero when
// the patch does not touch due_date.
func (p *TaskPatch) Validate() (time.Time, error) {
	var due time.Time
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return time.Time{}, ErrTitleRequired
		}
		if utf8.RuneCountInString(t) > TitleMaxLen {
			return time.Time{}, ErrTitleTooLong
		}
		*p.Title = t
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > DescriptionMaxLen {
		return time.Time{}, ErrDescriptionTooLong
	}
	if p.DueDate != nil {
		d, err := time.Parse(DueDateLayout, strings.TrimSpace(*p.DueDate))
		if err != nil {
			return time.Time{}, ErrDueDateInvalid
		}
		due = d
	}
	if p.Priority != nil && !ValidPriority(*p.Priority) {
		return time.Time{}, ErrPriorityInvalid
	}
	return due, nil
}
