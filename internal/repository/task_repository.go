package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"taskboard/internal/model"
)

// TaskRepo provides CRUD operations for tasks.  Task rows reference
// profiles twice (creator and optional assignee); read operations
// join both so view models carry display names without extra round
// trips.  All timestamp fields are assumed to be stored in UTC.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo returns a new TaskRepo bound to the given database.
func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *TaskRepo) DB() *sql.DB { return r.db }

// TaskRow is the read-side shape of a task: the row joined with the
// assignee's and creator's display profile subsets.  DueDate is
// serialized as a calendar date without a time component.
type TaskRow struct {
	ID            uint64  `json:"id"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	DueDate       string  `json:"due_date"`
	Priority      string  `json:"priority"`
	Status        string  `json:"status"`
	AssignedTo    *uint64 `json:"assigned_to"`
	AssigneeName  *string `json:"assignee_name,omitempty"`
	AssigneeEmail *string `json:"assignee_email,omitempty"`
	CreatedBy     uint64  `json:"created_by"`
	CreatorName   *string `json:"creator_name,omitempty"`
	CreatorEmail  *string `json:"creator_email,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// selectTask is the shared join used by every read path.  The creator
// profile can be missing only transiently (mid user-deletion), hence
// both joins are LEFT.
const selectTask = `SELECT t.id, t.title, t.description, t.due_date, t.priority, t.status,
       t.assigned_to, ap.full_name, ap.email,
       t.created_by, cp.full_name, cp.email,
       t.created_at
FROM tasks t
LEFT JOIN profiles ap ON ap.id = t.assigned_to
LEFT JOIN profiles cp ON cp.id = t.created_by`

func scanTaskRow(scan func(dest ...any) error) (TaskRow, error) {
	var (
		row           TaskRow
		desc          sql.NullString
		due           time.Time
		assignedTo    sql.NullInt64
		assigneeName  sql.NullString
		assigneeEmail sql.NullString
		creatorName   sql.NullString
		creatorEmail  sql.NullString
		createdAt     time.Time
	)
	if err := scan(
		&row.ID, &row.Title, &desc, &due, &row.Priority, &row.Status,
		&assignedTo, &assigneeName, &assigneeEmail,
		&row.CreatedBy, &creatorName, &creatorEmail,
		&createdAt,
	); err != nil {
		return TaskRow{}, err
	}
	if desc.Valid {
		d := desc.String
		row.Description = &d
	}
	row.DueDate = due.UTC().Format(model.DueDateLayout)
	if assignedTo.Valid {
		id := uint64(assignedTo.Int64)
		row.AssignedTo = &id
	}
	if assigneeName.Valid {
		n := assigneeName.String
		row.AssigneeName = &n
	}
	if assigneeEmail.Valid {
		e := assigneeEmail.String
		row.AssigneeEmail = &e
	}
	if creatorName.Valid {
		n := creatorName.String
		row.CreatorName = &n
	}
	if creatorEmail.Valid {
		e := creatorEmail.String
		row.CreatorEmail = &e
	}
	row.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return row, nil
}

// Create inserts a new task with status pending and returns the stored
// row.  Title, due date and priority must already be validated; the
// database enforces the same constraints as a second line of defense.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) (*TaskRow, error) {
	var desc sql.NullString
	if t.Description != nil && *t.Description != "" {
		desc = sql.NullString{String: *t.Description, Valid: true}
	}
	var assigned sql.NullInt64
	if t.AssignedTo != nil {
		assigned = sql.NullInt64{Int64: int64(*t.AssignedTo), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO tasks (title, description, due_date, priority, status, assigned_to, created_by) VALUES (?,?,?,?,?,?,?)",
		t.Title, desc, t.DueDate.Format(model.DueDateLayout), t.Priority, model.StatusPending, assigned, t.CreatedBy)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	t.ID = uint64(id)
	// Query back the full row to populate defaults and joined names.
	return r.GetByID(ctx, t.ID)
}

// GetByID returns a single joined task row or sql.ErrNoRows.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (*TaskRow, error) {
	row, err := scanTaskRow(r.db.QueryRowContext(ctx, selectTask+" WHERE t.id = ?", id).Scan)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SearchQuery defines the filter and pagination window for listing
// tasks.  Priority "" or "all" disables the filter.  Page is
// 1-indexed; PageSize is fixed by the handler.
type SearchQuery struct {
	Priority string
	Page     int
	PageSize int
}

// Search returns one page of tasks ordered by creation time descending
// together with the total number of rows matching the filter.  The
// count is obtained with a separate query so callers can compute the
// page count.
func (r *TaskRepo) Search(ctx context.Context, q SearchQuery) ([]TaskRow, int64, error) {
	where := []string{}
	args := []any{}
	if q.Priority != "" && !strings.EqualFold(q.Priority, "all") {
		where = append(where, "t.priority = ?")
		args = append(args, strings.ToLower(q.Priority))
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := "SELECT COUNT(*) FROM tasks t WHERE " + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := selectTask + " WHERE " + cond + ` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]TaskRow, 0, limit)
	for rows.Next() {
		row, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ToggleStatus flips a task between pending and completed and returns
// the new status.  Only the status column changes.  The flip happens
// in SQL so concurrent toggles cannot lose an update.
func (r *TaskRepo) ToggleStatus(ctx context.Context, id uint64) (string, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET status = IF(status='pending','completed','pending') WHERE id=?", id)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", sql.ErrNoRows
	}
	var status string
	if err := r.db.QueryRowContext(ctx,
		"SELECT status FROM tasks WHERE id=? LIMIT 1", id).Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}

// UpdateFields persists any subset of a task's mutable fields in one
// UPDATE.  Only the task's creator or an admin may edit; other callers
// receive ErrForbidden.  Returns sql.ErrNoRows when the task does not
// exist and the updated joined row on success.
func (r *TaskRepo) UpdateFields(ctx context.Context, id, callerID uint64, isAdmin bool, p *model.TaskPatch) (*TaskRow, error) {
	if err := r.checkOwnership(ctx, id, callerID, isAdmin); err != nil {
		return nil, err
	}
	sets := []string{}
	args := []any{}
	if p.Title != nil {
		sets = append(sets, "title=?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		if *p.Description == "" {
			sets = append(sets, "description=NULL")
		} else {
			sets = append(sets, "description=?")
			args = append(args, *p.Description)
		}
	}
	if p.DueDate != nil {
		sets = append(sets, "due_date=?")
		args = append(args, strings.TrimSpace(*p.DueDate))
	}
	if p.Priority != nil {
		sets = append(sets, "priority=?")
		args = append(args, *p.Priority)
	}
	if p.ClearAssignee {
		sets = append(sets, "assigned_to=NULL")
	} else if p.AssignedTo != nil {
		sets = append(sets, "assigned_to=?")
		args = append(args, *p.AssignedTo)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes a task permanently.  The same creator-or-admin rule
// as UpdateFields applies.  There is no soft delete.
func (r *TaskRepo) Delete(ctx context.Context, id, callerID uint64, isAdmin bool) error {
	if err := r.checkOwnership(ctx, id, callerID, isAdmin); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	return err
}

// checkOwnership verifies the task exists and that the caller may
// mutate it.  Admins bypass the creator check but the existence lookup
// still runs so missing tasks surface as sql.ErrNoRows, not 403.
func (r *TaskRepo) checkOwnership(ctx context.Context, id, callerID uint64, isAdmin bool) error {
	var createdBy uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT created_by FROM tasks WHERE id=? LIMIT 1", id).Scan(&createdBy)
	if err != nil {
		return err
	}
	if !isAdmin && createdBy != callerID {
		return ErrForbidden
	}
	return nil
}
