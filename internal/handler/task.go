package handler

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"taskboard/internal/model"
	"taskboard/internal/queue"
	"taskboard/internal/repository"
)

// tasksPerPage is the fixed pagination window for task lists.
const tasksPerPage = 9

// taskStore is the slice of the task repository the handler needs.
// Declared here so tests can substitute an in-memory fake.
type taskStore interface {
	Create(ctx context.Context, t *model.Task) (*repository.TaskRow, error)
	GetByID(ctx context.Context, id uint64) (*repository.TaskRow, error)
	Search(ctx context.Context, q repository.SearchQuery) ([]repository.TaskRow, int64, error)
	ToggleStatus(ctx context.Context, id uint64) (string, error)
	UpdateFields(ctx context.Context, id, callerID uint64, isAdmin bool, p *model.TaskPatch) (*repository.TaskRow, error)
	Delete(ctx context.Context, id, callerID uint64, isAdmin bool) error
}

// assigneeStore lists the profile subset shown in the assignee picker.
type assigneeStore interface {
	ListPicker(ctx context.Context) ([]repository.PickerRow, error)
}

// confirmer issues and consumes the one-shot tokens guarding deletes.
type confirmer interface {
	Issue(ctx context.Context, kind string, targetID, userID uint64) (string, error)
	Consume(ctx context.Context, kind string, targetID, userID uint64, token string) (bool, error)
}

// TaskHandler implements the task CRUD surface.  All methods assume
// JWT authentication has already run.  Publish is called after each
// successful mutation; failures there are deliberately ignored so
// activity logging can never fail a user action.
type TaskHandler struct {
	Tasks    taskStore
	Profiles assigneeStore
	Confirms confirmer
	Publish  func(ctx context.Context, ev queue.TaskActivityEvent) error
}

// NewTaskHandler constructs a TaskHandler and panics if a dependency is nil.
func NewTaskHandler(tasks taskStore, profiles assigneeStore, confirms confirmer, publish func(context.Context, queue.TaskActivityEvent) error) *TaskHandler {
	if tasks == nil || profiles == nil || confirms == nil {
		panic("nil dependency passed to NewTaskHandler")
	}
	return &TaskHandler{Tasks: tasks, Profiles: profiles, Confirms: confirms, Publish: publish}
}

func (h *TaskHandler) publish(ctx context.Context, ev queue.TaskActivityEvent) {
	if h.Publish == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	_ = h.Publish(ctx, ev)
}

// Create handles POST /v1/tasks.  The payload is validated before any
// database call; the first violated constraint is returned verbatim.
// New tasks always start pending with created_by set from the session.
func (h *TaskHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var in model.TaskInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	due, err := in.Validate()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	t := model.Task{
		Title:      in.Title,
		DueDate:    due,
		Priority:   in.Priority,
		AssignedTo: in.AssignedTo,
		CreatedBy:  userID,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		t.Description = &d
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	row, err := h.Tasks.Create(ctx, &t)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create task failed"})
	}

	ev := queue.TaskActivityEvent{
		Type:     queue.EventTaskCreated,
		TaskID:   row.ID,
		Title:    row.Title,
		Priority: row.Priority,
		ActorID:  userID,
	}
	if row.AssignedTo != nil {
		ev.AssignedTo = *row.AssignedTo
	}
	h.publish(ctx, ev)

	return c.JSON(http.StatusCreated, echo.Map{"task": row})
}

// List handles GET /v1/tasks.  Supports ?priority=all|high|medium|low
// and ?page=N (1-indexed, default 1).  Page size is fixed at 9; the
// response carries the total count and page count so clients can
// render pagination controls.  A client that changes the filter
// without sending page starts back at page 1.
func (h *TaskHandler) List(c echo.Context) error {
	priority := strings.ToLower(strings.TrimSpace(c.QueryParam("priority")))
	if priority != "" && priority != "all" && !model.ValidPriority(priority) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority filter"})
	}
	page := 1
	if p := c.QueryParam("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
		}
		page = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tasks, total, err := h.Tasks.Search(ctx, repository.SearchQuery{
		Priority: priority,
		Page:     page,
		PageSize: tasksPerPage,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fetch tasks failed"})
	}
	totalPages := int(math.Ceil(float64(total) / float64(tasksPerPage)))

	return c.JSON(http.StatusOK, echo.Map{
		"tasks":       tasks,
		"page":        page,
		"page_size":   tasksPerPage,
		"total":       total,
		"total_pages": totalPages,
	})
}

// Get handles GET /v1/tasks/:id and returns the joined task view.
func (h *TaskHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	row, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fetch task failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"task": row})
}

// Toggle handles POST /v1/tasks/:id/toggle.  Only the status column
// changes: pending becomes completed and vice versa, so toggling twice
// restores the original state.
func (h *TaskHandler) Toggle(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status, err := h.Tasks.ToggleStatus(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}

	evType := queue.EventTaskReopened
	if status == model.StatusCompleted {
		evType = queue.EventTaskCompleted
	}
	h.publish(ctx, queue.TaskActivityEvent{Type: evType, TaskID: id, Status: status, ActorID: userID})

	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": status})
}

// Patch handles PATCH /v1/tasks/:id.  Any subset of the mutable fields
// may be supplied; omitted fields are untouched.  Only the creator or
// an admin may edit — the repository enforces this server-side, the
// role claim alone is never trusted for ownership.
func (h *TaskHandler) Patch(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	var patch model.TaskPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if patch.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}
	if _, err := patch.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	row, err := h.Tasks.UpdateFields(ctx, id, userID, isAdmin(c), &patch)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update task failed"})
	}

	if patch.AssignedTo != nil {
		h.publish(ctx, queue.TaskActivityEvent{
			Type:       queue.EventTaskAssigned,
			TaskID:     row.ID,
			Title:      row.Title,
			AssignedTo: *patch.AssignedTo,
			ActorID:    userID,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"task": row})
}

// RequestDelete handles POST /v1/tasks/:id/delete-request, the first
// half of the two-step delete.  Ownership is checked before a token is
// issued so a user can never obtain a confirmation for someone else's
// task.  The token expires after repository.ConfirmTTL.
func (h *TaskHandler) RequestDelete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	row, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fetch task failed"})
	}
	if !isAdmin(c) && row.CreatedBy != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	token, err := h.Confirms.Issue(ctx, "task", id, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue confirmation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"confirm_token": token,
		"expires_in":    int(repository.ConfirmTTL.Seconds()),
	})
}

// Delete handles DELETE /v1/tasks/:id?confirm_token=...  The second
// half of the two-step delete: without a live confirmation token the
// destructive call never executes.  Deletion is immediate and
// irreversible; there is no soft delete.
func (h *TaskHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	okTok, err := h.Confirms.Consume(ctx, "task", id, userID, c.QueryParam("confirm_token"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check confirmation failed"})
	}
	if !okTok {
		return c.JSON(http.StatusPreconditionRequired, echo.Map{"error": "confirmation required"})
	}

	if err := h.Tasks.Delete(ctx, id, userID, isAdmin(c)); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete task failed"})
	}

	h.publish(ctx, queue.TaskActivityEvent{Type: queue.EventTaskDeleted, TaskID: id, ActorID: userID})
	return c.NoContent(http.StatusNoContent)
}

// ListAssignees handles GET /v1/users: the profile subset shown in the
// assignee picker, ordered by display name.
func (h *TaskHandler) ListAssignees(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Profiles.ListPicker(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fetch users failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}
