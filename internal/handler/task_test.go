package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"taskboard/internal/model"
	"taskboard/internal/queue"
	"taskboard/internal/repository"
)

// ----- fakes -----

type fakeTaskStore struct {
	rows    map[uint64]*repository.TaskRow
	nextID  uint64
	total   int64
	deleted []uint64

	lastCreated *model.Task
	lastSearch  repository.SearchQuery
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{rows: map[uint64]*repository.TaskRow{}, nextID: 1}
}

func (f *fakeTaskStore) Create(_ context.Context, t *model.Task) (*repository.TaskRow, error) {
	f.lastCreated = t
	id := f.nextID
	f.nextID++
	row := &repository.TaskRow{
		ID:         id,
		Title:      t.Title,
		DueDate:    t.DueDate.Format(model.DueDateLayout),
		Priority:   t.Priority,
		Status:     model.StatusPending,
		AssignedTo: t.AssignedTo,
		CreatedBy:  t.CreatedBy,
	}
	f.rows[id] = row
	return row, nil
}

func (f *fakeTaskStore) GetByID(_ context.Context, id uint64) (*repository.TaskRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeTaskStore) Search(_ context.Context, q repository.SearchQuery) ([]repository.TaskRow, int64, error) {
	f.lastSearch = q
	out := make([]repository.TaskRow, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out, f.total, nil
}

func (f *fakeTaskStore) ToggleStatus(_ context.Context, id uint64) (string, error) {
	row, ok := f.rows[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	row.Status = model.ToggleStatus(row.Status)
	return row.Status, nil
}

func (f *fakeTaskStore) UpdateFields(_ context.Context, id, callerID uint64, isAdmin bool, p *model.TaskPatch) (*repository.TaskRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !isAdmin && row.CreatedBy != callerID {
		return nil, repository.ErrForbidden
	}
	if p.Title != nil {
		row.Title = *p.Title
	}
	if p.AssignedTo != nil {
		row.AssignedTo = p.AssignedTo
	}
	if p.ClearAssignee {
		row.AssignedTo = nil
	}
	return row, nil
}

func (f *fakeTaskStore) Delete(_ context.Context, id, callerID uint64, isAdmin bool) error {
	row, ok := f.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !isAdmin && row.CreatedBy != callerID {
		return repository.ErrForbidden
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAssignees struct{ rows []repository.PickerRow }

func (f *fakeAssignees) ListPicker(context.Context) ([]repository.PickerRow, error) {
	return f.rows, nil
}

// fakeConfirms records issued tokens per key and consumes them once.
type fakeConfirms struct {
	tokens map[string]string
}

func newFakeConfirms() *fakeConfirms { return &fakeConfirms{tokens: map[string]string{}} }

func (f *fakeConfirms) key(kind string, targetID, userID uint64) string {
	return fmt.Sprintf("%s:%d:%d", kind, targetID, userID)
}

func (f *fakeConfirms) Issue(_ context.Context, kind string, targetID, userID uint64) (string, error) {
	tok := "tok-" + f.key(kind, targetID, userID)
	f.tokens[f.key(kind, targetID, userID)] = tok
	return tok, nil
}

func (f *fakeConfirms) Consume(_ context.Context, kind string, targetID, userID uint64, token string) (bool, error) {
	k := f.key(kind, targetID, userID)
	stored, ok := f.tokens[k]
	if !ok {
		return false, nil
	}
	delete(f.tokens, k)
	return stored == token, nil
}

// ----- helpers -----

func newTaskCtx(t *testing.T, method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", role)
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func newTestTaskHandler(store *fakeTaskStore, confirms *fakeConfirms) (*TaskHandler, *[]queue.TaskActivityEvent) {
	var events []queue.TaskActivityEvent
	h := NewTaskHandler(store, &fakeAssignees{}, confirms, func(_ context.Context, ev queue.TaskActivityEvent) error {
		events = append(events, ev)
		return nil
	})
	return h, &events
}

// ----- tests -----

func TestCreateTaskDefaults(t *testing.T) {
	store := newFakeTaskStore()
	h, events := newTestTaskHandler(store, newFakeConfirms())

	c, rec := newTaskCtx(t, http.MethodPost, "/v1/tasks",
		`{"title":"Write report","due_date":"2026-09-10"}`, 5, model.RoleUser)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	if store.lastCreated.Priority != model.PriorityMedium {
		t.Errorf("priority = %q, want medium default", store.lastCreated.Priority)
	}
	if store.lastCreated.CreatedBy != 5 {
		t.Errorf("created_by = %d, want caller id 5", store.lastCreated.CreatedBy)
	}

	task := decodeBody(t, rec)["task"].(map[string]any)
	if task["status"] != model.StatusPending {
		t.Errorf("status = %v, want pending", task["status"])
	}

	if len(*events) != 1 || (*events)[0].Type != queue.EventTaskCreated {
		t.Errorf("events = %+v, want one task.created", *events)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	h, _ := newTestTaskHandler(newFakeTaskStore(), newFakeConfirms())

	cases := []struct {
		name, body, wantErr string
	}{
		{"missing title", `{"due_date":"2026-09-10"}`, "title is required"},
		{"missing due date", `{"title":"x"}`, "due date is required"},
		{"bad priority", `{"title":"x","due_date":"2026-09-10","priority":"urgent"}`, "priority must be high, medium or low"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newTaskCtx(t, http.MethodPost, "/v1/tasks", tc.body, 5, model.RoleUser)
			if err := h.Create(c); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeBody(t, rec)["error"]; got != tc.wantErr {
				t.Errorf("error = %v, want %q", got, tc.wantErr)
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	store := newFakeTaskStore()
	store.total = 19 // 3 pages at 9 per page
	h, _ := newTestTaskHandler(store, newFakeConfirms())

	c, rec := newTaskCtx(t, http.MethodGet, "/v1/tasks?page=2&priority=high", "", 5, model.RoleUser)
	if err := h.List(c); err != nil {
		t.Fatalf("List: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["page"].(float64) != 2 || body["page_size"].(float64) != 9 {
		t.Errorf("page/page_size = %v/%v, want 2/9", body["page"], body["page_size"])
	}
	if body["total"].(float64) != 19 || body["total_pages"].(float64) != 3 {
		t.Errorf("total/total_pages = %v/%v, want 19/3", body["total"], body["total_pages"])
	}
	if store.lastSearch.Priority != "high" || store.lastSearch.Page != 2 || store.lastSearch.PageSize != 9 {
		t.Errorf("search query = %+v", store.lastSearch)
	}
}

func TestListDefaultsToFirstPage(t *testing.T) {
	store := newFakeTaskStore()
	h, _ := newTestTaskHandler(store, newFakeConfirms())

	c, rec := newTaskCtx(t, http.MethodGet, "/v1/tasks", "", 5, model.RoleUser)
	if err := h.List(c); err != nil {
		t.Fatalf("List: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastSearch.Page != 1 {
		t.Errorf("page = %d, want 1", store.lastSearch.Page)
	}
}

func TestListRejectsBadInput(t *testing.T) {
	h, _ := newTestTaskHandler(newFakeTaskStore(), newFakeConfirms())

	for _, target := range []string{"/v1/tasks?page=0", "/v1/tasks?page=x", "/v1/tasks?priority=urgent"} {
		c, rec := newTaskCtx(t, http.MethodGet, target, "", 5, model.RoleUser)
		if err := h.List(c); err != nil {
			t.Fatalf("List(%s): %v", target, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestToggleFlipsStatus(t *testing.T) {
	store := newFakeTaskStore()
	store.rows[3] = &repository.TaskRow{ID: 3, Status: model.StatusPending, CreatedBy: 5}
	h, events := newTestTaskHandler(store, newFakeConfirms())

	c, rec := newTaskCtx(t, http.MethodPost, "/v1/tasks/3/toggle", "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != model.StatusCompleted {
		t.Errorf("status = %v, want completed", got)
	}
	if len(*events) != 1 || (*events)[0].Type != queue.EventTaskCompleted {
		t.Errorf("events = %+v, want one task.completed", *events)
	}

	// Toggle back.
	c, rec = newTaskCtx(t, http.MethodPost, "/v1/tasks/3/toggle", "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Toggle(c); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := decodeBody(t, rec)["status"]; got != model.StatusPending {
		t.Errorf("status = %v, want pending after second toggle", got)
	}
}

func TestPatchOwnership(t *testing.T) {
	store := newFakeTaskStore()
	store.rows[3] = &repository.TaskRow{ID: 3, Title: "old", Status: model.StatusPending, CreatedBy: 5}
	h, _ := newTestTaskHandler(store, newFakeConfirms())

	// Non-creator, non-admin: forbidden.
	c, rec := newTaskCtx(t, http.MethodPatch, "/v1/tasks/3", `{"title":"new"}`, 6, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Patch(c); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	// Admin may edit anyone's task.
	c, rec = newTaskCtx(t, http.MethodPatch, "/v1/tasks/3", `{"title":"new"}`, 6, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Patch(c); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if store.rows[3].Title != "new" {
		t.Errorf("title = %q, want new", store.rows[3].Title)
	}
}

func TestPatchRejectsEmpty(t *testing.T) {
	store := newFakeTaskStore()
	store.rows[3] = &repository.TaskRow{ID: 3, CreatedBy: 5}
	h, _ := newTestTaskHandler(store, newFakeConfirms())

	c, rec := newTaskCtx(t, http.MethodPatch, "/v1/tasks/3", `{}`, 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Patch(c); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	store := newFakeTaskStore()
	store.rows[3] = &repository.TaskRow{ID: 3, CreatedBy: 5}
	h, _ := newTestTaskHandler(store, newFakeConfirms())

	c, rec := newTaskCtx(t, http.MethodDelete, "/v1/tasks/3", "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec.Code != http.StatusPreconditionRequired {
		t.Errorf("status = %d, want 428", rec.Code)
	}
	if len(store.deleted) != 0 {
		t.Error("task deleted without confirmation")
	}
}

func TestDeleteTwoStepFlow(t *testing.T) {
	store := newFakeTaskStore()
	store.rows[3] = &repository.TaskRow{ID: 3, CreatedBy: 5}
	confirms := newFakeConfirms()
	h, events := newTestTaskHandler(store, confirms)

	c, rec := newTaskCtx(t, http.MethodPost, "/v1/tasks/3/delete-request", "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.RequestDelete(c); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	token := decodeBody(t, rec)["confirm_token"].(string)

	c, rec = newTaskCtx(t, http.MethodDelete, "/v1/tasks/3?confirm_token="+token, "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (%s)", rec.Code, rec.Body.String())
	}
	if len(store.deleted) != 1 || store.deleted[0] != 3 {
		t.Errorf("deleted = %v, want [3]", store.deleted)
	}
	if len(*events) != 1 || (*events)[0].Type != queue.EventTaskDeleted {
		t.Errorf("events = %+v, want one task.deleted", *events)
	}
}

func TestRequestDeleteChecksOwnership(t *testing.T) {
	store := newFakeTaskStore()
	store.rows[3] = &repository.TaskRow{ID: 3, CreatedBy: 5}
	confirms := newFakeConfirms()
	h, _ := newTestTaskHandler(store, confirms)

	c, rec := newTaskCtx(t, http.MethodPost, "/v1/tasks/3/delete-request", "", 6, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues("3")
	if err := h.RequestDelete(c); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if len(confirms.tokens) != 0 {
		t.Error("confirmation issued for someone else's task")
	}
}
