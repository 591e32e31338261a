package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"taskboard/internal/model"
	"taskboard/internal/queue"
	"taskboard/internal/repository"
)

// adminUserStore is the slice of the profile repository the admin
// surface needs.
type adminUserStore interface {
	ListWithRoles(ctx context.Context) ([]repository.AdminUserRow, error)
	DeleteCascade(ctx context.Context, userID uint64) (int64, error)
}

// roleStore replaces a user's role atomically.
type roleStore interface {
	Replace(ctx context.Context, userID uint64, role string) error
}

// AdminHandler implements the user-management surface.  Routes using
// it are registered behind RequireRole("admin"); the handlers still
// re-derive the caller ID for confirmation scoping and self-delete
// protection.
type AdminHandler struct {
	Users    adminUserStore
	Roles    roleStore
	Confirms confirmer
	Publish  func(ctx context.Context, ev queue.TaskActivityEvent) error
}

// NewAdminHandler constructs an AdminHandler and panics if a dependency is nil.
func NewAdminHandler(users adminUserStore, roles roleStore, confirms confirmer, publish func(context.Context, queue.TaskActivityEvent) error) *AdminHandler {
	if users == nil || roles == nil || confirms == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Users: users, Roles: roles, Confirms: confirms, Publish: publish}
}

func (h *AdminHandler) publish(ctx context.Context, ev queue.TaskActivityEvent) {
	if h.Publish == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	_ = h.Publish(ctx, ev)
}

// ListUsers handles GET /v1/admin/users: every profile with its
// effective role, newest first.  Users without a role row report the
// "user" default.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.ListWithRoles(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fetch users failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

type roleChangeReq struct {
	Role string `json:"role"`
}

// ChangeRole handles PUT /v1/admin/users/:id/role.  Role changes are
// replace-not-append: all prior role rows are removed and exactly one
// row with the new role is inserted, inside a single transaction.
// Afterwards the target user holds exactly one role row.  The new role
// takes effect in tokens on the user's next login or refresh.
func (h *AdminHandler) ChangeRole(c echo.Context) error {
	targetID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req roleChangeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !model.ValidRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or user"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Roles.Replace(ctx, targetID, req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update role failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": targetID, "role": req.Role})
}

// RequestDeleteUser handles POST /v1/admin/users/:id/delete-request,
// the first half of the two-step user delete.  Deleting a user also
// deletes every task they created, so the confirmation step is not
// optional.  Admins cannot delete their own account.
func (h *AdminHandler) RequestDeleteUser(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if targetID == callerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	token, err := h.Confirms.Issue(ctx, "user", targetID, callerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue confirmation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"confirm_token": token,
		"expires_in":    int(repository.ConfirmTTL.Seconds()),
	})
}

// DeleteUser handles DELETE /v1/admin/users/:id?confirm_token=...
// Removes the profile and, in the same transaction, their created
// tasks; tasks merely assigned to them are unassigned instead of
// deleted.  Returns the number of tasks removed alongside the user.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if targetID == callerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	okTok, err := h.Confirms.Consume(ctx, "user", targetID, callerID, c.QueryParam("confirm_token"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check confirmation failed"})
	}
	if !okTok {
		return c.JSON(http.StatusPreconditionRequired, echo.Map{"error": "confirmation required"})
	}

	tasksDeleted, err := h.Users.DeleteCascade(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete user failed"})
	}

	h.publish(ctx, queue.TaskActivityEvent{
		Type:       queue.EventUserDeleted,
		ActorID:    callerID,
		TargetUser: targetID,
	})

	return c.JSON(http.StatusOK, echo.Map{"deleted_user": targetID, "deleted_tasks": tasksDeleted})
}
