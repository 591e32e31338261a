package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/utils"
)

// ProfileRepo provides persistence for the `profiles` table.  Profiles
// double as the authentication subject (they carry the password hash)
// and as the display record joined into task views.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// Create inserts a profile and returns its ID.
func (r *ProfileRepo) Create(ctx context.Context, fullName, email, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var name sql.NullString
	if fn := strings.TrimSpace(fullName); fn != "" {
		name = sql.NullString{String: fn, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO profiles (full_name, email, password_hash) VALUES (?,?,?)",
		name, email, hash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a profile by normalized email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,full_name,email,password_hash,created_at FROM profiles WHERE email=? LIMIT 1",
		email))
}

// GetByID fetches a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id uint64) (model.Profile, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,full_name,email,password_hash,created_at FROM profiles WHERE id=? LIMIT 1",
		id))
}

func (r *ProfileRepo) scanOne(row *sql.Row) (model.Profile, error) {
	var p model.Profile
	var name sql.NullString
	err := row.Scan(&p.ID, &name, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if name.Valid {
		p.FullName = name.String
	}
	return p, err
}

// PickerRow is the profile subset exposed to the assignee picker:
// just enough to label a user in a dropdown.
type PickerRow struct {
	ID       uint64  `json:"id"`
	FullName *string `json:"full_name"`
	Email    string  `json:"email"`
}

// ListPicker returns all profiles ordered by display name.  Rows
// without a name sort last so named users appear first in pickers.
func (r *ProfileRepo) ListPicker(ctx context.Context) ([]PickerRow, error) {
	const q = `SELECT id, full_name, email
	           FROM profiles
	           ORDER BY full_name IS NULL, full_name, email`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]PickerRow, 0)
	for rows.Next() {
		var p PickerRow
		var name sql.NullString
		if err := rows.Scan(&p.ID, &name, &p.Email); err != nil {
			return nil, err
		}
		if name.Valid {
			n := name.String
			p.FullName = &n
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdminUserRow is a profile joined with its role for the admin user
// management surface.  A user with no role row reports role "user".
type AdminUserRow struct {
	ID        uint64    `json:"id"`
	FullName  *string   `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ListWithRoles returns all profiles with their effective role,
// newest first.  The LEFT JOIN keeps users without a role row and
// COALESCE maps their role to the "user" default.
func (r *ProfileRepo) ListWithRoles(ctx context.Context) ([]AdminUserRow, error) {
	const q = `SELECT p.id, p.full_name, p.email, COALESCE(ur.role, 'user'), p.created_at
	           FROM profiles p
	           LEFT JOIN user_roles ur ON ur.user_id = p.id
	           ORDER BY p.created_at DESC`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminUserRow, 0)
	for rows.Next() {
		var u AdminUserRow
		var name sql.NullString
		if err := rows.Scan(&u.ID, &name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			n := name.String
			u.FullName = &n
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteCascade removes a profile together with everything it owns:
// tasks created by the user are deleted, tasks merely assigned to the
// user are unassigned, and role and refresh-token rows are removed.
// All steps run in one transaction so a failure leaves no orphaned
// task referencing a missing owner.  Returns the number of tasks
// deleted, or sql.ErrNoRows when the profile does not exist.
func (r *ProfileRepo) DeleteCascade(ctx context.Context, userID uint64) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM profiles WHERE id=? LIMIT 1", userID).Scan(&exists); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE created_by=?", userID)
	if err != nil {
		return 0, err
	}
	tasksDeleted, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx,
		"UPDATE tasks SET assigned_to=NULL WHERE assigned_to=?", userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE id=?", userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return tasksDeleted, nil
}
