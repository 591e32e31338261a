package repository

import (
	"context"
	"database/sql"
	"strings"

	"taskboard/internal/model"
)

// RoleRepo manages the `user_roles` table.  The application keeps at
// most one authoritative role row per user; a missing row means the
// user has the implicit "user" role.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// Replace swaps a user's role: every existing role row for the user is
// deleted and exactly one row with the new role is inserted.  Both
// steps run in a single transaction so a partial failure can never
// leave the user without a role row when one existed before.
func (r *RoleRepo) Replace(ctx context.Context, userID uint64, role string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role) VALUES (?,?)", userID, role); err != nil {
		// 1452: foreign key violation, i.e. no such profile.
		if strings.Contains(strings.ToLower(err.Error()), "1452") {
			return sql.ErrNoRows
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetForUser returns the user's effective role.  When no role row
// exists the default "user" is returned without error.
func (r *RoleRepo) GetForUser(ctx context.Context, userID uint64) (string, error) {
	var role string
	err := r.DB.QueryRowContext(ctx,
		"SELECT role FROM user_roles WHERE user_id=? LIMIT 1", userID).Scan(&role)
	if err == sql.ErrNoRows {
		return model.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// IsAdmin reports whether a role row with role=admin exists for the
// user.  This is the authorization gate checked at token issue time.
func (r *RoleRepo) IsAdmin(ctx context.Context, userID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM user_roles WHERE user_id=? AND role='admin' LIMIT 1", userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
