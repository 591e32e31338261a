package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"taskboard/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// Replace must delete every prior role row and insert exactly one new
// row inside a single transaction, so a user assigned role A and then
// role B ends up with one row carrying B.
func TestRoleReplaceTransaction(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_roles WHERE user_id=?")).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles (user_id, role) VALUES (?,?)")).
		WithArgs(7, model.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := NewRoleRepo(db).Replace(context.Background(), 7, model.RoleAdmin); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRoleReplaceRollsBackOnInsertError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_roles WHERE user_id=?")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_roles (user_id, role) VALUES (?,?)")).
		WithArgs(9, model.RoleUser).
		WillReturnError(errors.New("Error 1452 (23000): Cannot add or update a child row: a foreign key constraint fails"))
	mock.ExpectRollback()

	err := NewRoleRepo(db).Replace(context.Background(), 9, model.RoleUser)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("Replace err = %v, want sql.ErrNoRows for a missing user", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestRoleGetForUserDefaults(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles WHERE user_id=? LIMIT 1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	role, err := NewRoleRepo(db).GetForUser(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if role != model.RoleUser {
		t.Errorf("role = %q, want the %q default", role, model.RoleUser)
	}
}

func TestRoleGetForUserReturnsRow(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM user_roles WHERE user_id=? LIMIT 1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(model.RoleAdmin))

	role, err := NewRoleRepo(db).GetForUser(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", role)
	}
}
