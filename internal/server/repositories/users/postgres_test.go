package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userCols = []string{"id", "username", "email", "full_name", "password_hash", "is_active", "is_locked",
	"failed_login_attempts", "two_factor_enabled", "two_factor_secret", "last_login_at",
	"created_at", "updated_at", "deleted_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*email,\s*full_name,\s*password_hash,\s*is_active\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+created_at,\s*updated_at\s*$`

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := "bcrypt"
	mock.ExpectQuery(q).
		WithArgs("u-1", "alice", "alice@hotel.test", "Alice", "bcrypt", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &models.User{ID: "u-1", Username: "alice", Email: "alice@hotel.test", FullName: "Alice", PasswordHash: &hash, IsActive: true}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_GeneratesID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	got, err := repo.Create(context.Background(), &models.User{Username: "bob", Email: "bob@hotel.test"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(got.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", got.ID)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("want common.ErrValidation, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+AND\s+deleted_at\s+IS\s+NULL\s*$`

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userCols).
		AddRow("u-1", "alice", "a@h.test", "Alice", "hash", true, false, 2, false, nil, nil, now, now, nil)
	mock.ExpectQuery(q).WithArgs("alice").WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.ID != "u-1" || got.PasswordHash == nil || *got.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.FailedLoginAttempts != 2 || got.LastLoginAt != nil || got.TwoFactorSecret != nil {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+users`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("u-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestRecordLoginFailure(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*failed_login_attempts\s*\+\s*1.*RETURNING\s+is_locked\s*$`

	mock.ExpectQuery(q).WithArgs("u-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"is_locked"}).AddRow(true))

	locked, err := repo.RecordLoginFailure(context.Background(), "u-1", 5)
	if err != nil {
		t.Fatalf("RecordLoginFailure error: %v", err)
	}
	if !locked {
		t.Fatalf("expected locked")
	}
}

func TestRecordLoginFailure_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.RecordLoginFailure(context.Background(), "u-x", 5)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestRecordLoginSuccess(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	q := `(?s)^UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*0,\s*last_login_at\s*=\s*\$2`
	mock.ExpectExec(q).WithArgs("u-1", at).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordLoginSuccess(context.Background(), "u-1", at); err != nil {
		t.Fatalf("RecordLoginSuccess error: %v", err)
	}
}

func TestUpdatePassword_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("u-1", "new").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "u-1", "new")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestUpdateTwoFactor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+two_factor_secret\s*=\s*\$2,\s*two_factor_enabled\s*=\s*\$3.*WHERE\s+id\s*=\s*\$1\s+AND\s+deleted_at\s+IS\s+NULL`
	secret := "JBSWY3DPEHPK3PXP"
	mock.ExpectExec(q).WithArgs("u-1", secret, true).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u-1", nil, false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u-2", nil, false).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateTwoFactor(context.Background(), "u-1", &secret, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := repo.UpdateTwoFactor(context.Background(), "u-1", nil, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := repo.UpdateTwoFactor(context.Background(), "u-2", nil, false); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthorization(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"role", "permission"}).
		AddRow("front_desk", "reservations.read").
		AddRow("front_desk", "reservations.write").
		AddRow("manager", "reservations.read").
		AddRow("viewer", nil)
	mock.ExpectQuery(`(?s)^SELECT\s+r\.name,\s*p\.name\s+FROM\s+user_roles`).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.Authorization(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Authorization error: %v", err)
	}
	if len(got.Roles) != 3 || got.Roles[2] != "viewer" {
		t.Fatalf("unexpected roles: %v", got.Roles)
	}
	if len(got.Permissions) != 2 {
		t.Fatalf("unexpected permissions: %v", got.Permissions)
	}
}

func TestAuthorization_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+r\.name`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "permission"}))

	got, err := repo.Authorization(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Authorization error: %v", err)
	}
	if got.Roles == nil || got.Permissions == nil {
		t.Fatalf("expected empty non-nil slices")
	}
}
