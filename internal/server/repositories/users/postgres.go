package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, username, email, full_name, password_hash, is_active, is_locked,
		failed_login_attempts, two_factor_enabled, two_factor_secret, last_login_at,
		created_at, updated_at, deleted_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, username, email, full_name, password_hash, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("%w: username or email already taken", common.ErrValidation)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE username = $1 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1 AND deleted_at IS NULL`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int) (bool, error) {
	query :=
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     is_locked = is_locked OR failed_login_attempts + 1 >= $2,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING is_locked`

	var locked bool
	if err := r.db.QueryRowContext(ctx, query, id, maxAttempts).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return locked, nil
}

func (r *PostgresRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE users
		 SET failed_login_attempts = 0, last_login_at = $2, updated_at = NOW()
		 WHERE id = $1`
	return r.execOne(ctx, query, id, at)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash string) error {
	query :=
		`UPDATE users
		 SET password_hash = $2, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id, hash)
}

func (r *PostgresRepository) UpdateTwoFactor(ctx context.Context, id string, secret *string, enabled bool) error {
	query :=
		`UPDATE users
		 SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`
	return r.execOne(ctx, query, id, secret, enabled)
}

func (r *PostgresRepository) Authorization(ctx context.Context, id string) (*models.Authorization, error) {
	query :=
		`SELECT r.name, p.name
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 LEFT JOIN role_permissions rp ON rp.role_id = r.id
		 LEFT JOIN permissions p ON p.id = rp.permission_id
		 WHERE ur.user_id = $1
		 ORDER BY r.name, p.name`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	authz := &models.Authorization{Roles: []string{}, Permissions: []string{}}
	seenRole := map[string]bool{}
	seenPerm := map[string]bool{}
	for rows.Next() {
		var role string
		var perm sql.NullString
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if !seenRole[role] {
			seenRole[role] = true
			authz.Roles = append(authz.Roles, role)
		}
		if perm.Valid && !seenPerm[perm.String] {
			seenPerm[perm.String] = true
			authz.Permissions = append(authz.Permissions, perm.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return authz, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.IsLocked,
		&u.FailedLoginAttempts, &u.TwoFactorEnabled, &u.TwoFactorSecret, &u.LastLoginAt,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
