package passkeys

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
	"github.com/jackc/pgx/v5/pgtype"
)

const passkeyColumns = `id, user_id, credential_id, public_key, counter, aaguid, transports,
		device_name, is_active, flagged_at, created_at, last_used_at`

type PostgresRepository struct {
	db    dbx.DBTX
	types *pgtype.Map
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, types: pgtype.NewMap()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scan(row rowScanner) (*models.Passkey, error) {
	p := &models.Passkey{}
	var counter int64
	var transports []string
	err := row.Scan(&p.ID, &p.UserID, &p.CredentialID, &p.PublicKey, &counter, &p.AAGUID,
		r.types.SQLScanner(&transports), &p.DeviceName, &p.IsActive, &p.FlaggedAt, &p.CreatedAt, &p.LastUsedAt)
	if err != nil {
		return nil, err
	}
	p.Counter = uint32(counter)
	if transports == nil {
		transports = []string{}
	}
	p.Transports = transports
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Passkey) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Transports == nil {
		p.Transports = []string{}
	}

	query :=
		`INSERT INTO passkeys (id, user_id, credential_id, public_key, counter, aaguid, transports, device_name, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.CredentialID, p.PublicKey, int64(p.Counter), p.AAGUID, p.Transports, p.DeviceName, p.IsActive,
	).Scan(&p.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrDuplicateCredential
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ExistsByCredentialID(ctx context.Context, credentialID []byte) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM passkeys WHERE credential_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, credentialID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) GetByCredentialIDForUpdate(ctx context.Context, credentialID []byte) (*models.Passkey, error) {
	query := `SELECT ` + passkeyColumns + ` FROM passkeys
		 WHERE credential_id = $1
		 FOR UPDATE`

	p, err := r.scan(r.db.QueryRowContext(ctx, query, credentialID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.Passkey, error) {
	query := `SELECT ` + passkeyColumns + ` FROM passkeys
		 WHERE user_id = $1 AND (is_active OR NOT $2)
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Passkey, 0)
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM passkeys WHERE user_id = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) UpdateAfterLogin(ctx context.Context, id string, counter uint32, at time.Time) error {
	query :=
		`UPDATE passkeys
		 SET counter = $2, last_used_at = $3
		 WHERE id = $1`
	return r.execOne(ctx, common.ErrCredentialNotFound, query, id, int64(counter), at)
}

func (r *PostgresRepository) Flag(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE passkeys
		 SET is_active = FALSE, flagged_at = $2
		 WHERE id = $1`
	return r.execOne(ctx, common.ErrCredentialNotFound, query, id, at)
}

func (r *PostgresRepository) Rename(ctx context.Context, userID, id, name string) error {
	query :=
		`UPDATE passkeys
		 SET device_name = $3
		 WHERE id = $1 AND user_id = $2`
	return r.execOne(ctx, common.ErrCredentialNotFound, query, id, userID, name)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM passkeys WHERE id = $1 AND user_id = $2`
	return r.execOne(ctx, common.ErrCredentialNotFound, query, id, userID)
}

func (r *PostgresRepository) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
