package refreshtokens

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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, is_revoked, revoked_reason, last_used_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`
	t := &models.RefreshToken{}
	var reason sql.NullString
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsRevoked, &reason, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if reason.Valid {
		rr := models.RevokeReason(reason.String)
		t.RevokedReason = &rr
	}
	return t, nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_reason = $2, last_used_at = $3
		WHERE id = $1 AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, id, string(models.RevokeRotated), at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrTokenRevoked
	}
	return nil
}

func (r *PostgresRepository) RevokeByHash(ctx context.Context, tokenHash string, reason models.RevokeReason) error {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_reason = $2
		WHERE token_hash = $1 AND NOT is_revoked
	`
	if _, err := r.db.ExecContext(ctx, query, tokenHash, string(reason)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, reason models.RevokeReason) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET is_revoked = TRUE, revoked_reason = $2
		WHERE user_id = $1 AND NOT is_revoked
	`
	res, err := r.db.ExecContext(ctx, query, userID, string(reason))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
