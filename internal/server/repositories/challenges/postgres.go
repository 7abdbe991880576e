package challenges

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Challenge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query := `
		INSERT INTO passkey_challenges (id, user_id, challenge, challenge_type, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, c.ID, c.UserID, c.Challenge, string(c.Type), c.ExpiresAt).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, challenge []byte) (*models.Challenge, error) {
	query := `
		SELECT id, user_id, challenge, challenge_type, expires_at, used_at, created_at
		FROM passkey_challenges
		WHERE challenge = $1
		FOR UPDATE
	`
	c := &models.Challenge{}
	var typ string
	err := r.db.QueryRowContext(ctx, query, challenge).Scan(
		&c.ID, &c.UserID, &c.Challenge, &typ, &c.ExpiresAt, &c.UsedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrChallengeInvalid
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.Type = models.ChallengeType(typ)
	return c, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE passkey_challenges
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrChallengeInvalid
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM passkey_challenges
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
