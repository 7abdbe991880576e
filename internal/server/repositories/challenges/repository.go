// Package challenges persists one-time WebAuthn ceremony challenges.
package challenges

import (
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Challenge) error

	// GetForUpdate locks the challenge row with the given raw bytes. Returns
	// common.ErrChallengeInvalid when no row matches.
	GetForUpdate(ctx context.Context, challenge []byte) (*models.Challenge, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error

	// DeleteExpired purges challenges that expired before now, used or not.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
