// Package refreshtokens declares the server-side repository contract for
// refresh tokens. Tokens are addressed by the hex SHA-256 of the opaque value.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
)

// Repository defines operations for issuing, rotating and revoking refresh tokens.
type Repository interface {
	// Create stores a new token row. ID is generated when empty.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHashForUpdate locks and returns the row for tokenHash, revoked or
	// not. Returns common.ErrorNotFound when absent.
	FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Rotate marks id revoked with reason "rotated" and stamps last_used_at.
	Rotate(ctx context.Context, id string, at time.Time) error

	// RevokeByHash revokes a single live token. Revoking an unknown or
	// already revoked token is not an error.
	RevokeByHash(ctx context.Context, tokenHash string, reason models.RevokeReason) error

	// RevokeAllForUser revokes every live token of userID and returns how many
	// rows changed.
	RevokeAllForUser(ctx context.Context, userID string, reason models.RevokeReason) (int64, error)

	// DeleteExpired purges tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
