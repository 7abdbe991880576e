// Package users is the persistence contract for accounts. Soft-deleted users
// are never returned.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// RecordLoginFailure increments the failure counter and locks the
	// account once it reaches maxAttempts. It reports whether the account
	// is now locked.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int) (bool, error)
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, hash string) error

	// UpdateTwoFactor stores the TOTP secret (nil clears it) and whether it
	// is required at login.
	UpdateTwoFactor(ctx context.Context, id string, secret *string, enabled bool) error

	// Authorization returns the role and permission names granted to id.
	Authorization(ctx context.Context, id string) (*models.Authorization, error)
}
