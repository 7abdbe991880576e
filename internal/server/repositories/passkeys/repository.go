// Package passkeys stores WebAuthn credentials. Credential IDs are unique
// across all users and the signature counter only moves forward.
package passkeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
)

type Repository interface {
	// Create inserts a passkey. A duplicate credential ID yields
	// common.ErrDuplicateCredential.
	Create(ctx context.Context, p *models.Passkey) error
	ExistsByCredentialID(ctx context.Context, credentialID []byte) (bool, error)

	// GetByCredentialIDForUpdate locks the row so concurrent assertions for
	// the same credential serialize on the counter check.
	GetByCredentialIDForUpdate(ctx context.Context, credentialID []byte) (*models.Passkey, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.Passkey, error)
	CountByUser(ctx context.Context, userID string) (int, error)

	UpdateAfterLogin(ctx context.Context, id string, counter uint32, at time.Time) error

	// Flag deactivates a passkey suspected of being cloned.
	Flag(ctx context.Context, id string, at time.Time) error
	Rename(ctx context.Context, userID, id, name string) error
	Delete(ctx context.Context, userID, id string) error
}
