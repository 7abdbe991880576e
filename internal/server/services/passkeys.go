package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
)

const maxDeviceNameLength = 100

// PasskeyService lets a signed-in user manage their own passkeys.
type PasskeyService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
}

func NewPasskeyService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, opts ...Option) *PasskeyService {
	return &PasskeyService{base: newBase("passkeys", opts), db: db, repomanager: m, audit: audit}
}

// List returns all passkeys of the user, including flagged ones.
func (s *PasskeyService) List(ctx context.Context, userID string) ([]*models.Passkey, error) {
	return s.repomanager.Passkeys(s.db).ListByUser(ctx, userID, false)
}

func (s *PasskeyService) Rename(ctx context.Context, userID, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxDeviceNameLength {
		return fmt.Errorf("%w: device name must be 1..%d characters", common.ErrValidation, maxDeviceNameLength)
	}
	if err := s.repomanager.Passkeys(s.db).Rename(ctx, userID, id, name); err != nil {
		return err
	}
	s.audit.RecordBestEffort(ctx, userID, models.AuditPasskeyRenamed, map[string]any{"passkey_id": id, "device_name": name})
	return nil
}

func (s *PasskeyService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repomanager.Passkeys(s.db).Delete(ctx, userID, id); err != nil {
		return err
	}
	s.audit.RecordBestEffort(ctx, userID, models.AuditPasskeyDeleted, map[string]any{"passkey_id": id})
	s.log.Info(ctx, "passkey deleted", "user_id", userID, "passkey_id", id)
	return nil
}
