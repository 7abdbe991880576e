package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
)

type clientIPKey struct{}

// ContextWithClientIP attaches the caller address recorded in audit rows.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// AuditService appends security events. Record writes through the caller's
// connection or transaction so the event commits together with the change
// it describes.
type AuditService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, opts ...Option) *AuditService {
	return &AuditService{base: newBase("audit", opts), db: db, repomanager: m}
}

func (s *AuditService) Record(ctx context.Context, db dbx.DBTX, userID string, action models.AuditAction, details map[string]any) error {
	e := &models.AuditEntry{
		Action:    action,
		Details:   details,
		IPAddress: clientIP(ctx),
	}
	if userID != "" {
		e.UserID = &userID
	}
	if err := s.repomanager.Audit(db).Insert(ctx, e); err != nil {
		s.log.Error(ctx, "audit write failed", "action", string(action), "error", err)
		return err
	}
	return nil
}

// RecordBestEffort is Record outside any transaction; failures are only logged.
func (s *AuditService) RecordBestEffort(ctx context.Context, userID string, action models.AuditAction, details map[string]any) {
	_ = s.Record(ctx, s.db, userID, action, details)
}

// History returns the most recent events of a user, newest first.
func (s *AuditService) History(ctx context.Context, userID string, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repomanager.Audit(s.db).ListByUser(ctx, userID, limit)
}
