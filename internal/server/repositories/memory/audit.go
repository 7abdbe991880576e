package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/google/uuid"
)

type auditRepo struct{ s *Store }

func (r auditRepo) Insert(_ context.Context, e *models.AuditEntry) error {
	r.s.Lock()
	defer r.s.Unlock()
	if r.s.AuditErr != nil {
		return r.s.AuditErr
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.s.Audit = append(r.s.Audit, e)
	return nil
}

func (r auditRepo) ListByUser(_ context.Context, userID string, limit int) ([]*models.AuditEntry, error) {
	r.s.Lock()
	defer r.s.Unlock()
	out := make([]*models.AuditEntry, 0)
	for i := len(r.s.Audit) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.s.Audit[i]; e.UserID != nil && *e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
