// Package audit appends security events to the audit log.
package audit

import (
	"context"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, e *models.AuditEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditEntry, error)
}
