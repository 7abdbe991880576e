package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/google/uuid"
)

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, t *models.RefreshToken) error {
	r.s.Lock()
	defer r.s.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	r.s.Tokens[t.ID] = &cp
	return nil
}

func (r tokenRepo) FindByHashForUpdate(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.s.Lock()
	defer r.s.Unlock()
	for _, t := range r.s.Tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r tokenRepo) Rotate(_ context.Context, id string, at time.Time) error {
	r.s.Lock()
	defer r.s.Unlock()
	t, ok := r.s.Tokens[id]
	if !ok || t.IsRevoked {
		return common.ErrTokenRevoked
	}
	reason := models.RevokeRotated
	t.IsRevoked, t.RevokedReason, t.LastUsedAt = true, &reason, &at
	return nil
}

func (r tokenRepo) RevokeByHash(_ context.Context, tokenHash string, reason models.RevokeReason) error {
	r.s.Lock()
	defer r.s.Unlock()
	for _, t := range r.s.Tokens {
		if t.TokenHash == tokenHash && !t.IsRevoked {
			t.IsRevoked, t.RevokedReason = true, &reason
		}
	}
	return nil
}

func (r tokenRepo) RevokeAllForUser(_ context.Context, userID string, reason models.RevokeReason) (int64, error) {
	r.s.Lock()
	defer r.s.Unlock()
	var n int64
	for _, t := range r.s.Tokens {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked, t.RevokedReason = true, &reason
			n++
		}
	}
	return n, nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.Lock()
	defer r.s.Unlock()
	var n int64
	for id, t := range r.s.Tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.s.Tokens, id)
			n++
		}
	}
	return n, nil
}
