package memory

import (
	"bytes"
	"context"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/google/uuid"
)

type challengeRepo struct{ s *Store }

func (r challengeRepo) Create(_ context.Context, c *models.Challenge) error {
	r.s.Lock()
	defer r.s.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	r.s.Challenges[c.ID] = &cp
	return nil
}

func (r challengeRepo) GetForUpdate(_ context.Context, challenge []byte) (*models.Challenge, error) {
	r.s.Lock()
	defer r.s.Unlock()
	for _, c := range r.s.Challenges {
		if bytes.Equal(c.Challenge, challenge) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrChallengeInvalid
}

func (r challengeRepo) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.s.Lock()
	defer r.s.Unlock()
	c, ok := r.s.Challenges[id]
	if !ok || c.UsedAt != nil {
		return common.ErrChallengeInvalid
	}
	c.UsedAt = &at
	return nil
}

func (r challengeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.Lock()
	defer r.s.Unlock()
	var n int64
	for id, c := range r.s.Challenges {
		if c.ExpiresAt.Before(now) {
			delete(r.s.Challenges, id)
			n++
		}
	}
	return n, nil
}
