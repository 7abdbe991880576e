package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/google/uuid"
)

type passkeyRepo struct{ s *Store }

func (r passkeyRepo) find(credentialID []byte) *models.Passkey {
	for _, p := range r.s.Passkeys {
		if bytes.Equal(p.CredentialID, credentialID) {
			return p
		}
	}
	return nil
}

func (r passkeyRepo) Create(_ context.Context, p *models.Passkey) error {
	r.s.Lock()
	defer r.s.Unlock()
	if r.find(p.CredentialID) != nil {
		return common.ErrDuplicateCredential
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Transports == nil {
		p.Transports = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	r.s.Passkeys[p.ID] = &cp
	return nil
}

func (r passkeyRepo) ExistsByCredentialID(_ context.Context, credentialID []byte) (bool, error) {
	r.s.Lock()
	defer r.s.Unlock()
	return r.find(credentialID) != nil, nil
}

func (r passkeyRepo) GetByCredentialIDForUpdate(_ context.Context, credentialID []byte) (*models.Passkey, error) {
	r.s.Lock()
	defer r.s.Unlock()
	p := r.find(credentialID)
	if p == nil {
		return nil, common.ErrCredentialNotFound
	}
	cp := *p
	return &cp, nil
}

func (r passkeyRepo) ListByUser(_ context.Context, userID string, activeOnly bool) ([]*models.Passkey, error) {
	r.s.Lock()
	defer r.s.Unlock()
	out := make([]*models.Passkey, 0)
	for _, p := range r.s.Passkeys {
		if p.UserID == userID && (p.IsActive || !activeOnly) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r passkeyRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	list, err := r.ListByUser(ctx, userID, false)
	return len(list), err
}

func (r passkeyRepo) update(id string, fn func(p *models.Passkey) bool) error {
	r.s.Lock()
	defer r.s.Unlock()
	p, ok := r.s.Passkeys[id]
	if !ok || !fn(p) {
		return common.ErrCredentialNotFound
	}
	return nil
}

func (r passkeyRepo) UpdateAfterLogin(_ context.Context, id string, counter uint32, at time.Time) error {
	return r.update(id, func(p *models.Passkey) bool {
		p.Counter = counter
		p.LastUsedAt = &at
		return true
	})
}

func (r passkeyRepo) Flag(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(p *models.Passkey) bool {
		p.IsActive = false
		p.FlaggedAt = &at
		return true
	})
}

func (r passkeyRepo) Rename(_ context.Context, userID, id, name string) error {
	return r.update(id, func(p *models.Passkey) bool {
		if p.UserID != userID {
			return false
		}
		p.DeviceName = name
		return true
	})
}

func (r passkeyRepo) Delete(_ context.Context, userID, id string) error {
	r.s.Lock()
	defer r.s.Unlock()
	p, ok := r.s.Passkeys[id]
	if !ok || p.UserID != userID {
		return common.ErrCredentialNotFound
	}
	delete(r.s.Passkeys, id)
	return nil
}
