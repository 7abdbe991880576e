package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.Lock()
	defer r.s.Unlock()
	for _, x := range r.s.Users {
		if x.Username == u.Username || x.Email == u.Email {
			return nil, fmt.Errorf("%w: username or email already taken", common.ErrValidation)
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return r.s.addUser(u), nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.Lock()
	defer r.s.Unlock()
	for _, u := range r.s.Users {
		if u.Username == username && u.DeletedAt == nil {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.Lock()
	defer r.s.Unlock()
	u, ok := r.s.Users[id]
	if !ok || u.DeletedAt != nil {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (r userRepo) RecordLoginFailure(_ context.Context, id string, maxAttempts int) (bool, error) {
	r.s.Lock()
	defer r.s.Unlock()
	u, ok := r.s.Users[id]
	if !ok {
		return false, common.ErrorNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		u.IsLocked = true
	}
	return u.IsLocked, nil
}

func (r userRepo) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	r.s.Lock()
	defer r.s.Unlock()
	u, ok := r.s.Users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.FailedLoginAttempts = 0
	u.LastLoginAt = &at
	return nil
}

func (r userRepo) UpdatePassword(_ context.Context, id string, hash string) error {
	r.s.Lock()
	defer r.s.Unlock()
	u, ok := r.s.Users[id]
	if !ok || u.DeletedAt != nil {
		return common.ErrorNotFound
	}
	u.PasswordHash = &hash
	return nil
}

func (r userRepo) UpdateTwoFactor(_ context.Context, id string, secret *string, enabled bool) error {
	r.s.Lock()
	defer r.s.Unlock()
	u, ok := r.s.Users[id]
	if !ok || u.DeletedAt != nil {
		return common.ErrorNotFound
	}
	u.TwoFactorSecret, u.TwoFactorEnabled = secret, enabled
	return nil
}

func (r userRepo) Authorization(_ context.Context, id string) (*models.Authorization, error) {
	r.s.Lock()
	defer r.s.Unlock()
	if a, ok := r.s.Authz[id]; ok {
		return &models.Authorization{
			Roles:       append([]string{}, a.Roles...),
			Permissions: append([]string{}, a.Permissions...),
		}, nil
	}
	return &models.Authorization{Roles: []string{}, Permissions: []string{}}, nil
}
