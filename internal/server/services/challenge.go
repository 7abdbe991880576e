package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/passkey"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
)

// ChallengeService issues the one-time challenges that open a registration
// or authentication ceremony. Every successful call stores exactly one
// challenge row.
type ChallengeService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	rp          passkey.Config
}

func NewChallengeService(db *sql.DB, m repomanager.RepositoryManager, rp passkey.Config, opts ...Option) *ChallengeService {
	return &ChallengeService{base: newBase("challenges", opts), db: db, repomanager: m, rp: rp}
}

// StartRegistration returns creation options for an existing, active user.
// Credentials the user already owns are listed in excludeCredentials.
func (s *ChallengeService) StartRegistration(ctx context.Context, username string) (*protocol.PublicKeyCredentialCreationOptions, error) {
	user, err := s.activeUser(ctx, username)
	if err != nil {
		return nil, err
	}

	existing, err := s.repomanager.Passkeys(s.db).ListByUser(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}
	if len(existing) >= common.MaxPasskeysPerUser {
		return nil, common.ErrPasskeyLimit
	}

	challenge, err := s.store(ctx, &user.ID, models.ChallengeRegistration)
	if err != nil {
		return nil, err
	}

	exclude := make([]passkey.Descriptor, 0, len(existing))
	for _, p := range existing {
		exclude = append(exclude, passkey.Descriptor{CredentialID: p.CredentialID, Transports: p.Transports})
	}

	handle, err := userHandle(user.ID)
	if err != nil {
		return nil, err
	}

	opts := s.rp.CreationOptions(challenge, handle, user.Username, user.DisplayName(), exclude)
	s.log.Info(ctx, "registration challenge issued", "user_id", user.ID)
	return &opts, nil
}

// StartAuthentication returns request options. An empty username starts a
// discoverable-credential login: the challenge is not bound to a user and
// the allow list is empty.
func (s *ChallengeService) StartAuthentication(ctx context.Context, username string) (*protocol.PublicKeyCredentialRequestOptions, error) {
	var (
		userID *string
		allow  []passkey.Descriptor
	)

	if username != "" {
		user, err := s.activeUser(ctx, username)
		if err != nil {
			return nil, err
		}
		keys, err := s.repomanager.Passkeys(s.db).ListByUser(ctx, user.ID, true)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, common.ErrCredentialNotFound
		}
		for _, p := range keys {
			allow = append(allow, passkey.Descriptor{CredentialID: p.CredentialID, Transports: p.Transports})
		}
		userID = &user.ID
	}

	challenge, err := s.store(ctx, userID, models.ChallengeAuthentication)
	if err != nil {
		return nil, err
	}

	opts := s.rp.RequestOptions(challenge, allow)
	s.log.Info(ctx, "authentication challenge issued", "discoverable", userID == nil)
	return &opts, nil
}

// AuthorizeEnrollment decides whether callerID may add a passkey to
// username. The owner always may. Anyone may enroll the first credential of
// an account that has neither a password nor a passkey yet.
func (s *ChallengeService) AuthorizeEnrollment(ctx context.Context, username, callerID string) error {
	user, err := s.activeUser(ctx, username)
	if err != nil {
		return err
	}
	if callerID != "" && callerID == user.ID {
		return nil
	}
	if user.PasswordHash != nil {
		return common.ErrorUnauthorized
	}
	n, err := s.repomanager.Passkeys(s.db).CountByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return common.ErrorUnauthorized
	}
	return nil
}

func (s *ChallengeService) activeUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

func (s *ChallengeService) store(ctx context.Context, userID *string, typ models.ChallengeType) ([]byte, error) {
	c := &models.Challenge{
		UserID:    userID,
		Challenge: common.GenerateRandByteArray(common.ChallengeSize),
		Type:      typ,
		ExpiresAt: s.now().Add(s.rp.ChallengeTTL),
	}
	if err := s.repomanager.Challenges(s.db).Create(ctx, c); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return c.Challenge, nil
}

// userHandle is the WebAuthn user id: the 16 raw bytes of the user's UUID.
func userHandle(id string) ([]byte, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Join(common.ErrorInternal, err)
	}
	return u[:], nil
}
