package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/passkey"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
)

const defaultDeviceName = "Passkey"

// CeremonyService finishes WebAuthn ceremonies. Each finish runs in one
// transaction that locks the challenge row; once a challenge has been found
// valid it is consumed even when the ceremony then fails.
type CeremonyService struct {
	base
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	rp          passkey.Config
	audit       *AuditService
}

func NewCeremonyService(db *sql.DB, m repomanager.RepositoryManager, rp passkey.Config, audit *AuditService, opts ...Option) *CeremonyService {
	return &CeremonyService{base: newBase("ceremony", opts), db: db, repomanager: m, rp: rp, audit: audit}
}

// FinishRegistration verifies an attestation for username against the
// base64url challenge and stores the new passkey.
func (s *CeremonyService) FinishRegistration(ctx context.Context, username, challenge string, credentialJSON []byte, deviceName string) (*models.Passkey, error) {
	raw, err := codec.DecodeExact(challenge, common.ChallengeSize)
	if err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	if deviceName == "" {
		deviceName = defaultDeviceName
	}

	var created *models.Passkey
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ch, err := s.claimChallenge(ctx, tx, raw, models.ChallengeRegistration)
		if err != nil {
			return err
		}

		user, err := s.repomanager.Users(tx).GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return dbx.CommitThenFail(common.ErrChallengeInvalid)
			}
			return err
		}
		if ch.UserID == nil || *ch.UserID != user.ID {
			return dbx.CommitThenFail(common.ErrChallengeInvalid)
		}

		reg, err := s.rp.VerifyRegistration(ch.Challenge, credentialJSON)
		if err != nil {
			return dbx.CommitThenFail(err)
		}

		keys := s.repomanager.Passkeys(tx)
		n, err := keys.CountByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if n >= common.MaxPasskeysPerUser {
			return dbx.CommitThenFail(common.ErrPasskeyLimit)
		}
		exists, err := keys.ExistsByCredentialID(ctx, reg.CredentialID)
		if err != nil {
			return err
		}
		if exists {
			return dbx.CommitThenFail(common.ErrDuplicateCredential)
		}

		p := &models.Passkey{
			UserID:       user.ID,
			CredentialID: reg.CredentialID,
			PublicKey:    reg.PublicKey,
			Counter:      reg.Counter,
			AAGUID:       reg.AAGUID,
			Transports:   reg.Transports,
			DeviceName:   deviceName,
			IsActive:     true,
		}
		if err := keys.Create(ctx, p); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, user.ID, models.AuditPasskeyRegistered, map[string]any{
			"passkey_id":  p.ID,
			"device_name": p.DeviceName,
		}); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "passkey registration failed", "username", username, "error", err)
		return nil, err
	}

	s.log.Info(ctx, "passkey registered", "user_id", created.UserID, "passkey_id", created.ID)
	return created, nil
}

// FinishAuthentication verifies an assertion and returns the credential
// owner. A counter that did not move forward deactivates the credential,
// revokes the owner's sessions and is audited before ErrReplaySuspected is
// returned; last_used_at is left untouched in that case.
func (s *CeremonyService) FinishAuthentication(ctx context.Context, username string, in passkey.AssertionInput) (*models.User, *models.Passkey, error) {
	a, err := in.Decode()
	if err != nil {
		return nil, nil, err
	}

	var (
		owner *models.User
		used  *models.Passkey
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()

		ch, err := s.claimChallenge(ctx, tx, a.Challenge, models.ChallengeAuthentication)
		if err != nil {
			return err
		}

		keys := s.repomanager.Passkeys(tx)
		pk, err := keys.GetByCredentialIDForUpdate(ctx, a.CredentialID)
		if err != nil {
			if errors.Is(err, common.ErrCredentialNotFound) {
				return dbx.CommitThenFail(err)
			}
			return err
		}
		if !pk.IsActive {
			return dbx.CommitThenFail(common.ErrCredentialNotFound)
		}
		if ch.UserID != nil && *ch.UserID != pk.UserID {
			return dbx.CommitThenFail(common.ErrChallengeInvalid)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, pk.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return dbx.CommitThenFail(common.ErrCredentialNotFound)
			}
			return err
		}
		if username != "" && user.Username != username {
			return dbx.CommitThenFail(common.ErrCredentialNotFound)
		}
		if err := accountUsable(user); err != nil {
			return dbx.CommitThenFail(err)
		}

		reported, err := s.rp.VerifyAssertion(a, pk.PublicKey)
		if err != nil {
			return dbx.CommitThenFail(err)
		}

		if err := passkey.CheckCounter(pk.Counter, reported, s.rp.AllowZeroCounter); err != nil {
			if ferr := s.flagReplay(ctx, tx, pk, reported, now); ferr != nil {
				return ferr
			}
			return dbx.CommitThenFail(err)
		}

		if err := keys.UpdateAfterLogin(ctx, pk.ID, reported, now); err != nil {
			return err
		}
		pk.Counter = reported
		pk.LastUsedAt = &now

		if err := s.audit.Record(ctx, tx, user.ID, models.AuditPasskeyLogin, map[string]any{
			"passkey_id": pk.ID,
		}); err != nil {
			return err
		}

		owner, used = user, pk
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrReplaySuspected) {
			s.log.Error(ctx, "passkey counter regression, credential deactivated", "credential_id", codec.Encode(a.CredentialID), "error", err)
		} else {
			s.log.Warn(ctx, "passkey authentication failed", "error", err)
		}
		return nil, nil, err
	}

	s.log.Info(ctx, "passkey authentication succeeded", "user_id", owner.ID, "passkey_id", used.ID)
	return owner, used, nil
}

// claimChallenge locks the challenge row, checks it and marks it used.
// Failures before the challenge is known to be valid roll back.
func (s *CeremonyService) claimChallenge(ctx context.Context, tx dbx.DBTX, raw []byte, typ models.ChallengeType) (*models.Challenge, error) {
	repo := s.repomanager.Challenges(tx)
	ch, err := repo.GetForUpdate(ctx, raw)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if ch.Type != typ || !ch.Usable(now) {
		return nil, common.ErrChallengeInvalid
	}
	if err := repo.MarkUsed(ctx, ch.ID, now); err != nil {
		return nil, err
	}
	ch.UsedAt = &now
	return ch, nil
}

func (s *CeremonyService) flagReplay(ctx context.Context, tx dbx.DBTX, pk *models.Passkey, reported uint32, now time.Time) error {
	if err := s.repomanager.Passkeys(tx).Flag(ctx, pk.ID, now); err != nil {
		return err
	}
	revoked, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, pk.UserID, models.RevokePasskeyReplay)
	if err != nil {
		return err
	}
	return s.audit.Record(ctx, tx, pk.UserID, models.AuditPasskeyReplaySuspected, map[string]any{
		"passkey_id":       pk.ID,
		"stored_counter":   pk.Counter,
		"reported_counter": reported,
		"sessions_revoked": revoked,
	})
}

// accountUsable maps an account that may not sign in to its error.
func accountUsable(u *models.User) error {
	switch {
	case u.IsLocked:
		return common.ErrAccountLocked
	case !u.IsActive:
		return common.ErrAccountInactive
	}
	return nil
}
