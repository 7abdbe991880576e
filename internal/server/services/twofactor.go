package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpPeriod = 30

var errInvalidCode = fmt.Errorf("%w: invalid two-factor code", common.ErrValidation)

// TwoFactorSetup is shown to the user once, to load into an authenticator app.
type TwoFactorSetup struct {
	Secret string
	URL    string
}

// TwoFactorStatus reports whether login asks for a code, and whether a
// secret is waiting to be confirmed.
type TwoFactorStatus struct {
	Enabled bool
	Pending bool
}

// SetupTwoFactor generates a new TOTP secret. It is stored but not required
// at login until EnableTwoFactor confirms a code from it.
func (s *UserService) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, fmt.Errorf("%w: two-factor authentication is already enabled", common.ErrValidation)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: user.Username,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	secret := key.Secret()
	if err := users.UpdateTwoFactor(ctx, userID, &secret, false); err != nil {
		return nil, err
	}

	s.audit.RecordBestEffort(ctx, userID, models.AuditTwoFactorSetup, nil)
	return &TwoFactorSetup{Secret: secret, URL: key.URL()}, nil
}

// EnableTwoFactor turns on the pending secret once code proves the user
// holds it.
func (s *UserService) EnableTwoFactor(ctx context.Context, userID, code string) error {
	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return fmt.Errorf("%w: two-factor authentication is already enabled", common.ErrValidation)
	}
	if user.TwoFactorSecret == nil {
		return fmt.Errorf("%w: two-factor setup has not been started", common.ErrValidation)
	}
	if !s.validTOTP(user, code) {
		return errInvalidCode
	}
	if err := users.UpdateTwoFactor(ctx, userID, user.TwoFactorSecret, true); err != nil {
		return err
	}

	s.audit.RecordBestEffort(ctx, userID, models.AuditTwoFactorEnabled, nil)
	s.log.Info(ctx, "two-factor authentication enabled", "user_id", userID)
	return nil
}

// DisableTwoFactor clears the secret after a valid code and revokes every
// refresh token of the user. It returns how many sessions ended.
func (s *UserService) DisableTwoFactor(ctx context.Context, userID, code string) (int64, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !user.TwoFactorEnabled {
		return 0, fmt.Errorf("%w: two-factor authentication is not enabled", common.ErrValidation)
	}
	if !s.validTOTP(user, code) {
		return 0, errInvalidCode
	}

	var revoked int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdateTwoFactor(ctx, userID, nil, false); err != nil {
			return err
		}
		n, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID, models.RevokeTwoFactorOff)
		if err != nil {
			return err
		}
		revoked = n
		return s.audit.Record(ctx, tx, userID, models.AuditTwoFactorDisabled, map[string]any{"sessions_revoked": n})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info(ctx, "two-factor authentication disabled", "user_id", userID, "sessions_revoked", revoked)
	return revoked, nil
}

func (s *UserService) TwoFactorStatus(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TwoFactorStatus{
		Enabled: user.TwoFactorEnabled,
		Pending: !user.TwoFactorEnabled && user.TwoFactorSecret != nil,
	}, nil
}
