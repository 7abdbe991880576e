package services

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/auth"
	"github.com/dmitrijs2005/hotelauth/internal/server/config"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 8

// dummyHash is compared against when the username is unknown so that the
// response time does not reveal whether the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hotelauth-dummy-password"), bcrypt.DefaultCost)

// AuthResult is what a successful login hands to the transport.
type AuthResult struct {
	Tokens       *models.TokenPair
	User         *models.User
	Roles        []string
	Permissions  []string
	IsFirstLogin bool
}

// Profile is the caller's own account view.
type Profile struct {
	User         *models.User
	Roles        []string
	Permissions  []string
	PasskeyCount int
}

// RegisterInput describes a new account. Password may be empty for a
// passkey-only account.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// UserService handles accounts: registration, password login with optional
// TOTP, lockout after repeated failures, and password changes.
type UserService struct {
	base
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	sessions        *SessionService
	audit           *AuditService
	maxFailedLogins int
	totpIssuer      string
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, sessions *SessionService, audit *AuditService, opts ...Option) *UserService {
	return &UserService{
		base:            newBase("users", opts),
		db:              db,
		repomanager:     m,
		sessions:        sessions,
		audit:           audit,
		maxFailedLogins: cfg.MaxFailedLogins,
		totpIssuer:      cmp.Or(cfg.RPName, auth.Issuer),
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrValidation)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		FullName: strings.TrimSpace(in.FullName),
		IsActive: true,
	}
	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "passkey_only", u.PasswordHash == nil)
	return u, nil
}

// Login verifies a password and, when enabled, a TOTP code.
func (s *UserService) Login(ctx context.Context, username, password, totpCode string) (*AuthResult, error) {
	users := s.repomanager.Users(s.db)

	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.audit.RecordBestEffort(ctx, "", models.AuditLoginFailed, map[string]any{"username": username, "reason": "unknown_user"})
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if err := accountUsable(user); err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, common.ErrorUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return nil, s.loginFailed(ctx, user, "bad_password", common.ErrorUnauthorized)
	}

	if user.TwoFactorEnabled {
		if totpCode == "" {
			return nil, common.ErrTOTPRequired
		}
		if !s.validTOTP(user, totpCode) {
			return nil, s.loginFailed(ctx, user, "bad_totp", common.ErrTOTPInvalid)
		}
	}

	return s.CompleteLogin(ctx, user, "password")
}

// CompleteLogin records a successful sign-in and opens a session. It is
// shared by password and passkey login; IsFirstLogin reflects the state
// before this login was recorded.
func (s *UserService) CompleteLogin(ctx context.Context, user *models.User, method string) (*AuthResult, error) {
	first := user.IsFirstLogin()
	now := s.now()

	if err := s.repomanager.Users(s.db).RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	user.FailedLoginAttempts = 0

	pair, authz, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if method == "password" {
		s.audit.RecordBestEffort(ctx, user.ID, models.AuditLoginSuccess, map[string]any{"method": method})
	}
	s.log.Info(ctx, "login succeeded", "user_id", user.ID, "method", method, "first_login", first)

	return &AuthResult{
		Tokens:       pair,
		User:         user,
		Roles:        authz.Roles,
		Permissions:  authz.Permissions,
		IsFirstLogin: first,
	}, nil
}

// ChangePassword replaces the password and revokes every refresh token of
// the user. Accounts without a password may set one without the current.
// A wrong current password is ErrWrongPassword, never an authentication
// failure: the caller's session is still valid.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash != nil {
		if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(current)) != nil {
			return common.ErrWrongPassword
		}
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		n, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID, models.RevokePasswordChange)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, userID, models.AuditPasswordChanged, map[string]any{"sessions_revoked": n})
	})
}

func (s *UserService) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	authz, err := s.repomanager.Users(s.db).Authorization(ctx, userID)
	if err != nil {
		return nil, err
	}
	n, err := s.repomanager.Passkeys(s.db).CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Roles: authz.Roles, Permissions: authz.Permissions, PasskeyCount: n}, nil
}

func (s *UserService) loginFailed(ctx context.Context, user *models.User, reason string, result error) error {
	locked, err := s.repomanager.Users(s.db).RecordLoginFailure(ctx, user.ID, s.maxFailedLogins)
	if err != nil {
		return err
	}
	s.audit.RecordBestEffort(ctx, user.ID, models.AuditLoginFailed, map[string]any{"reason": reason})
	if locked {
		s.audit.RecordBestEffort(ctx, user.ID, models.AuditAccountLocked, nil)
		s.log.Warn(ctx, "account locked after failed logins", "user_id", user.ID)
		return common.ErrAccountLocked
	}
	return result
}

func (s *UserService) validTOTP(user *models.User, code string) bool {
	if user.TwoFactorSecret == nil {
		return false
	}
	ok, err := totp.ValidateCustom(code, *user.TwoFactorSecret, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %v", common.ErrValidation, err)
	}
	return string(hash), nil
}
