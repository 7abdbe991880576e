package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/dbx"
	"github.com/dmitrijs2005/hotelauth/internal/server/auth"
	"github.com/dmitrijs2005/hotelauth/internal/server/config"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/hotelauth/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

// SessionService mints access tokens and owns the refresh-token lifecycle:
// issue, rotate on refresh, revoke. Only SHA-256 hashes of refresh tokens
// are persisted.
type SessionService struct {
	base
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	audit                        *AuditService
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, audit *AuditService, opts ...Option) *SessionService {
	return &SessionService{
		base:                         newBase("sessions", opts),
		db:                           db,
		repomanager:                  m,
		audit:                        audit,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenTTL,
		refreshTokenValidityDuration: cfg.RefreshTokenTTL,
	}
}

// Issue creates a session for user with its current roles and permissions.
func (s *SessionService) Issue(ctx context.Context, user *models.User) (*models.TokenPair, *models.Authorization, error) {
	return s.issue(ctx, s.db, user)
}

// Validate checks an access token without touching storage.
func (s *SessionService) Validate(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.jwtSecret, jwtTime(s.clock))
}

// Refresh rotates refreshToken. Presenting a token that was already rotated
// is treated as theft: every live session of the user is revoked and the
// revocation is committed before ErrTokenReused is returned.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidToken
	}
	hash := HashToken(refreshToken)

	var pair *models.TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()
		tokens := s.repomanager.RefreshTokens(tx)

		rt, err := tokens.FindByHashForUpdate(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}

		if rt.IsRevoked {
			if rt.RevokedReason != nil && *rt.RevokedReason == models.RevokeRotated {
				n, err := tokens.RevokeAllForUser(ctx, rt.UserID, models.RevokeReuseDetected)
				if err != nil {
					return err
				}
				if err := s.audit.Record(ctx, tx, rt.UserID, models.AuditRefreshTokenReused, map[string]any{
					"token_id":         rt.ID,
					"sessions_revoked": n,
				}); err != nil {
					return err
				}
				return dbx.CommitThenFail(common.ErrTokenReused)
			}
			return common.ErrTokenRevoked
		}
		if !now.Before(rt.ExpiresAt) {
			return common.ErrTokenExpired
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenRevoked
			}
			return err
		}
		if !user.CanAuthenticate() {
			return common.ErrTokenRevoked
		}

		if err := tokens.Rotate(ctx, rt.ID, now); err != nil {
			return err
		}
		pair, _, err = s.issue(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrTokenReused) {
			s.log.Error(ctx, "refresh token reuse detected, sessions revoked", "error", err)
		}
		return nil, err
	}
	return pair, nil
}

// Revoke ends the session identified by refreshToken and returns its
// owner. The token itself is the credential, so no access token is needed.
// Unknown or already revoked tokens are ignored and return an empty owner.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", nil
	}
	hash := HashToken(refreshToken)

	var owner string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.RefreshTokens(tx)
		rt, err := tokens.FindByHashForUpdate(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}
		if rt.IsRevoked {
			return nil
		}
		if err := tokens.RevokeByHash(ctx, hash, models.RevokeLogout); err != nil {
			return err
		}
		owner = rt.UserID
		return nil
	})
	if err != nil {
		return "", err
	}
	return owner, nil
}

// RevokeAll ends every live session of userID in a single update.
func (s *SessionService) RevokeAll(ctx context.Context, userID string, reason models.RevokeReason) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "sessions revoked", "user_id", userID, "reason", string(reason), "count", n)
	return n, nil
}

func (s *SessionService) issue(ctx context.Context, db dbx.DBTX, user *models.User) (*models.TokenPair, *models.Authorization, error) {
	authz, err := s.repomanager.Users(db).Authorization(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	access, err := auth.GenerateToken(auth.Subject{
		UserID:      user.ID,
		Username:    user.Username,
		Roles:       authz.Roles,
		Permissions: authz.Permissions,
	}, s.jwtSecret, s.accessTokenValidityDuration, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}

	refresh, err := common.MakeRandHexString(common.RefreshTokenSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: refresh token: %v", common.ErrorInternal, err)
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: now.Add(s.refreshTokenValidityDuration),
	}); err != nil {
		return nil, nil, err
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.accessTokenValidityDuration),
	}, authz, nil
}

// HashToken is the storage key of a refresh token: hex SHA-256.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func jwtTime(c timex.Clock) jwt.ParserOption {
	return jwt.WithTimeFunc(c.Now)
}
