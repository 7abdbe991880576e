// Package auth mints and validates access tokens. Validation is stateless:
// signature, algorithm, issuer and expiry only.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const Issuer = "hotelauth"

// Subject is the identity an access token is minted for.
type Subject struct {
	UserID      string
	Username    string
	Roles       []string
	Permissions []string
}

// Claims carries the registered claims (sub, iat, exp, jti, iss) plus the
// authorization data copied from RBAC at mint time.
type Claims struct {
	jwt.RegisteredClaims
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (c *Claims) UserID() string { return c.Subject }

// HasPermission reports whether name was granted when the token was minted.
func (c *Claims) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

func GenerateToken(s Subject, secretKey []byte, validity time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   s.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Username:    s.Username,
		Roles:       nonNil(s.Roles),
		Permissions: nonNil(s.Permissions),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString and returns its claims. Expired tokens
// yield common.ErrTokenExpired, a bad signature common.ErrSignatureInvalid,
// anything else common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}

	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	}, opts...)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, opts...)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, common.ErrSignatureInvalid
	case err != nil:
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	case !token.Valid || claims.Subject == "":
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
