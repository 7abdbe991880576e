package models

import "time"

// RevokeReason records why a refresh token stopped being usable.
type RevokeReason string

const (
	RevokeRotated        RevokeReason = "rotated"
	RevokeLogout         RevokeReason = "logout"
	RevokeLogoutAll      RevokeReason = "logout_all"
	RevokePasswordChange RevokeReason = "password_change"
	RevokeReuseDetected  RevokeReason = "reuse_detected"
	RevokePasskeyReplay  RevokeReason = "passkey_replay"
	RevokeTwoFactorOff   RevokeReason = "two_factor_disabled"
)

// RefreshToken is the persisted half of a session. Only the SHA-256 of the
// token is stored.
type RefreshToken struct {
	ID            string
	UserID        string
	TokenHash     string
	ExpiresAt     time.Time
	IsRevoked     bool
	RevokedReason *RevokeReason
	LastUsedAt    *time.Time
	CreatedAt     time.Time
}

// TokenPair is what a successful login or refresh hands to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
