package models

import "time"

// Passkey is a WebAuthn credential registered by a user. CredentialID is
// unique across all users; Counter never decreases.
type Passkey struct {
	ID           string
	UserID       string
	CredentialID []byte
	PublicKey    []byte
	Counter      uint32
	AAGUID       []byte
	Transports   []string
	DeviceName   string
	IsActive     bool
	FlaggedAt    *time.Time
	CreatedAt    time.Time
	LastUsedAt   *time.Time
}

type ChallengeType string

const (
	ChallengeRegistration   ChallengeType = "registration"
	ChallengeAuthentication ChallengeType = "authentication"
)

// Challenge is a one-time ceremony challenge. UserID is nil for
// discoverable-credential login.
type Challenge struct {
	ID        string
	UserID    *string
	Challenge []byte
	Type      ChallengeType
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the challenge can still be consumed at now.
func (c *Challenge) Usable(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}
