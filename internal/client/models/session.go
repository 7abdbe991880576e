// Package models defines the data the hotelauth client keeps and exchanges
// with the server.
package models

import "time"

// User is the account summary the server returns with a session.
type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	IsActive         bool       `json:"is_active"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Session is what the client keeps after a successful login.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
	Roles        []string  `json:"roles"`
	Permissions  []string  `json:"permissions"`
	IsFirstLogin bool      `json:"is_first_login"`
}

// ExpiresWithin reports whether the access token expires in less than d.
// A zero ExpiresAt never expires.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(now) < d
}

// Passkey is a registered credential as listed by the server.
type Passkey struct {
	ID         string     `json:"id"`
	DeviceName string     `json:"device_name"`
	Transports []string   `json:"transports"`
	Counter    uint32     `json:"counter"`
	IsActive   bool       `json:"is_active"`
	FlaggedAt  *time.Time `json:"flagged_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Profile is the response of /auth/me.
type Profile struct {
	User         User     `json:"user"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"permissions"`
	PasskeyCount int      `json:"passkey_count"`
}

// AuditEvent is one entry of the caller's security history.
type AuditEvent struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
