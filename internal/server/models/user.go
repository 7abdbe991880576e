// Package models defines the persisted entities of the auth server.
package models

import "time"

// User is an account of the hotel PMS. PasswordHash is nil for passkey-only
// accounts. Soft-deleted users (DeletedAt set) are invisible to auth flows.
type User struct {
	ID                  string
	Username            string
	Email               string
	FullName            string
	PasswordHash        *string
	IsActive            bool
	IsLocked            bool
	FailedLoginAttempts int
	TwoFactorEnabled    bool
	TwoFactorSecret     *string
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// CanAuthenticate reports whether the account may obtain a session.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.DeletedAt == nil && u.IsActive && !u.IsLocked
}

// IsFirstLogin is true until the first successful login is recorded.
func (u *User) IsFirstLogin() bool {
	return u.LastLoginAt == nil
}

// DisplayName falls back to the username when no full name is set.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Authorization is the RBAC view copied into access tokens.
type Authorization struct {
	Roles       []string
	Permissions []string
}
