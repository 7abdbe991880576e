package models

import "time"

type AuditAction string

const (
	AuditLoginSuccess           AuditAction = "login_success"
	AuditLoginFailed            AuditAction = "login_failed"
	AuditAccountLocked          AuditAction = "account_locked"
	AuditPasskeyRegistered      AuditAction = "passkey_registered"
	AuditPasskeyLogin           AuditAction = "passkey_login"
	AuditPasskeyReplaySuspected AuditAction = "passkey_replay_suspected"
	AuditPasskeyDeleted         AuditAction = "passkey_deleted"
	AuditPasskeyRenamed         AuditAction = "passkey_renamed"
	AuditRefreshTokenReused     AuditAction = "refresh_token_reused"
	AuditLogout                 AuditAction = "logout"
	AuditLogoutAll              AuditAction = "logout_all"
	AuditPasswordChanged        AuditAction = "password_changed"
	AuditTwoFactorSetup         AuditAction = "two_factor_setup"
	AuditTwoFactorEnabled       AuditAction = "two_factor_enabled"
	AuditTwoFactorDisabled      AuditAction = "two_factor_disabled"
)

type AuditEntry struct {
	ID        string
	UserID    *string
	Action    AuditAction
	Details   map[string]any
	IPAddress string
	CreatedAt time.Time
}
