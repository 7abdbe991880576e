package httpapi

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/services"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type passkeyStartRequest struct {
	Username string `json:"username"`
}

type passkeyRegisterFinishRequest struct {
	Username   string          `json:"username"`
	Credential json.RawMessage `json:"credential"`
	Challenge  string          `json:"challenge"`
	DeviceName string          `json:"device_name"`
}

type passkeyLoginFinishRequest struct {
	Username          string `json:"username"`
	CredentialID      string `json:"credential_id"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
	Signature         string `json:"signature"`
	Challenge         string `json:"challenge"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type twoFactorCodeRequest struct {
	Code string `json:"code"`
}

type twoFactorSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

type twoFactorStatusResponse struct {
	Enabled bool `json:"enabled"`
	Pending bool `json:"pending"`
}

type renamePasskeyRequest struct {
	DeviceName string `json:"device_name"`
}

type userResponse struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name"`
	IsActive         bool       `json:"is_active"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		FullName:         u.FullName,
		IsActive:         u.IsActive,
		TwoFactorEnabled: u.TwoFactorEnabled,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newTokenResponse(p *models.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresAt: p.ExpiresAt}
}

type authResponse struct {
	tokenResponse
	User         userResponse `json:"user"`
	Roles        []string     `json:"roles"`
	Permissions  []string     `json:"permissions"`
	IsFirstLogin bool         `json:"is_first_login"`
}

func newAuthResponse(r *services.AuthResult) authResponse {
	return authResponse{
		tokenResponse: newTokenResponse(r.Tokens),
		User:          newUserResponse(r.User),
		Roles:         nonNil(r.Roles),
		Permissions:   nonNil(r.Permissions),
		IsFirstLogin:  r.IsFirstLogin,
	}
}

type profileResponse struct {
	User         userResponse `json:"user"`
	Roles        []string     `json:"roles"`
	Permissions  []string     `json:"permissions"`
	PasskeyCount int          `json:"passkey_count"`
}

type passkeyResponse struct {
	ID         string     `json:"id"`
	DeviceName string     `json:"device_name"`
	Transports []string   `json:"transports"`
	Counter    uint32     `json:"counter"`
	IsActive   bool       `json:"is_active"`
	FlaggedAt  *time.Time `json:"flagged_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func newPasskeyResponse(p *models.Passkey) passkeyResponse {
	return passkeyResponse{
		ID:         p.ID,
		DeviceName: p.DeviceName,
		Transports: nonNil(p.Transports),
		Counter:    p.Counter,
		IsActive:   p.IsActive,
		FlaggedAt:  p.FlaggedAt,
		CreatedAt:  p.CreatedAt,
		LastUsedAt: p.LastUsedAt,
	}
}

type auditEventResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
