package models

// TwoFactorSetup is the pending TOTP secret returned by /auth/2fa/setup.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

type TwoFactorStatus struct {
	Enabled bool `json:"enabled"`
	Pending bool `json:"pending"`
}
