package cli

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoFactorStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.TwoFactorStatus
		want   string
	}{
		{"off", models.TwoFactorStatus{}, "is off."},
		{"pending", models.TwoFactorStatus{Pending: true}, "not confirmed"},
		{"on", models.TwoFactorStatus{Enabled: true}, "is on."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.signIn(t)
			ta.auth.tfStatus = tt.status

			require.NoError(t, ta.TwoFactorStatus(context.Background()))
			assert.Contains(t, ta.out.String(), tt.want)
		})
	}
}

func TestTwoFactorSetup(t *testing.T) {
	ta := newTestApp(t, "123456")
	ta.signIn(t)
	ta.auth.tfSetup = &models.TwoFactorSetup{Secret: "JBSWY3DPEHPK3PXP", URL: "otpauth://totp/PMS:alice"}

	require.NoError(t, ta.TwoFactorSetup(context.Background()))
	out := ta.out.String()
	assert.Contains(t, out, "JBSWY3DPEHPK3PXP")
	assert.Contains(t, out, "otpauth://totp/PMS:alice")
	assert.Contains(t, out, "Two-factor authentication enabled.")
	assert.Equal(t, []string{"123456"}, ta.auth.tfCodes)
	assert.True(t, ta.isLoggedIn())
}

func TestTwoFactorSetup_WrongCode(t *testing.T) {
	ta := newTestApp(t, "000000")
	ta.signIn(t)
	ta.auth.tfSetup = &models.TwoFactorSetup{Secret: "S", URL: "otpauth://totp/x"}
	ta.auth.tfEnableErr = &api.Error{Status: 400, Kind: "validation_error", Message: "validation failed: invalid two-factor code"}

	assert.Error(t, ta.TwoFactorSetup(context.Background()))
	assert.Contains(t, ta.out.String(), "invalid two-factor code")
	assert.NotContains(t, ta.out.String(), "enabled.")
}

func TestTwoFactorDisable(t *testing.T) {
	ta := newTestApp(t, "654321")
	ta.signIn(t)
	ta.auth.revoked = 2

	require.NoError(t, ta.TwoFactorDisable(context.Background()))
	assert.Equal(t, []string{"654321"}, ta.auth.tfCodes)
	assert.False(t, ta.isLoggedIn())
	assert.True(t, ta.quietSignOut.Load())
	assert.Contains(t, ta.out.String(), "Please sign in again.")
}

func TestTwoFactorDisable_WrongCodeKeepsSession(t *testing.T) {
	ta := newTestApp(t, "000000")
	ta.signIn(t)
	ta.auth.tfDisableErr = &api.Error{Status: 400, Kind: "validation_error", Message: "validation failed: invalid two-factor code"}

	assert.Error(t, ta.TwoFactorDisable(context.Background()))
	assert.True(t, ta.isLoggedIn())
	assert.False(t, ta.quietSignOut.Load())
}
