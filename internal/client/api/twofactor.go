package api

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
)

func (c *Client) TwoFactorStatus(ctx context.Context) (*models.TwoFactorStatus, error) {
	var st models.TwoFactorStatus
	if err := c.Get(ctx, "/auth/2fa/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetupTwoFactor asks the server for a new TOTP secret. It stays pending
// until EnableTwoFactor confirms a code generated from it.
func (c *Client) SetupTwoFactor(ctx context.Context) (*models.TwoFactorSetup, error) {
	var out models.TwoFactorSetup
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/2fa/setup", out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EnableTwoFactor(ctx context.Context, code string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/2fa/enable",
		body:   map[string]string{"code": code},
	})
}

// DisableTwoFactor turns TOTP off. The server revokes every session, so the
// local one is cleared as well.
func (c *Client) DisableTwoFactor(ctx context.Context, code string) (int64, error) {
	var out struct {
		SessionsRevoked int64 `json:"sessions_revoked"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/2fa/disable",
		body:   map[string]string{"code": code},
		out:    &out,
	})
	if err != nil {
		return 0, err
	}
	c.state.Clear(ctx)
	return out.SessionsRevoked, nil
}
