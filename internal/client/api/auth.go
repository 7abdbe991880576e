package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
)

type authResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
	Roles        []string    `json:"roles"`
	Permissions  []string    `json:"permissions"`
	IsFirstLogin bool        `json:"is_first_login"`
}

// RegisterInput creates an account. Without a password the account can
// only sign in with a passkey, which anyone may then enroll once.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password,omitempty"`
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: in, out: &out, public: true})
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login signs in with a password and stores the new session.
func (c *Client) Login(ctx context.Context, username, password, totpCode string) (*models.Session, error) {
	body := map[string]string{"username": username, "password": password}
	if totpCode != "" {
		body["totp_code"] = totpCode
	}
	var out authResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/login", body: body, out: &out, public: true}); err != nil {
		return nil, err
	}
	sess := sessionFromAuth(&out)
	if err := c.state.Set(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Refresh rotates the refresh token and stores the new pair. Only one
// refresh runs at a time; a caller that waited finds the rotated session.
func (c *Client) Refresh(ctx context.Context) error {
	before, _ := c.state.Session()

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	sess, ok := c.state.Session()
	if !ok || sess.RefreshToken == "" {
		return ErrNoSession
	}
	if sess.RefreshToken != before.RefreshToken {
		return nil
	}

	var out struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refresh_token": sess.RefreshToken},
		out:    &out,
		public: true,
	})
	if err != nil {
		return err
	}

	sess.AccessToken = out.AccessToken
	sess.RefreshToken = out.RefreshToken
	sess.ExpiresAt = out.ExpiresAt
	return c.state.Set(ctx, &sess)
}

// Logout revokes the refresh token on the server and ends the local
// session, even when the server call fails. The refresh token in the body is
// the credential, so an expired access token is not refreshed first.
func (c *Client) Logout(ctx context.Context) error {
	sess, ok := c.state.Session()
	if !ok {
		return nil
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/logout",
		body:   map[string]string{"refresh_token": sess.RefreshToken},
		public: true,
	})
	c.state.Clear(ctx)
	return err
}

// LogoutAll revokes every session of the user, on every device.
func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	var out struct {
		SessionsRevoked int64 `json:"sessions_revoked"`
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/logout-all", out: &out}); err != nil {
		return 0, err
	}
	c.state.Clear(ctx)
	return out.SessionsRevoked, nil
}

func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.Get(ctx, "/auth/me", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ChangePassword sets a new password. The server revokes every session, so
// the local one is cleared as well.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/change-password",
		body:   map[string]string{"current_password": current, "new_password": next},
	})
	if err != nil {
		return err
	}
	c.state.Clear(ctx)
	return nil
}
