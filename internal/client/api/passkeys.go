package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
)

// Binary fields of the ceremony messages are base64url strings; the
// ceremony package decodes them with the codec package.

type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type CredentialParameter struct {
	Type      string `json:"type"`
	Algorithm int64  `json:"alg"`
}

type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

// CreationOptions is the body of /auth/passkey/register/start.
type CreationOptions struct {
	Challenge          string                 `json:"challenge"`
	RP                 RelyingParty           `json:"rp"`
	User               UserEntity             `json:"user"`
	Parameters         []CredentialParameter  `json:"pubKeyCredParams"`
	Timeout            int                    `json:"timeout"`
	ExcludeCredentials []CredentialDescriptor `json:"excludeCredentials"`
}

// RequestOptions is the body of /auth/passkey/login/start.
type RequestOptions struct {
	Challenge        string                 `json:"challenge"`
	Timeout          int                    `json:"timeout"`
	RPID             string                 `json:"rpId"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	UserVerification string                 `json:"userVerification"`
}

type FinishRegistrationInput struct {
	Username   string          `json:"username,omitempty"`
	Credential json.RawMessage `json:"credential"`
	Challenge  string          `json:"challenge"`
	DeviceName string          `json:"device_name,omitempty"`
}

type FinishAuthenticationInput struct {
	Username          string `json:"username,omitempty"`
	CredentialID      string `json:"credential_id"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
	Signature         string `json:"signature"`
	Challenge         string `json:"challenge"`
}

// StartRegistration asks for creation options. An empty username enrolls
// a passkey for the signed-in user.
func (c *Client) StartRegistration(ctx context.Context, username string) (*CreationOptions, error) {
	var out CreationOptions
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/passkey/register/start",
		body:   map[string]string{"username": username},
		out:    &out,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinishRegistration(ctx context.Context, in FinishRegistrationInput) (*models.Passkey, error) {
	var out struct {
		Passkey models.Passkey `json:"passkey"`
	}
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/passkey/register/finish", body: in, out: &out})
	if err != nil {
		return nil, err
	}
	return &out.Passkey, nil
}

// StartAuthentication asks for request options. An empty username asks
// for a discoverable credential.
func (c *Client) StartAuthentication(ctx context.Context, username string) (*RequestOptions, error) {
	var out RequestOptions
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/passkey/login/start",
		body:   map[string]string{"username": username},
		out:    &out,
		retry:  true,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FinishAuthentication returns the new session without storing it.
func (c *Client) FinishAuthentication(ctx context.Context, in FinishAuthenticationInput) (*models.Session, error) {
	var out authResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/passkey/login/finish", body: in, out: &out, public: true})
	if err != nil {
		return nil, err
	}
	return sessionFromAuth(&out), nil
}

func (c *Client) ListPasskeys(ctx context.Context) ([]models.Passkey, error) {
	var out struct {
		Passkeys []models.Passkey `json:"passkeys"`
	}
	if err := c.Get(ctx, "/auth/passkeys", &out); err != nil {
		return nil, err
	}
	return out.Passkeys, nil
}

func (c *Client) RenamePasskey(ctx context.Context, id, name string) error {
	return c.do(ctx, call{
		method: http.MethodPatch,
		path:   "/auth/passkeys/" + url.PathEscape(id),
		body:   map[string]string{"device_name": name},
	})
}

func (c *Client) DeletePasskey(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/auth/passkeys/" + url.PathEscape(id)})
}

// AuditHistory lists the caller's recent security events, newest first.
// A limit of zero uses the server default.
func (c *Client) AuditHistory(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out struct {
		Events []models.AuditEvent `json:"events"`
	}
	err := c.do(ctx, call{method: http.MethodGet, path: "/auth/audit", query: q, out: &out, retry: true})
	if err != nil {
		return nil, err
	}
	return out.Events, nil
}
