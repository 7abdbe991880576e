// Package ceremony drives passkey registration and login: a start call to
// the server, the platform authenticator prompt, and a finish call.
//
// Each attempt fetches a fresh challenge, so a cancelled prompt never
// leaves a challenge to be reused. Only one ceremony runs at a time per
// Orchestrator.
package ceremony

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/client/platform"
	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
)

// API is the part of the REST client a ceremony needs.
type API interface {
	StartRegistration(ctx context.Context, username string) (*api.CreationOptions, error)
	FinishRegistration(ctx context.Context, in api.FinishRegistrationInput) (*models.Passkey, error)
	StartAuthentication(ctx context.Context, username string) (*api.RequestOptions, error)
	FinishAuthentication(ctx context.Context, in api.FinishAuthenticationInput) (*models.Session, error)
}

type Orchestrator struct {
	api    API
	auth   platform.Authenticator
	state  *authstate.Store
	origin string
	log    logging.Logger

	mu   sync.Mutex
	busy bool
}

type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New returns an orchestrator. origin is the web origin the authenticator
// reports in clientDataJSON.
func New(a API, auth platform.Authenticator, state *authstate.Store, origin string, opts ...Option) *Orchestrator {
	o := &Orchestrator{api: a, auth: auth, state: state, origin: origin, log: logging.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return false
	}
	o.busy = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// RegisterPasskey enrolls a new passkey for username. An empty username
// enrolls one for the signed-in user.
func (o *Orchestrator) RegisterPasskey(ctx context.Context, username, deviceName string) Result {
	if !o.acquire() {
		return failed(common.ErrCeremonyInProgress)
	}
	defer o.release()

	opts, err := o.api.StartRegistration(ctx, username)
	if err != nil {
		return o.fromError(ctx, "registration start", err)
	}

	req, err := creationRequest(opts, o.origin)
	if err != nil {
		return o.fromError(ctx, "registration options", err)
	}

	att, err := o.auth.Create(ctx, req)
	if err != nil {
		return o.fromError(ctx, "authenticator create", err)
	}

	pk, err := o.api.FinishRegistration(ctx, api.FinishRegistrationInput{
		Username:   username,
		Credential: att.CredentialJSON,
		Challenge:  opts.Challenge,
		DeviceName: deviceName,
	})
	if err != nil {
		return o.fromError(ctx, "registration finish", err)
	}

	o.log.Info(ctx, "passkey registered", "passkey_id", pk.ID)
	return Result{Kind: Success, Passkey: pk}
}

// LoginWithPasskey signs in with a passkey on this device and stores the
// session. An empty username lets the authenticator pick a discoverable
// credential.
func (o *Orchestrator) LoginWithPasskey(ctx context.Context, username string) Result {
	if !o.acquire() {
		return failed(common.ErrCeremonyInProgress)
	}
	defer o.release()

	opts, err := o.api.StartAuthentication(ctx, username)
	if err != nil {
		return o.fromError(ctx, "login start", err)
	}

	req, err := assertionRequest(opts, o.origin)
	if err != nil {
		return o.fromError(ctx, "login options", err)
	}

	a, err := o.auth.Get(ctx, req)
	if err != nil {
		return o.fromError(ctx, "authenticator get", err)
	}

	sess, err := o.api.FinishAuthentication(ctx, api.FinishAuthenticationInput{
		Username:          username,
		CredentialID:      codec.Encode(a.CredentialID),
		AuthenticatorData: codec.Encode(a.AuthenticatorData),
		ClientDataJSON:    codec.Encode(a.ClientDataJSON),
		Signature:         codec.Encode(a.Signature),
		Challenge:         opts.Challenge,
	})
	if err != nil {
		return o.fromError(ctx, "login finish", err)
	}

	if err := o.state.Set(ctx, sess); err != nil {
		return o.fromError(ctx, "store session", err)
	}
	o.log.Info(ctx, "signed in with passkey", "user_id", sess.User.ID)
	return Result{Kind: Success, Session: sess}
}

func (o *Orchestrator) fromError(ctx context.Context, step string, err error) Result {
	r := classify(err)
	if r.Kind == Failed {
		o.log.Warn(ctx, "passkey ceremony failed", "step", step, "error", err)
	} else {
		o.log.Info(ctx, "passkey ceremony ended", "step", step, "result", r.Kind.String())
	}
	return r
}

func classify(err error) Result {
	switch {
	case errors.Is(err, platform.ErrNotAllowed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{Kind: Cancelled, Reason: common.ErrUserCancelled.Error(), Err: fmt.Errorf("%w: %v", common.ErrUserCancelled, err)}
	case errors.Is(err, platform.ErrNotSupported):
		return Result{Kind: Unsupported, Reason: common.ErrUnsupported.Error(), Err: fmt.Errorf("%w: %v", common.ErrUnsupported, err)}
	case errors.Is(err, platform.ErrInvalidState), errors.Is(err, common.ErrDuplicateCredential):
		return Result{Kind: AlreadyRegistered, Reason: common.ErrAlreadyRegistered.Error(), Err: fmt.Errorf("%w: %v", common.ErrAlreadyRegistered, err)}
	}
	return failed(err)
}

// failed prefers the server's message as the reason.
func failed(err error) Result {
	reason := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		reason = apiErr.Message
	}
	return Result{Kind: Failed, Reason: reason, Err: err}
}
