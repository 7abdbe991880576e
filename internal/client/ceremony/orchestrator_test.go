package ceremony

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/client/platform"
	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://pms.example"

type fakeAPI struct {
	startRegs  int
	startAuths int
	regFinish  *api.FinishRegistrationInput
	authFinish *api.FinishAuthenticationInput
	startErr   error
	finishErr  error
	block      chan struct{}
	started    chan struct{}
}

func challengeString(b byte) string {
	c := make([]byte, common.ChallengeSize)
	for i := range c {
		c[i] = b
	}
	return codec.Encode(c)
}

func (f *fakeAPI) StartRegistration(ctx context.Context, username string) (*api.CreationOptions, error) {
	f.startRegs++
	if f.started != nil {
		close(f.started)
		<-f.block
	}
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &api.CreationOptions{
		Challenge:  challengeString(byte(f.startRegs)),
		RP:         api.RelyingParty{ID: "pms.example", Name: "Hotel PMS"},
		User:       api.UserEntity{ID: codec.Encode([]byte("alice-handle")), Name: "alice", DisplayName: "Alice"},
		Parameters: []api.CredentialParameter{{Type: "public-key", Algorithm: -7}},
	}, nil
}

func (f *fakeAPI) FinishRegistration(ctx context.Context, in api.FinishRegistrationInput) (*models.Passkey, error) {
	f.regFinish = &in
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	return &models.Passkey{ID: "pk-1", DeviceName: in.DeviceName, IsActive: true}, nil
}

func (f *fakeAPI) StartAuthentication(ctx context.Context, username string) (*api.RequestOptions, error) {
	f.startAuths++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &api.RequestOptions{Challenge: challengeString(byte(100 + f.startAuths)), RPID: "pms.example"}, nil
}

func (f *fakeAPI) FinishAuthentication(ctx context.Context, in api.FinishAuthenticationInput) (*models.Session, error) {
	f.authFinish = &in
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	return &models.Session{AccessToken: "acc", RefreshToken: "ref", User: models.User{ID: "u1", Username: "alice"}}, nil
}

func TestRegisterPasskey_Success(t *testing.T) {
	f := &fakeAPI{}
	o := New(f, platform.NewSoftware(platform.NewMemoryKeyStore()), authstate.New(), origin)

	r := o.RegisterPasskey(context.Background(), "alice", "Front desk")
	require.Equal(t, Success, r.Kind, r.Reason)
	assert.True(t, r.OK())
	assert.Equal(t, "pk-1", r.Passkey.ID)

	require.NotNil(t, f.regFinish)
	assert.Equal(t, "alice", f.regFinish.Username)
	assert.Equal(t, "Front desk", f.regFinish.DeviceName)
	assert.Equal(t, challengeString(1), f.regFinish.Challenge)
	assert.NotEmpty(t, f.regFinish.Credential)
}

func TestLoginWithPasskey_StoresSession(t *testing.T) {
	f := &fakeAPI{}
	state := authstate.New()
	o := New(f, platform.NewSoftware(platform.NewMemoryKeyStore()), state, origin)

	require.True(t, o.RegisterPasskey(context.Background(), "alice", "").OK())

	r := o.LoginWithPasskey(context.Background(), "")
	require.Equal(t, Success, r.Kind, r.Reason)
	assert.Equal(t, "acc", r.Session.AccessToken)
	assert.Equal(t, "acc", state.AccessToken())

	require.NotNil(t, f.authFinish)
	assert.Equal(t, challengeString(101), f.authFinish.Challenge)
	assert.NotEmpty(t, f.authFinish.Signature)
}

func TestLoginWithPasskey_NoCredentialOnDeviceIsCancelled(t *testing.T) {
	f := &fakeAPI{}
	state := authstate.New()
	o := New(f, platform.NewSoftware(platform.NewMemoryKeyStore()), state, origin)

	r := o.LoginWithPasskey(context.Background(), "alice")
	assert.Equal(t, Cancelled, r.Kind)
	assert.ErrorIs(t, r.Err, common.ErrUserCancelled)
	assert.Nil(t, f.authFinish)
	assert.False(t, state.IsAuthenticated())
}

func TestCeremony_ErrorClassification(t *testing.T) {
	dismissed := platform.WithPresence(func(context.Context, string) error { return errors.New("dismissed") })

	tests := []struct {
		name       string
		api        *fakeAPI
		opts       []platform.SoftwareOption
		wantKind   Kind
		wantErr    error
		wantReason string
	}{
		{
			name:     "prompt dismissed",
			api:      &fakeAPI{},
			opts:     []platform.SoftwareOption{dismissed},
			wantKind: Cancelled,
			wantErr:  common.ErrUserCancelled,
		},
		{
			name:     "server reports duplicate",
			api:      &fakeAPI{finishErr: &api.Error{Status: 409, Kind: "duplicate_credential", Message: "credential is already registered"}},
			wantKind: AlreadyRegistered,
			wantErr:  common.ErrAlreadyRegistered,
		},
		{
			name:       "server rejects",
			api:        &fakeAPI{finishErr: &api.Error{Status: 400, Kind: "challenge_invalid", Message: "challenge expired"}},
			wantKind:   Failed,
			wantErr:    common.ErrChallengeInvalid,
			wantReason: "challenge expired",
		},
		{
			name:     "network",
			api:      &fakeAPI{startErr: common.ErrNetworkFailure},
			wantKind: Failed,
			wantErr:  common.ErrNetworkFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.api, platform.NewSoftware(platform.NewMemoryKeyStore(), tt.opts...), authstate.New(), origin)
			r := o.RegisterPasskey(context.Background(), "alice", "")
			assert.Equal(t, tt.wantKind, r.Kind)
			assert.ErrorIs(t, r.Err, tt.wantErr)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, r.Reason)
			}
		})
	}
}

func TestRegisterPasskey_UnsupportedAlgorithms(t *testing.T) {
	f := &unsupportedAPI{}
	o := New(f, platform.NewSoftware(platform.NewMemoryKeyStore()), authstate.New(), origin)

	r := o.RegisterPasskey(context.Background(), "alice", "")
	assert.Equal(t, Unsupported, r.Kind)
	assert.ErrorIs(t, r.Err, common.ErrUnsupported)
}

type unsupportedAPI struct{ fakeAPI }

func (u *unsupportedAPI) StartRegistration(ctx context.Context, username string) (*api.CreationOptions, error) {
	opts, err := u.fakeAPI.StartRegistration(ctx, username)
	if err != nil {
		return nil, err
	}
	opts.Parameters = []api.CredentialParameter{{Type: "public-key", Algorithm: -257}}
	return opts, nil
}

func TestRegisterPasskey_ExcludedCredentialIsAlreadyRegistered(t *testing.T) {
	keys := platform.NewMemoryKeyStore()
	sw := platform.NewSoftware(keys)
	f := &fakeAPI{}
	o := New(f, sw, authstate.New(), origin)
	require.True(t, o.RegisterPasskey(context.Background(), "alice", "").OK())

	stored, err := keys.ListByRP(context.Background(), "pms.example")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	ex := &excludingAPI{id: codec.Encode(stored[0].CredentialID)}
	r := New(ex, sw, authstate.New(), origin).RegisterPasskey(context.Background(), "alice", "")
	assert.Equal(t, AlreadyRegistered, r.Kind)
	assert.Nil(t, ex.regFinish)
}

type excludingAPI struct {
	fakeAPI
	id string
}

func (e *excludingAPI) StartRegistration(ctx context.Context, username string) (*api.CreationOptions, error) {
	opts, err := e.fakeAPI.StartRegistration(ctx, username)
	if err != nil {
		return nil, err
	}
	opts.ExcludeCredentials = []api.CredentialDescriptor{{Type: "public-key", ID: e.id}}
	return opts, nil
}

func TestCeremony_MalformedChallengeFails(t *testing.T) {
	f := &shortChallengeAPI{}
	r := New(f, platform.NewSoftware(platform.NewMemoryKeyStore()), authstate.New(), origin).RegisterPasskey(context.Background(), "alice", "")
	assert.Equal(t, Failed, r.Kind)
	assert.Contains(t, r.Reason, "challenge")
}

type shortChallengeAPI struct{ fakeAPI }

func (s *shortChallengeAPI) StartRegistration(ctx context.Context, username string) (*api.CreationOptions, error) {
	opts, _ := s.fakeAPI.StartRegistration(ctx, username)
	opts.Challenge = codec.Encode([]byte("short"))
	return opts, nil
}

func TestCeremony_OneAtATime(t *testing.T) {
	f := &fakeAPI{block: make(chan struct{}), started: make(chan struct{})}
	o := New(f, platform.NewSoftware(platform.NewMemoryKeyStore()), authstate.New(), origin)

	done := make(chan Result)
	go func() { done <- o.RegisterPasskey(context.Background(), "alice", "") }()
	<-f.started

	r := o.LoginWithPasskey(context.Background(), "alice")
	assert.Equal(t, Failed, r.Kind)
	assert.ErrorIs(t, r.Err, common.ErrCeremonyInProgress)

	close(f.block)
	assert.Equal(t, Success, (<-done).Kind)

	f.started = nil
	assert.Equal(t, Success, o.RegisterPasskey(context.Background(), "alice", "").Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "already_registered", AlreadyRegistered.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
