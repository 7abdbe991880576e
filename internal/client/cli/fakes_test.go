package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/client/ceremony"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	state *authstate.Store

	healthErr error

	regIn  api.RegisterInput
	regErr error

	logins   []string
	loginErr []error

	refreshErr error

	logoutCalled bool
	logoutErr    error

	revoked   int64
	revokeErr error

	profile *models.Profile

	pwCurrent, pwNext string
	pwErr             error

	passkeys   []models.Passkey
	renamed    [2]string
	deletedID  string
	mgmtErr    error
	audit      []models.AuditEvent
	auditLimit int

	tfStatus     models.TwoFactorStatus
	tfSetup      *models.TwoFactorSetup
	tfCodes      []string
	tfEnableErr  error
	tfDisableErr error
}

func (f *fakeAuth) Health(context.Context) error { return f.healthErr }

func (f *fakeAuth) Register(_ context.Context, in api.RegisterInput) (*models.User, error) {
	f.regIn = in
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{ID: "u1", Username: in.Username}, nil
}

func (f *fakeAuth) Login(ctx context.Context, username, password, code string) (*models.Session, error) {
	f.logins = append(f.logins, username+"/"+password+"/"+code)
	if len(f.loginErr) > 0 {
		err := f.loginErr[0]
		f.loginErr = f.loginErr[1:]
		if err != nil {
			return nil, err
		}
	}
	sess := &models.Session{AccessToken: "acc", RefreshToken: "ref", User: models.User{Username: username}}
	return sess, f.state.Set(ctx, sess)
}

func (f *fakeAuth) Refresh(context.Context) error { return f.refreshErr }

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.logoutCalled = true
	f.state.Clear(ctx)
	return f.logoutErr
}

func (f *fakeAuth) LogoutAll(ctx context.Context) (int64, error) {
	if f.revokeErr != nil {
		return 0, f.revokeErr
	}
	f.state.Clear(ctx)
	return f.revoked, nil
}

func (f *fakeAuth) Me(context.Context) (*models.Profile, error) { return f.profile, nil }

func (f *fakeAuth) ChangePassword(ctx context.Context, current, next string) error {
	f.pwCurrent, f.pwNext = current, next
	if f.pwErr != nil {
		return f.pwErr
	}
	f.state.Clear(ctx)
	return nil
}

func (f *fakeAuth) ListPasskeys(context.Context) ([]models.Passkey, error) {
	return f.passkeys, f.mgmtErr
}

func (f *fakeAuth) RenamePasskey(_ context.Context, id, name string) error {
	f.renamed = [2]string{id, name}
	return f.mgmtErr
}

func (f *fakeAuth) DeletePasskey(_ context.Context, id string) error {
	f.deletedID = id
	return f.mgmtErr
}

func (f *fakeAuth) AuditHistory(_ context.Context, limit int) ([]models.AuditEvent, error) {
	f.auditLimit = limit
	return f.audit, f.mgmtErr
}

func (f *fakeAuth) TwoFactorStatus(context.Context) (*models.TwoFactorStatus, error) {
	st := f.tfStatus
	return &st, f.mgmtErr
}

func (f *fakeAuth) SetupTwoFactor(context.Context) (*models.TwoFactorSetup, error) {
	if f.mgmtErr != nil {
		return nil, f.mgmtErr
	}
	return f.tfSetup, nil
}

func (f *fakeAuth) EnableTwoFactor(_ context.Context, code string) error {
	f.tfCodes = append(f.tfCodes, code)
	return f.tfEnableErr
}

func (f *fakeAuth) DisableTwoFactor(ctx context.Context, code string) (int64, error) {
	f.tfCodes = append(f.tfCodes, code)
	if f.tfDisableErr != nil {
		return 0, f.tfDisableErr
	}
	f.state.Clear(ctx)
	return f.revoked, nil
}

type fakeCeremonies struct {
	regUser, regDevice string
	loginUser          string
	result             ceremony.Result
}

func (f *fakeCeremonies) RegisterPasskey(_ context.Context, username, device string) ceremony.Result {
	f.regUser, f.regDevice = username, device
	return f.result
}

func (f *fakeCeremonies) LoginWithPasskey(_ context.Context, username string) ceremony.Result {
	f.loginUser = username
	return f.result
}

type testApp struct {
	*App
	auth *fakeAuth
	cer  *fakeCeremonies
	out  *bytes.Buffer
}

func newTestApp(t *testing.T, lines ...string) *testApp {
	t.Helper()
	state := authstate.New()
	fa := &fakeAuth{state: state}
	fc := &fakeCeremonies{}
	out := &bytes.Buffer{}

	app := NewApp(fa, fc, state, logging.Nop())
	app.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	app.out = out
	return &testApp{App: app, auth: fa, cer: fc, out: out}
}

func (ta *testApp) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, ta.state.Set(context.Background(), &models.Session{
		AccessToken: "acc", RefreshToken: "ref", User: models.User{Username: "alice"},
	}))
}

// stubPasswords feeds the given passwords to getPassword in order.
func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	getPassword = func(string, io.Writer) ([]byte, error) {
		if len(pws) == 0 {
			return nil, io.EOF
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
	t.Cleanup(func() { getPassword = orig })
}
