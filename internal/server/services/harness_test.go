package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/hotelauth/internal/client/platform"
	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/server/config"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/passkey"
	"github.com/dmitrijs2005/hotelauth/internal/server/repositories/memory"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/require"
)

const (
	testRPID   = "pms.example"
	testOrigin = "https://pms.example"
)

type harness struct {
	store *memory.Store
	mock  sqlmock.Sqlmock
	clock *testClock
	rp    passkey.Config

	audit      *AuditService
	challenges *ChallengeService
	ceremonies *CeremonyService
	sessions   *SessionService
	users      *UserService
	passkeys   *PasskeyService
	sweeper    *Sweeper
}

// newHarness builds the services over sqlmock, so every transaction must
// be declared with expectTx. The memory store applies writes as they
// happen: a rolled back transaction is only visible as a rollback call on
// the mock, never as undone state.
func newHarness(t *testing.T, tweak ...func(*passkey.Config)) *harness {
	t.Helper()
	db, mock := newSQLMockDB(t)
	h := buildHarness(t, db, tweak...)
	h.mock = mock
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("sql expectations: %v", err)
		}
	})
	return h
}

// newConcurrentHarness runs transactions on a real in-memory database so
// goroutines may begin and end them in any order. expectTx is a no-op.
func newConcurrentHarness(t *testing.T) *harness {
	t.Helper()
	db, err := memory.OpenTxDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return buildHarness(t, db)
}

func buildHarness(t *testing.T, db *sql.DB, tweak ...func(*passkey.Config)) *harness {
	t.Helper()
	store := memory.NewStore()
	m := memory.NewManager(store)
	clock := &testClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts := []Option{WithClock(clock.now)}

	rp := passkey.Config{
		RPID:         testRPID,
		RPName:       "Hotel PMS",
		RPOrigins:    []string{testOrigin},
		ChallengeTTL: 5 * time.Minute,
	}
	for _, f := range tweak {
		f(&rp)
	}
	cfg := &config.Config{
		SecretKey:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		MaxFailedLogins: 3,
	}

	h := &harness{store: store, clock: clock, rp: rp}
	h.audit = NewAuditService(db, m, opts...)
	h.challenges = NewChallengeService(db, m, rp, opts...)
	h.ceremonies = NewCeremonyService(db, m, rp, h.audit, opts...)
	h.sessions = NewSessionService(db, m, cfg, h.audit, opts...)
	h.users = NewUserService(db, m, cfg, h.sessions, h.audit, opts...)
	h.passkeys = NewPasskeyService(db, m, h.audit, opts...)
	h.sweeper = NewSweeper(db, m, opts...)
	return h
}

// expectTx declares one transaction that ends in commit or rollback.
func (h *harness) expectTx(commit bool) {
	if h.mock == nil {
		return
	}
	h.mock.ExpectBegin()
	if commit {
		h.mock.ExpectCommit()
	} else {
		h.mock.ExpectRollback()
	}
}

func (h *harness) addUser(username string) *models.User {
	return h.store.AddUser(&models.User{
		Username: username,
		Email:    username + "@pms.example",
		IsActive: true,
	})
}

// startAndCreate runs registration start and the platform create step.
func (h *harness) startAndCreate(t *testing.T, sw *platform.Software, username string) (challenge string, att *platform.Attestation) {
	t.Helper()
	opts, err := h.challenges.StartRegistration(context.Background(), username)
	require.NoError(t, err)

	exclude := make([][]byte, 0, len(opts.CredentialExcludeList))
	for _, d := range opts.CredentialExcludeList {
		exclude = append(exclude, d.CredentialID)
	}
	att, err = sw.Create(context.Background(), platform.CreationRequest{
		RPID:       opts.RelyingParty.ID,
		RPName:     opts.RelyingParty.Name,
		Origin:     testOrigin,
		UserHandle: opts.User.ID.(protocol.URLEncodedBase64),
		Username:   opts.User.Name,
		Challenge:  opts.Challenge,
		Exclude:    exclude,
	})
	require.NoError(t, err)
	return codec.Encode(opts.Challenge), att
}

func (h *harness) registerPasskey(t *testing.T, sw *platform.Software, username string) *models.Passkey {
	t.Helper()
	challenge, att := h.startAndCreate(t, sw, username)
	h.expectTx(true)
	p, err := h.ceremonies.FinishRegistration(context.Background(), username, challenge, att.CredentialJSON, "Front desk")
	require.NoError(t, err)
	return p
}

// assertion runs authentication start and the platform get step.
func (h *harness) assertion(t *testing.T, sw *platform.Software, username string) passkey.AssertionInput {
	t.Helper()
	opts, err := h.challenges.StartAuthentication(context.Background(), username)
	require.NoError(t, err)

	allow := make([][]byte, 0, len(opts.AllowedCredentials))
	for _, d := range opts.AllowedCredentials {
		allow = append(allow, d.CredentialID)
	}
	a, err := sw.Get(context.Background(), platform.AssertionRequest{
		RPID:      opts.RelyingPartyID,
		Origin:    testOrigin,
		Challenge: opts.Challenge,
		Allow:     allow,
	})
	require.NoError(t, err)

	return passkey.AssertionInput{
		CredentialID:      codec.Encode(a.CredentialID),
		AuthenticatorData: codec.Encode(a.AuthenticatorData),
		ClientDataJSON:    codec.Encode(a.ClientDataJSON),
		Signature:         codec.Encode(a.Signature),
		Challenge:         codec.Encode(opts.Challenge),
	}
}
