package platform

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRP     = "pms.example"
	testOrigin = "https://pms.example"
)

func challenge(b byte) []byte {
	c := make([]byte, 32)
	for i := range c {
		c[i] = b
	}
	return c
}

func createAlice(t *testing.T, s *Software) *Attestation {
	t.Helper()
	att, err := s.Create(context.Background(), CreationRequest{
		RPID:       testRP,
		Origin:     testOrigin,
		UserHandle: []byte("alice-handle"),
		Username:   "alice",
		Challenge:  challenge(1),
	})
	require.NoError(t, err)
	return att
}

func TestSoftware_CreateProducesParsableAttestation(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	att := createAlice(t, s)

	parsed, err := protocol.ParseCredentialCreationResponseBytes(att.CredentialJSON)
	require.NoError(t, err)

	assert.Equal(t, protocol.CreateCeremony, parsed.Response.CollectedClientData.Type)
	assert.Equal(t, testOrigin, parsed.Response.CollectedClientData.Origin)
	assert.Equal(t, "none", parsed.Response.AttestationObject.Format)

	authData := parsed.Response.AttestationObject.AuthData
	rpHash := sha256.Sum256([]byte(testRP))
	assert.Equal(t, rpHash[:], authData.RPIDHash)
	assert.True(t, authData.Flags.UserPresent())
	assert.Equal(t, uint32(0), authData.Counter)
	assert.Equal(t, att.CredentialID, authData.AttData.CredentialID)

	key, err := webauthncose.ParsePublicKey(authData.AttData.CredentialPublicKey)
	require.NoError(t, err)
	_, ok := key.(webauthncose.EC2PublicKeyData)
	assert.True(t, ok)
}

func TestSoftware_GetSignsWithStoredKey(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	att := createAlice(t, s)

	parsed, err := protocol.ParseCredentialCreationResponseBytes(att.CredentialJSON)
	require.NoError(t, err)
	pub, err := webauthncose.ParsePublicKey(parsed.Response.AttestationObject.AuthData.AttData.CredentialPublicKey)
	require.NoError(t, err)

	for want := uint32(1); want <= 2; want++ {
		as, err := s.Get(context.Background(), AssertionRequest{RPID: testRP, Origin: testOrigin, Challenge: challenge(2)})
		require.NoError(t, err)
		assert.Equal(t, att.CredentialID, as.CredentialID)
		assert.Equal(t, []byte("alice-handle"), as.UserHandle)

		var ad protocol.AuthenticatorData
		require.NoError(t, ad.Unmarshal(as.AuthenticatorData))
		assert.Equal(t, want, ad.Counter)

		h := sha256.Sum256(as.ClientDataJSON)
		ok, err := webauthncose.VerifySignature(pub, append(append([]byte{}, as.AuthenticatorData...), h[:]...), as.Signature)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestSoftware_CounterStepZero(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore(), WithCounterStep(0))
	createAlice(t, s)

	as, err := s.Get(context.Background(), AssertionRequest{RPID: testRP, Origin: testOrigin, Challenge: challenge(3)})
	require.NoError(t, err)

	var ad protocol.AuthenticatorData
	require.NoError(t, ad.Unmarshal(as.AuthenticatorData))
	assert.Equal(t, uint32(0), ad.Counter)
}

func TestSoftware_ExcludedCredentialIsInvalidState(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	att := createAlice(t, s)

	_, err := s.Create(context.Background(), CreationRequest{
		RPID:      testRP,
		Origin:    testOrigin,
		Username:  "alice",
		Challenge: challenge(4),
		Exclude:   [][]byte{att.CredentialID},
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSoftware_CancelledPrompt(t *testing.T) {
	cancelled := func(ctx context.Context, prompt string) error { return errors.New("user dismissed") }
	s := NewSoftware(NewMemoryKeyStore(), WithPresence(cancelled))

	_, err := s.Create(context.Background(), CreationRequest{RPID: testRP, Origin: testOrigin, Challenge: challenge(5)})
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestSoftware_ContextCancelled(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, CreationRequest{RPID: testRP, Origin: testOrigin, Challenge: challenge(6)})
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestSoftware_UnsupportedAlgorithms(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	_, err := s.Create(context.Background(), CreationRequest{
		RPID:       testRP,
		Origin:     testOrigin,
		Challenge:  challenge(7),
		Algorithms: []int64{int64(webauthncose.AlgRS256)},
	})
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestSoftware_GetWithoutCredential(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	_, err := s.Get(context.Background(), AssertionRequest{RPID: testRP, Origin: testOrigin, Challenge: challenge(8)})
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestSoftware_GetHonoursAllowList(t *testing.T) {
	s := NewSoftware(NewMemoryKeyStore())
	createAlice(t, s)

	_, err := s.Get(context.Background(), AssertionRequest{
		RPID:      testRP,
		Origin:    testOrigin,
		Challenge: challenge(9),
		Allow:     [][]byte{[]byte("someone-else")},
	})
	require.ErrorIs(t, err, ErrNotAllowed)
}
