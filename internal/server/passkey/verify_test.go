package passkey

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/client/platform"
	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	RPID:         "pms.example",
	RPName:       "Hotel PMS",
	RPOrigins:    []string{"https://pms.example"},
	ChallengeTTL: time.Minute,
}

func fill(b byte) []byte {
	out := make([]byte, common.ChallengeSize)
	for i := range out {
		out[i] = b
	}
	return out
}

func register(t *testing.T, auth *platform.Software, challenge []byte) *platform.Attestation {
	t.Helper()
	att, err := auth.Create(context.Background(), platform.CreationRequest{
		RPID:       testConfig.RPID,
		Origin:     testConfig.RPOrigins[0],
		UserHandle: []byte("alice"),
		Username:   "alice",
		Challenge:  challenge,
	})
	require.NoError(t, err)
	return att
}

func assertion(t *testing.T, auth *platform.Software, challenge []byte) *Assertion {
	t.Helper()
	as, err := auth.Get(context.Background(), platform.AssertionRequest{
		RPID:      testConfig.RPID,
		Origin:    testConfig.RPOrigins[0],
		Challenge: challenge,
	})
	require.NoError(t, err)
	return &Assertion{
		CredentialID:      as.CredentialID,
		AuthenticatorData: as.AuthenticatorData,
		ClientDataJSON:    as.ClientDataJSON,
		Signature:         as.Signature,
		Challenge:         challenge,
	}
}

func TestVerifyRegistration_Success(t *testing.T) {
	auth := platform.NewSoftware(platform.NewMemoryKeyStore())
	ch := fill(1)
	att := register(t, auth, ch)

	reg, err := testConfig.VerifyRegistration(ch, att.CredentialJSON)
	require.NoError(t, err)
	assert.Equal(t, att.CredentialID, reg.CredentialID)
	assert.Equal(t, uint32(0), reg.Counter)
	assert.Equal(t, []string{"internal"}, reg.Transports)
	assert.NotEmpty(t, reg.PublicKey)
	assert.Len(t, reg.AAGUID, 16)
}

func TestVerifyRegistration_Failures(t *testing.T) {
	auth := platform.NewSoftware(platform.NewMemoryKeyStore())
	ch := fill(1)
	att := register(t, auth, ch)

	t.Run("other challenge", func(t *testing.T) {
		_, err := testConfig.VerifyRegistration(fill(2), att.CredentialJSON)
		require.ErrorIs(t, err, common.ErrChallengeInvalid)
	})

	t.Run("origin not allowed", func(t *testing.T) {
		cfg := testConfig
		cfg.RPOrigins = []string{"https://evil.example"}
		_, err := cfg.VerifyRegistration(ch, att.CredentialJSON)
		require.ErrorIs(t, err, common.ErrChallengeInvalid)
	})

	t.Run("rp id mismatch", func(t *testing.T) {
		cfg := testConfig
		cfg.RPID = "other.example"
		_, err := cfg.VerifyRegistration(ch, att.CredentialJSON)
		require.ErrorIs(t, err, common.ErrSignatureInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := testConfig.VerifyRegistration(ch, []byte(`{"id":"x"}`))
		require.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("assertion presented as attestation", func(t *testing.T) {
		var cred map[string]any
		require.NoError(t, json.Unmarshal(att.CredentialJSON, &cred))
		as := assertion(t, auth, ch)
		cred["response"].(map[string]any)["clientDataJSON"] = codec.Encode(as.ClientDataJSON)
		raw, err := json.Marshal(cred)
		require.NoError(t, err)

		_, err = testConfig.VerifyRegistration(ch, raw)
		require.ErrorIs(t, err, common.ErrChallengeInvalid)
	})
}

func TestVerifyAssertion_Success(t *testing.T) {
	auth := platform.NewSoftware(platform.NewMemoryKeyStore())
	reg, err := testConfig.VerifyRegistration(fill(1), register(t, auth, fill(1)).CredentialJSON)
	require.NoError(t, err)

	ch := fill(3)
	counter, err := testConfig.VerifyAssertion(assertion(t, auth, ch), reg.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), counter)
}

func TestVerifyAssertion_WrongKey(t *testing.T) {
	alice := platform.NewSoftware(platform.NewMemoryKeyStore())
	mallory := platform.NewSoftware(platform.NewMemoryKeyStore())

	aliceReg, err := testConfig.VerifyRegistration(fill(1), register(t, alice, fill(1)).CredentialJSON)
	require.NoError(t, err)
	register(t, mallory, fill(1))

	_, err = testConfig.VerifyAssertion(assertion(t, mallory, fill(4)), aliceReg.PublicKey)
	require.ErrorIs(t, err, common.ErrSignatureInvalid)
}

func TestVerifyAssertion_TamperedAuthenticatorData(t *testing.T) {
	auth := platform.NewSoftware(platform.NewMemoryKeyStore())
	reg, err := testConfig.VerifyRegistration(fill(1), register(t, auth, fill(1)).CredentialJSON)
	require.NoError(t, err)

	a := assertion(t, auth, fill(5))
	a.AuthenticatorData[36] ^= 0xff // counter byte

	_, err = testConfig.VerifyAssertion(a, reg.PublicKey)
	require.ErrorIs(t, err, common.ErrSignatureInvalid)
}

func TestVerifyAssertion_ChallengeMismatch(t *testing.T) {
	auth := platform.NewSoftware(platform.NewMemoryKeyStore())
	reg, err := testConfig.VerifyRegistration(fill(1), register(t, auth, fill(1)).CredentialJSON)
	require.NoError(t, err)

	a := assertion(t, auth, fill(6))
	a.Challenge = fill(7)

	_, err = testConfig.VerifyAssertion(a, reg.PublicKey)
	require.ErrorIs(t, err, common.ErrChallengeInvalid)
}

func TestCheckCounter(t *testing.T) {
	tests := []struct {
		name      string
		stored    uint32
		reported  uint32
		allowZero bool
		wantErr   bool
	}{
		{name: "increase", stored: 4, reported: 5},
		{name: "equal", stored: 5, reported: 5, wantErr: true},
		{name: "decrease", stored: 5, reported: 2, wantErr: true},
		{name: "zero zero strict", stored: 0, reported: 0, wantErr: true},
		{name: "zero zero allowed", stored: 0, reported: 0, allowZero: true},
		{name: "allowZero keeps decrease fatal", stored: 3, reported: 0, allowZero: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCounter(tt.stored, tt.reported, tt.allowZero)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrReplaySuspected)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAssertionInput_Decode(t *testing.T) {
	valid := AssertionInput{
		CredentialID:      codec.Encode([]byte{1, 2, 3}),
		AuthenticatorData: codec.Encode(make([]byte, 37)),
		ClientDataJSON:    codec.Encode([]byte(`{}`)),
		Signature:         codec.Encode(make([]byte, 70)),
		Challenge:         codec.Encode(fill(9)),
	}

	a, err := valid.Decode()
	require.NoError(t, err)
	assert.Equal(t, fill(9), a.Challenge)

	cases := map[string]func(in *AssertionInput){
		"short challenge":     func(in *AssertionInput) { in.Challenge = codec.Encode(make([]byte, 16)) },
		"padded challenge":    func(in *AssertionInput) { in.Challenge += "=" },
		"short authdata":      func(in *AssertionInput) { in.AuthenticatorData = codec.Encode(make([]byte, 36)) },
		"empty credential id": func(in *AssertionInput) { in.CredentialID = "" },
		"short signature":     func(in *AssertionInput) { in.Signature = codec.Encode(make([]byte, 4)) },
		"huge signature":      func(in *AssertionInput) { in.Signature = codec.Encode(make([]byte, 513)) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			_, err := in.Decode()
			require.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestOptions(t *testing.T) {
	ch := fill(1)
	creation := testConfig.CreationOptions(ch, []byte("uid"), "alice", "Alice A.", []Descriptor{{CredentialID: []byte{9}, Transports: []string{"internal"}}})

	raw, err := json.Marshal(creation)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, codec.Encode(ch), got["challenge"])
	assert.Equal(t, map[string]any{"name": "Hotel PMS", "id": "pms.example"}, got["rp"])
	assert.Equal(t, "alice", got["user"].(map[string]any)["name"])
	assert.Equal(t, codec.Encode([]byte("uid")), got["user"].(map[string]any)["id"])
	assert.Len(t, got["excludeCredentials"], 1)
	assert.EqualValues(t, 60000, got["timeout"])

	request := testConfig.RequestOptions(ch, nil)
	raw, err = json.Marshal(request)
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "pms.example", got["rpId"])
	assert.NotContains(t, got, "allowCredentials", "discoverable login sends no allow list")
}
