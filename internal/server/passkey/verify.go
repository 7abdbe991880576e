package passkey

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Decoded length bounds for assertion fields.
const (
	MinAuthenticatorData = 37
	MaxAuthenticatorData = 4096
	MinCredentialID      = 1
	MaxCredentialID      = 1023
	MinSignature         = 8
	MaxSignature         = 512
	MaxClientDataJSON    = 4096
)

// Registration is the verified content of an attestation.
type Registration struct {
	CredentialID []byte
	PublicKey    []byte
	AAGUID       []byte
	Counter      uint32
	Transports   []string
}

// Assertion is a decoded authentication response.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	Challenge         []byte
}

// AssertionInput is the textual (base64url) form of an Assertion.
type AssertionInput struct {
	CredentialID      string
	AuthenticatorData string
	ClientDataJSON    string
	Signature         string
	Challenge         string
}

// Decode validates the encoding and decoded lengths of every field.
func (in AssertionInput) Decode() (*Assertion, error) {
	var (
		a   Assertion
		err error
	)
	if a.Challenge, err = codec.DecodeExact(in.Challenge, common.ChallengeSize); err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	if a.CredentialID, err = codec.DecodeLen(in.CredentialID, MinCredentialID, MaxCredentialID); err != nil {
		return nil, fmt.Errorf("credential_id: %w", err)
	}
	if a.AuthenticatorData, err = codec.DecodeLen(in.AuthenticatorData, MinAuthenticatorData, MaxAuthenticatorData); err != nil {
		return nil, fmt.Errorf("authenticator_data: %w", err)
	}
	if a.ClientDataJSON, err = codec.DecodeLen(in.ClientDataJSON, 1, MaxClientDataJSON); err != nil {
		return nil, fmt.Errorf("client_data_json: %w", err)
	}
	if a.Signature, err = codec.DecodeLen(in.Signature, MinSignature, MaxSignature); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return &a, nil
}

// VerifyRegistration parses an attestation response and checks it against
// the issued challenge: client data type, challenge and origin, then the RP
// id hash, user presence, attested credential data and the COSE key.
// Attestation statements are not evaluated (conveyance "none").
func (c Config) VerifyRegistration(challenge, credentialJSON []byte) (*Registration, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBytes(credentialJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: credential: %v", common.ErrValidation, err)
	}

	if err := c.verifyClientData(&parsed.Response.CollectedClientData, protocol.CreateCeremony, challenge); err != nil {
		return nil, err
	}

	authData := parsed.Response.AttestationObject.AuthData
	if err := authData.Verify(c.RPIDHash(), nil, false, true); err != nil {
		return nil, fmt.Errorf("%w: authenticator data: %v", common.ErrSignatureInvalid, err)
	}
	if !authData.Flags.HasAttestedCredentialData() || len(authData.AttData.CredentialID) == 0 {
		return nil, fmt.Errorf("%w: no attested credential", common.ErrValidation)
	}
	if !bytes.Equal(parsed.RawID, authData.AttData.CredentialID) {
		return nil, fmt.Errorf("%w: rawId does not match attested credential", common.ErrValidation)
	}
	if _, err := webauthncose.ParsePublicKey(authData.AttData.CredentialPublicKey); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", common.ErrValidation, err)
	}

	transports := make([]string, 0, len(parsed.Response.Transports))
	for _, t := range parsed.Response.Transports {
		transports = append(transports, string(t))
	}

	return &Registration{
		CredentialID: authData.AttData.CredentialID,
		PublicKey:    authData.AttData.CredentialPublicKey,
		AAGUID:       authData.AttData.AAGUID,
		Counter:      authData.Counter,
		Transports:   transports,
	}, nil
}

// VerifyAssertion checks the client data, the authenticator data and the
// signature over authData || SHA-256(clientDataJSON) with publicKey (COSE).
// It returns the counter reported by the authenticator; the caller decides
// whether it is acceptable with CheckCounter.
func (c Config) VerifyAssertion(a *Assertion, publicKey []byte) (uint32, error) {
	var clientData protocol.CollectedClientData
	if err := json.Unmarshal(a.ClientDataJSON, &clientData); err != nil {
		return 0, fmt.Errorf("%w: client data: %v", common.ErrValidation, err)
	}
	if err := c.verifyClientData(&clientData, protocol.AssertCeremony, a.Challenge); err != nil {
		return 0, err
	}

	var authData protocol.AuthenticatorData
	if err := authData.Unmarshal(a.AuthenticatorData); err != nil {
		return 0, fmt.Errorf("%w: authenticator data: %v", common.ErrValidation, err)
	}
	if err := authData.Verify(c.RPIDHash(), nil, false, true); err != nil {
		return 0, fmt.Errorf("%w: authenticator data: %v", common.ErrSignatureInvalid, err)
	}

	key, err := webauthncose.ParsePublicKey(publicKey)
	if err != nil {
		return 0, fmt.Errorf("%w: stored public key: %v", common.ErrorInternal, err)
	}

	clientDataHash := sha256.Sum256(a.ClientDataJSON)
	signed := make([]byte, 0, len(a.AuthenticatorData)+len(clientDataHash))
	signed = append(signed, a.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)

	ok, err := webauthncose.VerifySignature(key, signed, a.Signature)
	if err != nil || !ok {
		return 0, common.ErrSignatureInvalid
	}

	return authData.Counter, nil
}

// CheckCounter enforces strict counter increase. With allowZero set, an
// authenticator that never counts (stored and reported both zero) passes.
func CheckCounter(stored, reported uint32, allowZero bool) error {
	if allowZero && stored == 0 && reported == 0 {
		return nil
	}
	if reported <= stored {
		return fmt.Errorf("%w: counter %d not above stored %d", common.ErrReplaySuspected, reported, stored)
	}
	return nil
}

func (c Config) verifyClientData(cd *protocol.CollectedClientData, ceremony protocol.CeremonyType, challenge []byte) error {
	err := cd.Verify(codec.Encode(challenge), ceremony, c.RPOrigins, nil, protocol.TopOriginIgnoreVerificationMode)
	if err != nil {
		return fmt.Errorf("%w: client data: %v", common.ErrChallengeInvalid, err)
	}
	return nil
}
