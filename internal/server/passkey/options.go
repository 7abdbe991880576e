package passkey

import (
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Descriptor identifies an existing credential in exclude/allow lists.
type Descriptor struct {
	CredentialID []byte
	Transports   []string
}

// CreationOptions builds the options returned by registration start.
// userHandle is the opaque WebAuthn user id (the user's UUID bytes).
func (c Config) CreationOptions(challenge, userHandle []byte, username, displayName string, exclude []Descriptor) protocol.PublicKeyCredentialCreationOptions {
	return protocol.PublicKeyCredentialCreationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: c.RPName},
			ID:               c.RPID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: username},
			DisplayName:      displayName,
			ID:               protocol.URLEncodedBase64(userHandle),
		},
		Challenge: protocol.URLEncodedBase64(challenge),
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgEdDSA},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		},
		Timeout:               c.TimeoutMillis(),
		CredentialExcludeList: descriptors(exclude),
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.VerificationPreferred,
		},
		Attestation: protocol.PreferNoAttestation,
	}
}

// RequestOptions builds the options returned by authentication start. An
// empty allow list means discoverable login.
func (c Config) RequestOptions(challenge []byte, allow []Descriptor) protocol.PublicKeyCredentialRequestOptions {
	return protocol.PublicKeyCredentialRequestOptions{
		Challenge:          protocol.URLEncodedBase64(challenge),
		Timeout:            c.TimeoutMillis(),
		RelyingPartyID:     c.RPID,
		AllowedCredentials: descriptors(allow),
		UserVerification:   protocol.VerificationPreferred,
	}
}

func descriptors(in []Descriptor) []protocol.CredentialDescriptor {
	out := make([]protocol.CredentialDescriptor, 0, len(in))
	for _, d := range in {
		transports := make([]protocol.AuthenticatorTransport, 0, len(d.Transports))
		for _, t := range d.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		out = append(out, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: protocol.URLEncodedBase64(d.CredentialID),
			Transport:    transports,
		})
	}
	return out
}
