package platform

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/codec"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

const credentialIDSize = 32

// COSE_Key labels (RFC 9052) for an EC2 P-256 key.
const (
	coseKty     = 1
	coseAlg     = 3
	coseCrv     = -1
	coseX       = -2
	coseY       = -3
	coseKtyEC2  = 2
	coseCrvP256 = 1
)

var ctap2, _ = cbor.CTAP2EncOptions().EncMode()

// Software is an Authenticator that keeps ECDSA P-256 keys in a KeyStore.
// It stands in for the OS credential API on headless clients and in tests.
type Software struct {
	keys        KeyStore
	presence    Presence
	counterStep uint32
	now         func() time.Time
}

type SoftwareOption func(*Software)

// WithPresence sets the user-approval hook (default AlwaysPresent).
func WithPresence(p Presence) SoftwareOption {
	return func(s *Software) { s.presence = p }
}

// WithCounterStep sets how much the signature counter grows per assertion.
// Zero mimics synced passkeys, which always report 0.
func WithCounterStep(step uint32) SoftwareOption {
	return func(s *Software) { s.counterStep = step }
}

func NewSoftware(keys KeyStore, opts ...SoftwareOption) *Software {
	s := &Software{
		keys:        keys,
		presence:    AlwaysPresent,
		counterStep: 1,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Software) Create(ctx context.Context, req CreationRequest) (*Attestation, error) {
	if !supportsES256(req.Algorithms) {
		return nil, fmt.Errorf("%w: only ES256 keys can be created", ErrNotSupported)
	}

	for _, id := range req.Exclude {
		k, err := s.keys.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if k != nil && k.RPID == req.RPID {
			return nil, ErrInvalidState
		}
	}

	if err := s.confirm(ctx, fmt.Sprintf("Create a passkey for %s on %s", req.Username, req.RPID)); err != nil {
		return nil, err
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	credentialID := make([]byte, credentialIDSize)
	if _, err := rand.Read(credentialID); err != nil {
		return nil, err
	}

	coseKey, err := encodeCOSEKey(priv)
	if err != nil {
		return nil, err
	}

	authData := authenticatorData(req.RPID, protocol.FlagUserPresent|protocol.FlagUserVerified|protocol.FlagAttestedCredentialData, 0)
	authData = append(authData, make([]byte, 16)...) // AAGUID: all zero for software keys
	authData = binary.BigEndian.AppendUint16(authData, uint16(len(credentialID)))
	authData = append(authData, credentialID...)
	authData = append(authData, coseKey...)

	clientData, err := clientDataJSON(protocol.CreateCeremony, req.Challenge, req.Origin)
	if err != nil {
		return nil, err
	}

	attObj, err := ctap2.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": authData,
	})
	if err != nil {
		return nil, fmt.Errorf("encode attestation object: %w", err)
	}

	credJSON, err := json.Marshal(credentialCreation{
		ID:    codec.Encode(credentialID),
		RawID: codec.Encode(credentialID),
		Type:  string(protocol.PublicKeyCredentialType),
		Response: attestationResponse{
			ClientDataJSON:    codec.Encode(clientData),
			AttestationObject: codec.Encode(attObj),
			Transports:        []string{string(protocol.Internal)},
		},
	})
	if err != nil {
		return nil, err
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	err = s.keys.Save(ctx, &models.DeviceKey{
		CredentialID: credentialID,
		RPID:         req.RPID,
		UserHandle:   req.UserHandle,
		Username:     req.Username,
		PrivateKey:   der,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("store device key: %w", err)
	}

	return &Attestation{CredentialID: credentialID, CredentialJSON: credJSON}, nil
}

func (s *Software) Get(ctx context.Context, req AssertionRequest) (*Assertion, error) {
	key, err := s.pick(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.confirm(ctx, fmt.Sprintf("Sign in to %s as %s", req.RPID, key.Username)); err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKCS8PrivateKey(key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load device key: %w", err)
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: device key is not ECDSA", ErrNotSupported)
	}

	counter := key.Counter + s.counterStep
	authData := authenticatorData(req.RPID, protocol.FlagUserPresent|protocol.FlagUserVerified, counter)

	clientData, err := clientDataJSON(protocol.AssertCeremony, req.Challenge, req.Origin)
	if err != nil {
		return nil, err
	}

	clientDataHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(append([]byte{}, authData...), clientDataHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, err
	}

	if counter != key.Counter {
		if err := s.keys.UpdateCounter(ctx, key.CredentialID, counter); err != nil {
			return nil, fmt.Errorf("store counter: %w", err)
		}
	}

	return &Assertion{
		CredentialID:      key.CredentialID,
		AuthenticatorData: authData,
		ClientDataJSON:    clientData,
		Signature:         sig,
		UserHandle:        key.UserHandle,
	}, nil
}

// pick returns the newest usable key for the request.
func (s *Software) pick(ctx context.Context, req AssertionRequest) (*models.DeviceKey, error) {
	var candidates []*models.DeviceKey
	if len(req.Allow) == 0 {
		keys, err := s.keys.ListByRP(ctx, req.RPID)
		if err != nil {
			return nil, err
		}
		candidates = keys
	} else {
		for _, id := range req.Allow {
			k, err := s.keys.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if k != nil && k.RPID == req.RPID {
				candidates = append(candidates, k)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no credential for %s on this device", ErrNotAllowed, req.RPID)
	}

	best := candidates[0]
	for _, k := range candidates[1:] {
		if k.CreatedAt.After(best.CreatedAt) {
			best = k
		}
	}
	return best, nil
}

func (s *Software) confirm(ctx context.Context, prompt string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAllowed, err)
	}
	if err := s.presence(ctx, prompt); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAllowed, err)
	}
	return nil
}

func supportsES256(algs []int64) bool {
	if len(algs) == 0 {
		return true
	}
	for _, a := range algs {
		if a == int64(webauthncose.AlgES256) {
			return true
		}
	}
	return false
}

func encodeCOSEKey(priv *ecdsa.PrivateKey) ([]byte, error) {
	pub, err := priv.PublicKey.ECDH()
	if err != nil {
		return nil, err
	}
	raw := pub.Bytes() // 0x04 || X || Y
	return ctap2.Marshal(map[int]any{
		coseKty: coseKtyEC2,
		coseAlg: int(webauthncose.AlgES256),
		coseCrv: coseCrvP256,
		coseX:   raw[1:33],
		coseY:   raw[33:65],
	})
}

func authenticatorData(rpID string, flags protocol.AuthenticatorFlags, counter uint32) []byte {
	rpIDHash := sha256.Sum256([]byte(rpID))
	out := make([]byte, 0, 37)
	out = append(out, rpIDHash[:]...)
	out = append(out, byte(flags))
	return binary.BigEndian.AppendUint32(out, counter)
}

func clientDataJSON(ceremony protocol.CeremonyType, challenge []byte, origin string) ([]byte, error) {
	return json.Marshal(protocol.CollectedClientData{
		Type:      ceremony,
		Challenge: codec.Encode(challenge),
		Origin:    origin,
	})
}

type credentialCreation struct {
	ID       string              `json:"id"`
	RawID    string              `json:"rawId"`
	Type     string              `json:"type"`
	Response attestationResponse `json:"response"`
}

type attestationResponse struct {
	ClientDataJSON    string   `json:"clientDataJSON"`
	AttestationObject string   `json:"attestationObject"`
	Transports        []string `json:"transports,omitempty"`
}
