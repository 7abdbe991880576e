// Package platform abstracts the device credential API used by passkey
// ceremonies. Create and Get are the only calls that wait on the user; both
// report cancellation, duplicate credentials and missing capability through
// distinct errors.
package platform

import (
	"context"
	"errors"
)

// Errors mirror the DOMException names a browser credential API reports.
var (
	// ErrNotAllowed: the user dismissed the prompt or it timed out.
	ErrNotAllowed = errors.New("platform: operation not allowed or timed out")
	// ErrInvalidState: a credential from the exclude list already lives on
	// this authenticator.
	ErrInvalidState = errors.New("platform: credential already registered on this authenticator")
	// ErrNotSupported: no authenticator or no supported algorithm.
	ErrNotSupported = errors.New("platform: operation not supported")
)

// CreationRequest carries what navigator.credentials.create() would receive.
type CreationRequest struct {
	RPID        string
	RPName      string
	Origin      string
	UserHandle  []byte
	Username    string
	DisplayName string
	Challenge   []byte
	// Algorithms are COSE identifiers in preference order.
	Algorithms []int64
	Exclude    [][]byte
}

// Attestation is the result of Create. CredentialJSON is the serialized
// PublicKeyCredential (id, rawId, type, response) ready to send to the
// server as is.
type Attestation struct {
	CredentialID   []byte
	CredentialJSON []byte
}

// AssertionRequest carries what navigator.credentials.get() would receive.
// An empty Allow list asks for a discoverable credential.
type AssertionRequest struct {
	RPID      string
	Origin    string
	Challenge []byte
	Allow     [][]byte
}

// Assertion is the result of Get.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}

// Authenticator is the device credential API.
type Authenticator interface {
	Create(ctx context.Context, req CreationRequest) (*Attestation, error)
	Get(ctx context.Context, req AssertionRequest) (*Assertion, error)
}

// Presence asks the user to approve an operation (biometric, PIN, touch).
// Returning an error cancels the operation.
type Presence func(ctx context.Context, prompt string) error

// AlwaysPresent approves every prompt.
func AlwaysPresent(ctx context.Context, prompt string) error {
	return ctx.Err()
}
