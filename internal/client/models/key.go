package models

import "time"

// DeviceKey is a credential created by the software authenticator. The
// private key never leaves the device; only the public half is registered
// with the server.
type DeviceKey struct {
	CredentialID []byte
	RPID         string
	UserHandle   []byte
	Username     string
	// PrivateKey is the PKCS#8 DER encoding of an ECDSA P-256 key.
	PrivateKey []byte
	Counter    uint32
	CreatedAt  time.Time
}
