// Package passkey holds the relying-party settings and the WebAuthn checks
// performed when a registration or authentication ceremony is finished.
// Parsing is delegated to go-webauthn; storage and challenge bookkeeping
// live in the services package.
package passkey

import (
	"crypto/sha256"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/server/config"
)

// Config controls relying-party behaviour.
type Config struct {
	RPID             string
	RPName           string
	RPOrigins        []string
	ChallengeTTL     time.Duration
	AllowZeroCounter bool
}

func ConfigFrom(c *config.Config) Config {
	return Config{
		RPID:             c.RPID,
		RPName:           c.RPName,
		RPOrigins:        append([]string(nil), c.RPOrigins...),
		ChallengeTTL:     c.ChallengeTTL,
		AllowZeroCounter: c.AllowZeroCounter,
	}
}

// RPIDHash is the SHA-256 of the RP id, as embedded in authenticator data.
func (c Config) RPIDHash() []byte {
	sum := sha256.Sum256([]byte(c.RPID))
	return sum[:]
}

// TimeoutMillis is the ceremony timeout advertised to the client.
func (c Config) TimeoutMillis() int {
	return int(c.ChallengeTTL / time.Millisecond)
}
