// Package config loads settings for the hotelauth CLI client: built-in
// defaults, an optional JSON file (-c/-config), HOTELAUTH_CLIENT_*
// environment variables and command-line flags, applied in that order.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds runtime settings for the CLI client.
//
// ServerURL is the REST base URL, optionally with a path prefix the API is
// mounted under. Origin is what the software authenticator writes into
// clientDataJSON and must be one of the server's allowed origins; when empty
// it defaults to ServerURL without its path. KeyPassphrase, when set, seals
// the device's passkey private keys at rest; it is read from the
// environment only.
type Config struct {
	ServerURL           string        `env:"HOTELAUTH_CLIENT_SERVER_URL"`
	Origin              string        `env:"HOTELAUTH_CLIENT_ORIGIN"`
	DatabasePath        string        `env:"HOTELAUTH_CLIENT_DB"`
	RequestTimeout      time.Duration `env:"HOTELAUTH_CLIENT_REQUEST_TIMEOUT"`
	OnlineCheckInterval time.Duration `env:"HOTELAUTH_CLIENT_ONLINE_CHECK_INTERVAL"`
	LogLevel            string        `env:"HOTELAUTH_CLIENT_LOG_LEVEL"`
	KeyPassphrase       string        `env:"HOTELAUTH_CLIENT_KEY_PASSPHRASE"`
}

// LoadDefaults populates c with settings that match a server started with
// its own defaults on this machine.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.Origin = ""
	c.DatabasePath = "hotelauth.db"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.LogLevel = "warn"
}

// LoadConfig builds a Config from defaults, the JSON file, the environment
// and finally the flags found in args.
func LoadConfig(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg)
	parseFlags(cfg, args)
	return cfg
}

// LoadFromOS is LoadConfig over the process arguments.
func LoadFromOS() *Config {
	return LoadConfig(os.Args[1:])
}

// WebAuthnOrigin returns Origin, or the scheme and host of ServerURL when
// Origin is empty.
func (c *Config) WebAuthnOrigin() (string, error) {
	if c.Origin != "" {
		return c.Origin, nil
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("server url %q is not absolute", c.ServerURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
