package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assert.Equal(t, "http://localhost:8080", c.ServerURL)
	assert.Equal(t, "hotelauth.db", c.DatabasePath)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expected    *Config
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"-a", "https://pms.example/api", "-o", "https://pms.example", "-db", "/tmp/c.db", "-i", "10", "-timeout", "2s", "-log-level", "debug"},
			expected: &Config{
				ServerURL:           "https://pms.example/api",
				Origin:              "https://pms.example",
				DatabasePath:        "/tmp/c.db",
				OnlineCheckInterval: 10 * time.Second,
				RequestTimeout:      2 * time.Second,
				LogLevel:            "debug",
			},
		},
		{
			name:     "unknown flags are ignored",
			args:     []string{"-u", "alice", "-a", "http://h:1"},
			expected: &Config{ServerURL: "http://h:1"},
		},
		{name: "bad interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(cfg, tt.args) })
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}

func TestParseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"server_url":            "https://pms.example",
		"online_check_interval": "10s",
		"request_timeout":       1000000000,
	})

	t.Run("loads fields present in the file", func(t *testing.T) {
		cfg := &Config{DatabasePath: "keep.db"}
		parseJson(cfg, []string{"-config", path})
		assert.Equal(t, "https://pms.example", cfg.ServerURL)
		assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
		assert.Equal(t, time.Second, cfg.RequestTimeout)
		assert.Equal(t, "keep.db", cfg.DatabasePath)
	})

	t.Run("no flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{ServerURL: "defaults"}
		parseJson(cfg, nil)
		assert.Equal(t, "defaults", cfg.ServerURL)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ nope`), 0o600))
		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", bad}) })
	})
}

func TestParseEnv(t *testing.T) {
	t.Setenv("HOTELAUTH_CLIENT_SERVER_URL", "http://env:9")
	t.Setenv("HOTELAUTH_CLIENT_REQUEST_TIMEOUT", "5s")
	t.Setenv("HOTELAUTH_CLIENT_KEY_PASSPHRASE", "open sesame")

	cfg := LoadConfig([]string{"-db", "flag.db"})
	assert.Equal(t, "http://env:9", cfg.ServerURL)
	assert.Equal(t, "open sesame", cfg.KeyPassphrase)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "flag.db", cfg.DatabasePath)
}

func TestWebAuthnOrigin(t *testing.T) {
	c := &Config{ServerURL: "https://pms.example:8443/api/v1"}
	o, err := c.WebAuthnOrigin()
	require.NoError(t, err)
	assert.Equal(t, "https://pms.example:8443", o)

	c.Origin = "https://front.example"
	o, err = c.WebAuthnOrigin()
	require.NoError(t, err)
	assert.Equal(t, "https://front.example", o)

	_, err = (&Config{ServerURL: "localhost"}).WebAuthnOrigin()
	assert.Error(t, err)
}
