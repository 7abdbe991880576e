package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/hotelauth/internal/flagx"
	"github.com/dmitrijs2005/hotelauth/internal/timex"
)

// JsonConfig is the on-disk shape of the client config file. Only fields
// present in the file are applied.
type JsonConfig struct {
	ServerURL           *string         `json:"server_url"`
	Origin              *string         `json:"origin"`
	DatabasePath        *string         `json:"database_path"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config. An unreadable
// or malformed file panics.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.Origin != nil {
		cfg.Origin = *jc.Origin
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
}
