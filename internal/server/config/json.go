package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/hotelauth/internal/flagx"
	"github.com/dmitrijs2005/hotelauth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept "5m"
// or integer nanoseconds. Only fields present in the file are applied.
type JsonConfig struct {
	HTTPAddr         *string         `json:"http_addr"`
	GRPCAddr         *string         `json:"grpc_addr"`
	DatabaseDSN      *string         `json:"database_dsn"`
	RedisURL         *string         `json:"redis_url"`
	SecretKey        *string         `json:"secret_key"`
	AccessTokenTTL   *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL  *timex.Duration `json:"refresh_token_ttl"`
	ChallengeTTL     *timex.Duration `json:"challenge_ttl"`
	RPID             *string         `json:"rp_id"`
	RPName           *string         `json:"rp_name"`
	RPOrigins        []string        `json:"rp_origins"`
	AllowZeroCounter *bool           `json:"allow_zero_counter"`
	MaxFailedLogins  *int            `json:"max_failed_logins"`
	RateLimit        *int            `json:"rate_limit"`
	RateWindow       *timex.Duration `json:"rate_window"`
	SweepInterval    *timex.Duration `json:"sweep_interval"`
	LogLevel         *string         `json:"log_level"`
	LogFormat        *string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing is loaded; an unreadable or malformed file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RPID, c.RPID)
	setString(&config.RPName, c.RPName)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.ChallengeTTL != nil {
		config.ChallengeTTL = c.ChallengeTTL.Duration
	}
	if c.RateWindow != nil {
		config.RateWindow = c.RateWindow.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if len(c.RPOrigins) > 0 {
		config.RPOrigins = c.RPOrigins
	}
	if c.AllowZeroCounter != nil {
		config.AllowZeroCounter = *c.AllowZeroCounter
	}
	if c.MaxFailedLogins != nil {
		config.MaxFailedLogins = *c.MaxFailedLogins
	}
	if c.RateLimit != nil {
		config.RateLimit = *c.RateLimit
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
