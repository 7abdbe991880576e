package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays HOTELAUTH_* variables. Unset variables leave the current
// value untouched; a malformed value panics.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
