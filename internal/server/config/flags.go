package config

import (
	"flag"
	"strings"

	"github.com/dmitrijs2005/hotelauth/internal/flagx"
)

var serverFlags = []string{
	"-a", "-g", "-d", "-redis", "-s", "-t", "-r", "-ch",
	"-rp-id", "-rp-name", "-rp-origins", "-allow-zero-counter",
	"-max-failed-logins", "-rate-limit", "-rate-window", "-sweep", "-log-level",
}

// parseFlags applies command-line flags on top of config.
//
//	-a      HTTP bind address            -g   gRPC bind address
//	-d      PostgreSQL DSN               -s   JWT HMAC secret
//	-redis  Redis URL for rate limiting
//	-t, -r  access / refresh token TTL   -ch  challenge TTL
//	-rp-id, -rp-name, -rp-origins (comma separated)
//
// Unknown flags are filtered out with flagx.FilterArgs; a bad value panics.
func parseFlags(config *Config, args []string) {
	filtered := flagx.FilterArgs(args, serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "internal gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisURL, "redis", config.RedisURL, "redis URL (empty: in-memory rate limiting)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token TTL")
	fs.DurationVar(&config.RefreshTokenTTL, "r", config.RefreshTokenTTL, "refresh token TTL")
	fs.DurationVar(&config.ChallengeTTL, "ch", config.ChallengeTTL, "passkey challenge TTL")
	fs.StringVar(&config.RPID, "rp-id", config.RPID, "WebAuthn relying party id")
	fs.StringVar(&config.RPName, "rp-name", config.RPName, "WebAuthn relying party name")
	origins := fs.String("rp-origins", strings.Join(config.RPOrigins, ","), "allowed WebAuthn origins, comma separated")
	fs.BoolVar(&config.AllowZeroCounter, "allow-zero-counter", config.AllowZeroCounter, "accept 0/0 signature counters")
	fs.IntVar(&config.MaxFailedLogins, "max-failed-logins", config.MaxFailedLogins, "failed password logins before lock")
	fs.IntVar(&config.RateLimit, "rate-limit", config.RateLimit, "auth requests per window and client")
	fs.DurationVar(&config.RateWindow, "rate-window", config.RateWindow, "rate limit window")
	fs.DurationVar(&config.SweepInterval, "sweep", config.SweepInterval, "expired challenge/token sweep interval")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(filtered); err != nil {
		panic(err)
	}

	config.RPOrigins = splitList(*origins)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
