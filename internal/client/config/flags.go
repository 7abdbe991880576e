package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/flagx"
)

var clientFlags = []string{"-a", "-o", "-db", "-i", "-timeout", "-log-level"}

// parseFlags populates Config from command-line flags.
//
//	-a         REST base URL of the server
//	-o         WebAuthn origin reported by the software authenticator
//	-db        path of the local SQLite database
//	-i         online check interval in seconds
//	-timeout   per-request timeout
//
// Flags it does not know are filtered out with flagx.FilterArgs so that a
// sub-command's own flags can share the command line.
func parseFlags(cfg *Config, args []string) {
	filtered := flagx.FilterArgs(args, clientFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.Origin, "o", cfg.Origin, "WebAuthn origin (default: server URL origin)")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local database file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(filtered); err != nil {
		panic(err)
	}
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
