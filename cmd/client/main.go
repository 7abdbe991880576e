package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/hotelauth/internal/buildinfo"
	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/client/ceremony"
	"github.com/dmitrijs2005/hotelauth/internal/client/cli"
	"github.com/dmitrijs2005/hotelauth/internal/client/config"
	"github.com/dmitrijs2005/hotelauth/internal/client/platform"
	"github.com/dmitrijs2005/hotelauth/internal/client/repositories"
	"github.com/dmitrijs2005/hotelauth/internal/filex"
	"github.com/dmitrijs2005/hotelauth/internal/flagx"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
)

// Usage:
//
//	client [flags]            interactive shell
//	client <command> [flags]  run one command, e.g. "client whoami -a https://pms.example"
func main() {
	cmd, args := flagx.SplitCommand(os.Args[1:])
	if cmd == "" {
		buildinfo.PrintBuildData(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, config.LoadConfig(args)); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cmd string, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel, "text")

	if cfg.DatabasePath != ":memory:" {
		if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
			return err
		}
	}

	repos, err := repositories.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer repos.Close()

	if cfg.KeyPassphrase != "" {
		if err := repos.Unlock(ctx, []byte(cfg.KeyPassphrase)); err != nil {
			return err
		}
	}

	state := authstate.New(authstate.WithRepository(repos.Metadata), authstate.WithLogger(logger))
	if err := state.Load(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	client, err := api.New(cfg.ServerURL, state, api.WithTimeout(cfg.RequestTimeout), api.WithLogger(logger))
	if err != nil {
		return err
	}

	origin, err := cfg.WebAuthnOrigin()
	if err != nil {
		return err
	}
	authenticator := platform.NewSoftware(repos.Keys, platform.WithPresence(cli.TerminalPresence))
	orchestrator := ceremony.New(client, authenticator, state, origin, ceremony.WithLogger(logger))

	app := cli.NewApp(client, orchestrator, state, logger)
	if cmd != "" {
		return app.Exec(ctx, cmd)
	}
	app.Run(ctx, cfg.OnlineCheckInterval)
	return nil
}
