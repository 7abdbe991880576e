package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	PasskeyRegister(ctx context.Context) error
	PasskeyLogin(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Passkeys(ctx context.Context) error
	RenamePasskey(ctx context.Context) error
	DeletePasskey(ctx context.Context) error
	Audit(ctx context.Context) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	TwoFactorStatus(ctx context.Context) error
	TwoFactorSetup(ctx context.Context) error
	TwoFactorDisable(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: register, login, passkey-login, passkey-register, exit"
	helpSignedIn  = "Available commands: whoami, passkeys, passkey-register, rename, delete, audit, refresh, change-password, 2fa-status, 2fa-setup, 2fa-disable, logout, logout-all, exit"
)

// runREPL starts a simple read–eval–print loop.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF, when the user types
// "exit" or "quit", or when ctx is done.
//
// Command handlers report their own errors to the user; the returned error
// is ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("pms> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if quit := dispatch(ctx, a, parts[0]); quit {
			return
		}
	}
}

func commands(a execIface) map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"register":         a.Register,
		"login":            a.Login,
		"passkey-register": a.PasskeyRegister,
		"passkey-login":    a.PasskeyLogin,
		"whoami":           a.WhoAmI,
		"passkeys":         a.Passkeys,
		"rename":           a.RenamePasskey,
		"delete":           a.DeletePasskey,
		"audit":            a.Audit,
		"refresh":          a.Refresh,
		"logout":           a.Logout,
		"logout-all":       a.LogoutAll,
		"change-password":  a.ChangePassword,
		"2fa-status":       a.TwoFactorStatus,
		"2fa-setup":        a.TwoFactorSetup,
		"2fa-disable":      a.TwoFactorDisable,
	}
}

// dispatch runs one command and reports whether the user asked to quit.
func dispatch(ctx context.Context, a execIface, cmd string) bool {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpSignedIn)
		} else {
			printlnFn(helpSignedOut)
		}
		return false
	case "exit", "quit":
		printlnFn("Bye!")
		return true
	}

	run, ok := commands(a)[cmd]
	if !ok {
		printlnFn("Unknown command:", cmd)
		return false
	}
	_ = run(ctx)
	return false
}

// Exec runs a single command without the REPL. It returns the command's
// error so the caller can pick an exit code.
func (a *App) Exec(ctx context.Context, cmd string) error {
	run, ok := commands(a)[cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", cmd)
	}
	return run(ctx)
}
