package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/common"
)

// report prints err for the user and returns it unchanged. Server errors
// show the server's message.
func (a *App) report(err error) error {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintf(a.out, "Error: %s\n", apiErr.Message)
	case errors.Is(err, common.ErrNetworkFailure):
		fmt.Fprintln(a.out, "Error: server unreachable, try again later")
	default:
		fmt.Fprintf(a.out, "Error: %s\n", err)
	}
	return err
}

func (a *App) requireSession() error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not signed in. Use 'login' or 'passkey-login' first.")
		return api.ErrNoSession
	}
	return nil
}

// Register creates an account. Leaving the password empty creates a
// passkey-only account and enrolls a passkey on this device right away.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	fullName, err := getSimpleText(a.reader, "Enter full name (optional)", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password (empty for passkey only)", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.auth.Register(ctx, api.RegisterInput{
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: string(password),
	})
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Account %s created.\n", u.Username)

	if len(password) == 0 {
		fmt.Fprintln(a.out, "The account has no password; enrolling a passkey on this device.")
		return a.enroll(ctx, u.Username, "")
	}
	return nil
}

// Login signs in with a password, asking for a two-factor code when the
// account needs one.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.auth.Login(ctx, username, string(password), "")
	if errors.Is(err, common.ErrTOTPRequired) {
		code, cerr := getSimpleText(a.reader, "Enter two-factor code", a.out)
		if cerr != nil {
			return cerr
		}
		sess, err = a.auth.Login(ctx, username, string(password), code)
	}
	if err != nil {
		return a.report(err)
	}

	a.welcome(sess)
	return nil
}

func (a *App) welcome(sess *models.Session) {
	fmt.Fprintf(a.out, "Signed in as %s.\n", sess.User.Username)
	if sess.IsFirstLogin {
		fmt.Fprintln(a.out, "Welcome! This is your first sign-in.")
	}
}

func (a *App) WhoAmI(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	p, err := a.auth.Me(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "User:        %s (%s)\n", p.User.Username, p.User.Email)
	if p.User.FullName != "" {
		fmt.Fprintf(a.out, "Name:        %s\n", p.User.FullName)
	}
	fmt.Fprintf(a.out, "Roles:       %v\n", p.Roles)
	fmt.Fprintf(a.out, "Permissions: %v\n", p.Permissions)
	fmt.Fprintf(a.out, "Passkeys:    %d\n", p.PasskeyCount)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	if err := a.auth.Refresh(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Session refreshed.")
	return nil
}

// Logout ends this session. The local session is gone even when the
// server could not be reached.
func (a *App) Logout(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	err := a.signingOut(func() error { return a.auth.Logout(ctx) })
	if err != nil {
		a.log.Warn(ctx, "server logout failed", "error", err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	var n int64
	err := a.signingOut(func() (err error) {
		n, err = a.auth.LogoutAll(ctx)
		return err
	})
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Signed out of %d session(s).\n", n)
	return nil
}

// ChangePassword sets a new password. Every session ends, this one
// included.
func (a *App) ChangePassword(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	current, err := getPassword("Current password (empty if none)", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)
	next, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	err = a.signingOut(func() error { return a.auth.ChangePassword(ctx, string(current), string(next)) })
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Password changed. Please sign in again.")
	return nil
}
