package cli

import (
	"context"
	"fmt"
)

func (a *App) TwoFactorStatus(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	st, err := a.auth.TwoFactorStatus(ctx)
	if err != nil {
		return a.report(err)
	}
	switch {
	case st.Enabled:
		fmt.Fprintln(a.out, "Two-factor authentication is on.")
	case st.Pending:
		fmt.Fprintln(a.out, "Two-factor authentication is set up but not confirmed. Run '2fa-setup' again.")
	default:
		fmt.Fprintln(a.out, "Two-factor authentication is off.")
	}
	return nil
}

// TwoFactorSetup shows a new secret and turns TOTP on once the user
// confirms a code from their authenticator app.
func (a *App) TwoFactorSetup(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	setup, err := a.auth.SetupTwoFactor(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Add this account to your authenticator app:")
	fmt.Fprintf(a.out, "  Secret: %s\n", setup.Secret)
	fmt.Fprintf(a.out, "  URL:    %s\n", setup.URL)

	code, err := getSimpleText(a.reader, "Enter the code shown by the app", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.EnableTwoFactor(ctx, code); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Two-factor authentication enabled.")
	return nil
}

// TwoFactorDisable turns TOTP off. Every session ends, this one included.
func (a *App) TwoFactorDisable(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	code, err := getSimpleText(a.reader, "Enter two-factor code", a.out)
	if err != nil {
		return err
	}
	err = a.signingOut(func() error {
		_, err := a.auth.DisableTwoFactor(ctx, code)
		return err
	})
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Two-factor authentication disabled. Please sign in again.")
	return nil
}
