package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/client/ceremony"
)

const auditLimit = 20

// PasskeyRegister enrolls a passkey on this device. Signed in, it adds one
// to the current account; signed out, it asks which account to enroll.
func (a *App) PasskeyRegister(ctx context.Context) error {
	username := ""
	if !a.isLoggedIn() {
		u, err := getSimpleText(a.reader, "Enter username", a.out)
		if err != nil {
			return err
		}
		username = u
	}
	device, err := getSimpleText(a.reader, "Name this device (optional)", a.out)
	if err != nil {
		return err
	}
	return a.enroll(ctx, username, device)
}

func (a *App) enroll(ctx context.Context, username, device string) error {
	r := a.ceremonies.RegisterPasskey(ctx, username, device)
	if r.Kind == ceremony.Success {
		fmt.Fprintf(a.out, "Passkey %q registered.\n", r.Passkey.DeviceName)
		return nil
	}
	a.explain(r)
	return r.Err
}

// PasskeyLogin signs in with a passkey on this device. An empty username
// lets the device offer its passkeys.
func (a *App) PasskeyLogin(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username (empty to pick a passkey)", a.out)
	if err != nil {
		return err
	}
	r := a.ceremonies.LoginWithPasskey(ctx, username)
	if r.Kind == ceremony.Success {
		a.welcome(r.Session)
		return nil
	}
	a.explain(r)
	return r.Err
}

func (a *App) explain(r ceremony.Result) {
	switch r.Kind {
	case ceremony.Cancelled:
		fmt.Fprintln(a.out, "Cancelled.")
	case ceremony.Unsupported:
		fmt.Fprintln(a.out, "Passkeys are not supported on this device.")
	case ceremony.AlreadyRegistered:
		fmt.Fprintln(a.out, "This device already has a passkey for the account.")
	default:
		fmt.Fprintf(a.out, "Error: %s\n", r.Reason)
	}
}

func (a *App) Passkeys(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	list, err := a.auth.ListPasskeys(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No passkeys.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEVICE\tSTATUS\tCREATED\tLAST USED")
	for _, p := range list {
		status := "active"
		if !p.IsActive {
			status = "disabled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.DeviceName, status, formatTime(&p.CreatedAt), formatTime(p.LastUsedAt))
	}
	return tw.Flush()
}

func (a *App) RenamePasskey(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	id, err := getSimpleText(a.reader, "Enter passkey id to rename", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter new device name", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.RenamePasskey(ctx, id, name); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Passkey renamed.")
	return nil
}

func (a *App) DeletePasskey(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	id, err := getSimpleText(a.reader, "Enter passkey id to delete", a.out)
	if err != nil {
		return err
	}
	if !confirm(a.reader, "Delete passkey "+id+"?", a.out) {
		fmt.Fprintln(a.out, "Kept.")
		return nil
	}
	if err := a.auth.DeletePasskey(ctx, id); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Passkey deleted.")
	return nil
}

func (a *App) Audit(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	events, err := a.auth.AuditHistory(ctx, auditLimit)
	if err != nil {
		return a.report(err)
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tFROM")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", formatTime(&e.CreatedAt), e.Action, e.IPAddress)
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
