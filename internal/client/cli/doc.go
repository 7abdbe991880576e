// Package cli provides the interactive hotel PMS sign-in client.
//
// It wires configuration, the local device database, the REST client and
// the passkey ceremony orchestrator into a small REPL. Typical flow: sign
// in with a password or a passkey, enroll passkeys on this device, review
// the security history, sign out.
//
// A background watcher pings the server and shows online/offline in the
// prompt. When the server rejects the session on a protected call the
// REPL prints a notice and returns to the signed-out state.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// App.Exec runs a single command for non-interactive use.
package cli
