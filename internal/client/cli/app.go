package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/client/api"
	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/client/ceremony"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// AuthService is the REST surface the commands use. *api.Client
// satisfies it.
type AuthService interface {
	Health(ctx context.Context) error
	Register(ctx context.Context, in api.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password, totpCode string) (*models.Session, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	Me(ctx context.Context) (*models.Profile, error)
	ChangePassword(ctx context.Context, current, next string) error
	ListPasskeys(ctx context.Context) ([]models.Passkey, error)
	RenamePasskey(ctx context.Context, id, name string) error
	DeletePasskey(ctx context.Context, id string) error
	AuditHistory(ctx context.Context, limit int) ([]models.AuditEvent, error)
	TwoFactorStatus(ctx context.Context) (*models.TwoFactorStatus, error)
	SetupTwoFactor(ctx context.Context) (*models.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, code string) error
	DisableTwoFactor(ctx context.Context, code string) (int64, error)
}

// Ceremonies runs passkey registration and login. *ceremony.Orchestrator
// satisfies it.
type Ceremonies interface {
	RegisterPasskey(ctx context.Context, username, deviceName string) ceremony.Result
	LoginWithPasskey(ctx context.Context, username string) ceremony.Result
}

type App struct {
	auth       AuthService
	ceremonies Ceremonies
	state      *authstate.Store
	log        logging.Logger
	reader     *bufio.Reader
	out        io.Writer

	mu   sync.Mutex
	mode Mode

	// quietSignOut is set while a command ends the session itself.
	quietSignOut atomic.Bool
}

func NewApp(auth AuthService, ceremonies Ceremonies, state *authstate.Store, log logging.Logger) *App {
	return &App{
		auth:       auth,
		ceremonies: ceremonies,
		state:      state,
		log:        log,
		reader:     stdin,
		out:        os.Stdout,
	}
}

// Run starts the connectivity watcher and the session watcher, then
// blocks in the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context, onlineCheckInterval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, stop := a.state.Subscribe()
	defer stop()

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, onlineCheckInterval)
	go a.watchSession(ctx, events)

	printlnFn("Welcome to the hotel PMS sign-in client (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	return a.state.IsAuthenticated()
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
}

func (a *App) getStatus() string {
	s := ""
	if sess, ok := a.state.Session(); ok {
		s = sess.User.Username + " "
	}
	if m := a.Mode(); m != "" {
		s += string(m)
	}
	if s != "" {
		s = "(" + s + ")"
	}
	return s
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.auth.Health(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// watchSession tells the user when the server ended the session.
func (a *App) watchSession(ctx context.Context, events <-chan authstate.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev == authstate.Unauthenticated && !a.quietSignOut.Swap(false) {
				printlnFn("Your session has ended. Sign in again with 'login' or 'passkey-login'.")
			}
		case <-ctx.Done():
			return
		}
	}
}

// signingOut runs fn with the session-ended notice suppressed.
func (a *App) signingOut(fn func() error) error {
	a.quietSignOut.Store(true)
	err := fn()
	if a.state.IsAuthenticated() {
		a.quietSignOut.Store(false)
	}
	return err
}
