// Package httpapi is the REST transport of the auth server. Handlers only
// translate JSON to service calls; every error is rendered by one
// HTTPErrorHandler as {"error", "message"}.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/dmitrijs2005/hotelauth/internal/server/auth"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/passkey"
	"github.com/dmitrijs2005/hotelauth/internal/server/services"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/labstack/echo/v4"
)

const shutdownTimeout = 5 * time.Second

type Users interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password, totpCode string) (*services.AuthResult, error)
	CompleteLogin(ctx context.Context, user *models.User, method string) (*services.AuthResult, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	Me(ctx context.Context, userID string) (*services.Profile, error)
	SetupTwoFactor(ctx context.Context, userID string) (*services.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, userID, code string) error
	DisableTwoFactor(ctx context.Context, userID, code string) (int64, error)
	TwoFactorStatus(ctx context.Context, userID string) (*services.TwoFactorStatus, error)
}

type Challenges interface {
	StartRegistration(ctx context.Context, username string) (*protocol.PublicKeyCredentialCreationOptions, error)
	StartAuthentication(ctx context.Context, username string) (*protocol.PublicKeyCredentialRequestOptions, error)
	AuthorizeEnrollment(ctx context.Context, username, callerID string) error
}

type Ceremonies interface {
	FinishRegistration(ctx context.Context, username, challenge string, credentialJSON []byte, deviceName string) (*models.Passkey, error)
	FinishAuthentication(ctx context.Context, username string, in passkey.AssertionInput) (*models.User, *models.Passkey, error)
}

type Sessions interface {
	Validate(token string) (*auth.Claims, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) (string, error)
	RevokeAll(ctx context.Context, userID string, reason models.RevokeReason) (int64, error)
}

type Passkeys interface {
	List(ctx context.Context, userID string) ([]*models.Passkey, error)
	Rename(ctx context.Context, userID, id, name string) error
	Delete(ctx context.Context, userID, id string) error
}

type AuditLog interface {
	RecordBestEffort(ctx context.Context, userID string, action models.AuditAction, details map[string]any)
	History(ctx context.Context, userID string, limit int) ([]*models.AuditEntry, error)
}

// Services bundles what the handlers call into.
type Services struct {
	Users      Users
	Challenges Challenges
	Ceremonies Ceremonies
	Sessions   Sessions
	Passkeys   Passkeys
	Audit      AuditLog
}

type Server struct {
	address string
	echo    *echo.Echo
	logger  logging.Logger
	svc     Services
	limiter Limiter
}

// NewServer builds the router. A nil limiter disables rate limiting.
func NewServer(address string, l logging.Logger, svc Services, limiter Limiter) *Server {
	s := &Server{
		address: address,
		echo:    echo.New(),
		logger:  l.With("module", "http_server"),
		svc:     svc,
		limiter: limiter,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.errorHandler
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.Use(requestLogger(s.logger))
	e.Use(recovery(s.logger))
	e.Use(clientIP())

	e.GET("/health", s.health)

	a := e.Group("/auth")
	if s.limiter != nil {
		a.Use(rateLimit(s.limiter, s.logger))
	}

	authed := requireAuth(s.svc.Sessions)
	maybeAuthed := optionalAuth(s.svc.Sessions)

	a.POST("/login", s.login)
	a.POST("/register", s.register)
	a.POST("/refresh", s.refresh)
	a.POST("/passkey/register/start", s.passkeyRegisterStart, maybeAuthed)
	a.POST("/passkey/register/finish", s.passkeyRegisterFinish, maybeAuthed)
	a.POST("/passkey/login/start", s.passkeyLoginStart)
	a.POST("/passkey/login/finish", s.passkeyLoginFinish)
	// The refresh token in the body is the credential; an expired access
	// token must not stop the user from signing out.

	a.POST("/logout", s.logout)
	a.POST("/logout-all", s.logoutAll, authed)
	a.GET("/me", s.me, authed)
	a.POST("/change-password", s.changePassword, authed)
	a.GET("/passkeys", s.listPasskeys, authed)
	a.PATCH("/passkeys/:id", s.renamePasskey, authed)
	a.DELETE("/passkeys/:id", s.deletePasskey, authed)
	a.GET("/audit", s.auditHistory, authed)

	tf := a.Group("/2fa", authed)
	tf.GET("/status", s.twoFactorStatus)
	tf.POST("/setup", s.twoFactorSetup)
	tf.POST("/enable", s.twoFactorEnable)
	tf.POST("/disable", s.twoFactorDisable)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(sctx); err != nil {
			s.logger.Error(sctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
