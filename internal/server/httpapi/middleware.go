package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
	"github.com/dmitrijs2005/hotelauth/internal/server/auth"
	"github.com/dmitrijs2005/hotelauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

const claimsKey = "claims"

// TokenValidator checks access tokens for the auth middleware.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// ClaimsFrom returns the claims stored by the auth middleware, or nil.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// callerID is the authenticated user id, empty for anonymous requests.
func callerID(c echo.Context) string {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.UserID()
	}
	return ""
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
// present is false when no Authorization header was sent at all.
func bearerToken(r *http.Request) (token string, present bool) {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if h == "" {
		return "", false
	}
	if len(h) < len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", true
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):]), true
}

func authenticate(c echo.Context, v TokenValidator, token string) error {
	if token == "" {
		return common.ErrInvalidToken
	}
	claims, err := v.Validate(token)
	if err != nil {
		return err
	}
	c.Set(claimsKey, claims)
	return nil
}

// requireAuth rejects requests without a valid access token.
func requireAuth(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present := bearerToken(c.Request())
			if !present {
				return fmt.Errorf("%w: missing bearer token", common.ErrorUnauthorized)
			}
			if err := authenticate(c, v, token); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// optionalAuth authenticates when a token is sent and lets anonymous
// requests through. A token that is sent but invalid is still rejected.
func optionalAuth(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present := bearerToken(c.Request())
			if present {
				if err := authenticate(c, v, token); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

// clientIP makes the caller address available to audit records.
func clientIP() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(services.ContextWithClientIP(req.Context(), c.RealIP())))
			return next(c)
		}
	}
}

// requestLogger logs every request once it completes; the level follows
// the response status.
func requestLogger(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			args := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"latency", time.Since(start),
				"remote_ip", c.RealIP(),
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error(req.Context(), "request", args...)
			case status >= http.StatusBadRequest:
				log.Warn(req.Context(), "request", args...)
			default:
				log.Info(req.Context(), "request", args...)
			}
			return nil
		}
	}
}

// recovery turns a handler panic into a 500 and logs the stack.
func recovery(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error(c.Request().Context(), "panic recovered",
						"panic", r,
						"stack", string(debug.Stack()),
						"method", c.Request().Method,
						"path", c.Request().URL.Path,
					)
					err = fmt.Errorf("%w: panic: %v", common.ErrorInternal, r)
				}
			}()
			return next(c)
		}
	}
}
