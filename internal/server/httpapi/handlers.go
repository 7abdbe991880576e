package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/server/models"
	"github.com/dmitrijs2005/hotelauth/internal/server/passkey"
	"github.com/dmitrijs2005/hotelauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	res, err := s.svc.Users.Login(c.Request().Context(), req.Username, req.Password, req.TOTPCode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	u, err := s.svc.Users.Register(c.Request().Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"user": newUserResponse(u)})
}

func (s *Server) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	pair, err := s.svc.Sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTokenResponse(pair))
}

// enrollmentUsername defaults to the caller when the body names nobody.
func enrollmentUsername(c echo.Context, username string) string {
	if username == "" {
		if claims := ClaimsFrom(c); claims != nil {
			return claims.Username
		}
	}
	return username
}

func (s *Server) passkeyRegisterStart(c echo.Context) error {
	var req passkeyStartRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	username := enrollmentUsername(c, req.Username)
	if username == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username is required")
	}

	ctx := c.Request().Context()
	if err := s.svc.Challenges.AuthorizeEnrollment(ctx, username, callerID(c)); err != nil {
		return err
	}
	opts, err := s.svc.Challenges.StartRegistration(ctx, username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opts)
}

func (s *Server) passkeyRegisterFinish(c echo.Context) error {
	var req passkeyRegisterFinishRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	username := enrollmentUsername(c, req.Username)
	if username == "" || len(req.Credential) == 0 || req.Challenge == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, credential and challenge are required")
	}

	ctx := c.Request().Context()
	if err := s.svc.Challenges.AuthorizeEnrollment(ctx, username, callerID(c)); err != nil {
		return err
	}
	p, err := s.svc.Ceremonies.FinishRegistration(ctx, username, req.Challenge, req.Credential, req.DeviceName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "passkey registered",
		"passkey": newPasskeyResponse(p),
	})
}

func (s *Server) passkeyLoginStart(c echo.Context) error {
	var req passkeyStartRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	opts, err := s.svc.Challenges.StartAuthentication(c.Request().Context(), req.Username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opts)
}

func (s *Server) passkeyLoginFinish(c echo.Context) error {
	var req passkeyLoginFinishRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, _, err := s.svc.Ceremonies.FinishAuthentication(ctx, req.Username, passkey.AssertionInput{
		CredentialID:      req.CredentialID,
		AuthenticatorData: req.AuthenticatorData,
		ClientDataJSON:    req.ClientDataJSON,
		Signature:         req.Signature,
		Challenge:         req.Challenge,
	})
	if err != nil {
		return err
	}

	res, err := s.svc.Users.CompleteLogin(ctx, user, "passkey")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

func (s *Server) logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	owner, err := s.svc.Sessions.Revoke(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	if owner != "" {
		s.svc.Audit.RecordBestEffort(ctx, owner, models.AuditLogout, nil)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) logoutAll(c echo.Context) error {
	ctx := c.Request().Context()
	userID := callerID(c)

	n, err := s.svc.Sessions.RevokeAll(ctx, userID, models.RevokeLogoutAll)
	if err != nil {
		return err
	}
	s.svc.Audit.RecordBestEffort(ctx, userID, models.AuditLogoutAll, map[string]any{"sessions_revoked": n})
	return c.JSON(http.StatusOK, map[string]any{
		"message":          "all sessions revoked",
		"sessions_revoked": n,
	})
}

func (s *Server) me(c echo.Context) error {
	p, err := s.svc.Users.Me(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{
		User:         newUserResponse(p.User),
		Roles:        nonNil(p.Roles),
		Permissions:  nonNil(p.Permissions),
		PasskeyCount: p.PasskeyCount,
	})
}

func (s *Server) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if err := s.svc.Users.ChangePassword(c.Request().Context(), callerID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password changed, please sign in again"})
}

func (s *Server) listPasskeys(c echo.Context) error {
	list, err := s.svc.Passkeys.List(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	out := make([]passkeyResponse, 0, len(list))
	for _, p := range list {
		out = append(out, newPasskeyResponse(p))
	}
	return c.JSON(http.StatusOK, map[string]any{"passkeys": out})
}

func (s *Server) renamePasskey(c echo.Context) error {
	var req renamePasskeyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	err := s.svc.Passkeys.Rename(c.Request().Context(), callerID(c), c.Param("id"), req.DeviceName)
	if err != nil {
		return passkeyNotFound(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "passkey renamed"})
}

func (s *Server) deletePasskey(c echo.Context) error {
	if err := s.svc.Passkeys.Delete(c.Request().Context(), callerID(c), c.Param("id")); err != nil {
		return passkeyNotFound(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// passkeyNotFound keeps a missing passkey on a management route from being
// reported as an authentication failure.
func passkeyNotFound(err error) error {
	if errors.Is(err, common.ErrCredentialNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "passkey not found")
	}
	return err
}

func (s *Server) auditHistory(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		limit = n
	}

	entries, err := s.svc.Audit.History(c.Request().Context(), callerID(c), limit)
	if err != nil {
		return err
	}
	out := make([]auditEventResponse, 0, len(entries))
	for _, e := range entries {
		details := e.Details
		if details == nil {
			details = map[string]any{}
		}
		out = append(out, auditEventResponse{
			ID:        e.ID,
			Action:    string(e.Action),
			Details:   details,
			IPAddress: e.IPAddress,
			CreatedAt: e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"events": out})
}

func (s *Server) twoFactorStatus(c echo.Context) error {
	st, err := s.svc.Users.TwoFactorStatus(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, twoFactorStatusResponse{Enabled: st.Enabled, Pending: st.Pending})
}

func (s *Server) twoFactorSetup(c echo.Context) error {
	setup, err := s.svc.Users.SetupTwoFactor(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, twoFactorSetupResponse{Secret: setup.Secret, URL: setup.URL})
}

func (s *Server) twoFactorEnable(c echo.Context) error {
	var req twoFactorCodeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	if err := s.svc.Users.EnableTwoFactor(c.Request().Context(), callerID(c), req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "two-factor authentication enabled"})
}

func (s *Server) twoFactorDisable(c echo.Context) error {
	var req twoFactorCodeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	n, err := s.svc.Users.DisableTwoFactor(c.Request().Context(), callerID(c), req.Code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":          "two-factor authentication disabled, please sign in again",
		"sessions_revoked": n,
	})
}
