package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/labstack/echo/v4"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	kind   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{common.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{common.ErrValidation, http.StatusBadRequest, "validation_error"},
	{common.ErrPasskeyLimit, http.StatusBadRequest, "passkey_limit"},
	{common.ErrDuplicateCredential, http.StatusConflict, "duplicate_credential"},
	{common.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{common.ErrWrongPassword, http.StatusForbidden, "wrong_password"},
	{common.ErrAccountLocked, http.StatusForbidden, "account_locked"},
	{common.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
	{common.ErrTOTPRequired, http.StatusUnauthorized, "totp_required"},
	{common.ErrTOTPInvalid, http.StatusUnauthorized, "totp_invalid"},
	{common.ErrChallengeInvalid, http.StatusUnauthorized, "challenge_invalid"},
	{common.ErrCredentialNotFound, http.StatusUnauthorized, "credential_not_found"},
	{common.ErrSignatureInvalid, http.StatusUnauthorized, "signature_invalid"},
	{common.ErrReplaySuspected, http.StatusUnauthorized, "replay_suspected"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{common.ErrTokenRevoked, http.StatusUnauthorized, "token_revoked"},
	{common.ErrTokenReused, http.StatusUnauthorized, "token_reused"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{common.ErrorNotFound, http.StatusNotFound, "not_found"},
}

// classify returns the status, error kind and client-safe message for err.
// Only validation errors carry their wrapped detail to the client.
func classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.target.Error()
			if m.target == common.ErrValidation {
				msg = err.Error()
			}
			return m.status, m.kind, msg
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status int
		body   errorBody
	)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		body.Error = kindForStatus(status)
		if msg, ok := he.Message.(string); ok {
			body.Message = msg
		} else {
			body.Message = fmt.Sprint(he.Message)
		}
	} else {
		status, body.Error, body.Message = classify(err)
		if status == http.StatusInternalServerError {
			s.logger.Error(c.Request().Context(), "unhandled error",
				"error", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error(c.Request().Context(), "write error response", "error", err)
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal_error"
	}
}
