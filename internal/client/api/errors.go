package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/hotelauth/internal/common"
)

// Error is a non-2xx response. Kind is the server's machine-readable
// "error" field; Message its human-readable "message".
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
}

// Unwrap maps the server's error kind back onto the shared sentinel, so
// callers can use errors.Is(err, common.ErrTokenReused) and the like.
func (e *Error) Unwrap() error {
	if err, ok := kinds[e.Kind]; ok {
		return err
	}
	switch {
	case e.Status == http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case e.Status == http.StatusNotFound:
		return common.ErrorNotFound
	case e.Status >= http.StatusInternalServerError:
		return common.ErrorInternal
	}
	return nil
}

var kinds = map[string]error{
	"rate_limited":         common.ErrRateLimited,
	"validation_error":     common.ErrValidation,
	"passkey_limit":        common.ErrPasskeyLimit,
	"duplicate_credential": common.ErrDuplicateCredential,
	"already_registered":   common.ErrAlreadyRegistered,
	"wrong_password":       common.ErrWrongPassword,
	"account_locked":       common.ErrAccountLocked,
	"account_inactive":     common.ErrAccountInactive,
	"totp_required":        common.ErrTOTPRequired,
	"totp_invalid":         common.ErrTOTPInvalid,
	"challenge_invalid":    common.ErrChallengeInvalid,
	"credential_not_found": common.ErrCredentialNotFound,
	"signature_invalid":    common.ErrSignatureInvalid,
	"replay_suspected":     common.ErrReplaySuspected,
	"token_expired":        common.ErrTokenExpired,
	"token_revoked":        common.ErrTokenRevoked,
	"token_reused":         common.ErrTokenReused,
	"invalid_token":        common.ErrInvalidToken,
	"unauthorized":         common.ErrorUnauthorized,
	"not_found":            common.ErrorNotFound,
	"internal_error":       common.ErrorInternal,
}

// parseError reads the {error, message} body. Bodies that are not JSON
// keep the status text as the message.
func parseError(status int, body []byte) *Error {
	var b struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	e := &Error{Status: status}
	if err := json.Unmarshal(body, &b); err == nil {
		e.Kind, e.Message = b.Error, b.Message
	}
	if e.Kind == "" {
		e.Kind = "http_error"
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// ErrNoSession is returned by calls that need a stored session.
var ErrNoSession = fmt.Errorf("%w: not signed in", common.ErrorUnauthorized)
