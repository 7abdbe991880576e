// Package common defines shared constants and sentinel errors used across
// client and server layers of hotelauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")
	ErrWrongPassword  = errors.New("current password is incorrect")

	// Account state errors.
	ErrAccountLocked   = errors.New("account is locked")
	ErrAccountInactive = errors.New("account is inactive")
	ErrTOTPRequired    = errors.New("two-factor code required")
	ErrTOTPInvalid     = errors.New("invalid two-factor code")

	// Ceremony errors.
	ErrChallengeInvalid    = errors.New("challenge is invalid, expired or already used")
	ErrCredentialNotFound  = errors.New("credential not found")
	ErrSignatureInvalid    = errors.New("signature is invalid")
	ErrReplaySuspected     = errors.New("signature counter did not increase, possible cloned authenticator")
	ErrDuplicateCredential = errors.New("credential is already registered")
	ErrPasskeyLimit        = errors.New("maximum number of passkeys reached")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenReused  = errors.New("refresh token reused")

	// Client-side ceremony and transport errors.
	ErrUserCancelled      = errors.New("cancelled by user")
	ErrUnsupported        = errors.New("passkeys are not supported on this device")
	ErrAlreadyRegistered  = errors.New("a passkey for this account already exists on this device")
	ErrNetworkFailure     = errors.New("network failure")
	ErrCeremonyInProgress = errors.New("another passkey ceremony is in progress")
	ErrRateLimited        = errors.New("rate limit exceeded")
)
