// Package common contains shared constants and sentinel errors used across
// the hotelauth server and client.
package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key) that
// carries the access token on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token inside the Authorization header.
const BearerPrefix = "Bearer "

// ChallengeSize is the number of random bytes in every ceremony challenge.
const ChallengeSize = 32

// RefreshTokenSize is the number of random bytes behind a refresh token.
const RefreshTokenSize = 32

// MaxPasskeysPerUser caps how many passkeys one account may register.
const MaxPasskeysPerUser = 10
