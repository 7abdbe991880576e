// Package codec is the one binary-to-text encoding used for every
// credential-related field that crosses the wire (challenges, credential ids,
// authenticator data, client data, signatures): base64url without padding.
//
// Decoding is strict. Padding, the standard alphabet, embedded line breaks and
// non-canonical trailing bits are all rejected instead of being silently
// tolerated or truncated.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/hotelauth/internal/common"
)

var encoding = base64.RawURLEncoding.Strict()

// Encode returns the canonical text form of b.
func Encode(b []byte) string {
	return encoding.EncodeToString(b)
}

// Decode parses canonical base64url text.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty base64url value", common.ErrValidation)
	}
	// encoding/base64 skips \r and \n, which would hide a corrupted payload.
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("%w: base64url value contains line breaks", common.ErrValidation)
	}
	b, err := encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed base64url: %v", common.ErrValidation, err)
	}
	return b, nil
}

// DecodeLen decodes s and requires the result to be between min and max
// bytes inclusive.
func DecodeLen(s string, min, max int) ([]byte, error) {
	b, err := Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) < min || len(b) > max {
		return nil, fmt.Errorf("%w: decoded length %d outside [%d, %d]", common.ErrValidation, len(b), min, max)
	}
	return b, nil
}

// DecodeExact decodes s and requires exactly n bytes.
func DecodeExact(s string, n int) ([]byte, error) {
	return DecodeLen(s, n, n)
}
