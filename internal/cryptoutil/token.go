// Package cryptoutil holds small crypto helpers shared across packages:
// hex validation and HMAC-signed session tokens.
package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// tokenSalt versions the session token format. Bump when the signing scheme
// changes so stale tokens are rejected after an upgrade.
const tokenSalt = "citybrief-session-v1"

// ErrBadToken is returned when a session token fails verification.
var ErrBadToken = errors.New("invalid session token")

// SignSession returns an HMAC-SHA256 token binding the session id to key.
// The token is URL-safe base64; clients echo it on every chat request.
func SignSession(sessionID string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(tokenSalt))
	mac.Write([]byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySession checks token against the session id using a constant-time
// compare. Returns ErrBadToken on mismatch or malformed input.
func VerifySession(sessionID, token string, key []byte) error {
	want, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrBadToken
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(tokenSalt))
	mac.Write([]byte(sessionID))
	if !hmac.Equal(want, mac.Sum(nil)) {
		return ErrBadToken
	}
	return nil
}
