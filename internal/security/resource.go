package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrBadCookieSignature = errors.New("cookie signature mismatch")

func sign(secret string, value string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SignSessionID returns the cookie value "<id>.<mac>" for a session id.
func SignSessionID(secret string, sessionID string) string {
	return sessionID + "." + sign(secret, sessionID)
}

// VerifySessionCookie returns the session id carried by a signed cookie value.
func VerifySessionCookie(secret string, value string) (string, error) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return "", ErrBadCookieSignature
	}
	id, mac := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(mac), []byte(sign(secret, id))) {
		return "", ErrBadCookieSignature
	}
	return id, nil
}
