package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidState = errors.New("invalid oauth state")

// StateClaims is the payload of the signed OAuth state parameter. Nonce is
// echoed in the oauth_state cookie so a state minted for one browser cannot
// be replayed from another.
type StateClaims struct {
	Nonce    string `json:"nonce"`
	Provider string `json:"prov"`
	jwt.RegisteredClaims
}

func GenerateStateToken(secret string, provider string, ttl time.Duration) (token string, nonce string, err error) {
	nonce, err = RandomToken(16)
	if err != nil {
		return "", "", err
	}
	now := time.Now()
	claims := StateClaims{
		Nonce:    nonce,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nonce, nil
}

// ParseStateToken validates the state returned by the provider against the
// nonce stored in the browser cookie.
func ParseStateToken(secret string, tokenStr string, nonce string) (*StateClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || nonce == "" || claims.Nonce != nonce {
		return nil, ErrInvalidState
	}
	return claims, nil
}

// RandomToken returns length random bytes, base64url encoded.
func RandomToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateResetToken returns the token mailed to the user and the digest that
// is stored; the plain token is never persisted.
func GenerateResetToken() (string, []byte, error) {
	token, err := RandomToken(32)
	if err != nil {
		return "", nil, err
	}
	return token, HashResetToken(token), nil
}

func HashResetToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
