package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken is returned for every verification failure. Expired,
// malformed, tampered and mismatched tokens are indistinguishable to the
// caller.
var ErrInvalidToken = fmt.Errorf("invalid token")

// TokenSigner issues and verifies stateless, time-bound access tokens bound
// to exactly one file identifier.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner constructs a signer with the provided secret and TTL.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue returns a signed token granting access to the given file until the
// returned expiry.
func (s *TokenSigner) Issue(fileID string) (string, time.Time, error) {
	if fileID == "" {
		return "", time.Time{}, fmt.Errorf("fileID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{fileID, ts, s.sign(fileID, ts)}, ".")
	return token, expiresAt, nil
}

// Verify checks the token and returns the embedded file identifier. It
// fails closed: every failure mode surfaces as ErrInvalidToken.
func (s *TokenSigner) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	fileID, ts, signature := parts[0], parts[1], parts[2]

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.sign(fileID, ts)), []byte(signature)) {
		return "", ErrInvalidToken
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return "", ErrInvalidToken
	}
	return fileID, nil
}

func (s *TokenSigner) sign(fileID, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
