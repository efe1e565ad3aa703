package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates expiring document download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a token granting access to fileName until the returned expiry.
func (s *SignedURLSigner) Generate(fileName string) (string, time.Time, error) {
	if fileName == "" {
		return "", time.Time{}, fmt.Errorf("file name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(fileName))
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{encoded, exp, s.sign(encoded, exp)}, ".")
	return token, expiresAt, nil
}

// Verify checks that token is valid, unexpired and issued for fileName.
func (s *SignedURLSigner) Verify(token, fileName string) error {
	name, _, err := s.Parse(token)
	if err != nil {
		return err
	}
	if name != fileName {
		return fmt.Errorf("token issued for another file")
	}
	return nil
}

// Parse validates a token and returns the file it was issued for.
func (s *SignedURLSigner) Parse(token string) (string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, fmt.Errorf("invalid token format")
	}
	encoded, exp, signature := parts[0], parts[1], parts[2]

	if !hmac.Equal([]byte(s.sign(encoded, exp)), []byte(signature)) {
		return "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt := time.Unix(expUnix, 0)
	if time.Now().After(expiresAt) {
		return "", time.Time{}, fmt.Errorf("token expired")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("decode file name: %w", err)
	}
	return string(raw), expiresAt, nil
}

func (s *SignedURLSigner) sign(encoded, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
