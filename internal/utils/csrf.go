package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// CSRFBinder derives the keyed digest that ties a readable CSRF token to the
// access token it was issued with.  The digest is embedded in the access
// token, so no server side session is needed to validate the pair.
type CSRFBinder struct {
	secret []byte
}

func NewCSRFBinder(secret string) *CSRFBinder {
	return &CSRFBinder{secret: []byte(secret)}
}

// Digest returns hex(HMAC-SHA256(secret, token)).
func (b *CSRFBinder) Digest(token string) string {
	mac := hmac.New(sha256.New, b.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether digest belongs to token.  The comparison runs in
// constant time.
func (b *CSRFBinder) Matches(token, digest string) bool {
	if token == "" || digest == "" {
		return false
	}
	return hmac.Equal([]byte(b.Digest(token)), []byte(digest))
}

// NewCSRFToken returns a fresh random CSRF token.
func NewCSRFToken() string {
	return uuid.NewString()
}
