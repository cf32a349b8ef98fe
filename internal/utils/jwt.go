package utils // package utils provides token, csrf and password helpers

import (
	"crypto/sha256" // SHA-256 hashing for refresh tokens
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned by VerifyToken when the signature is good
	// but the exp claim is in the past.  Callers treat it differently from
	// ErrTokenInvalid (an expired access token may still be refreshed).
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: empty input,
	// malformed encoding, wrong secret, tampered payload or foreign algorithm.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims is the claim set shared by every token class.  Access tokens
// carry all fields, refresh tokens leave CSRFHMAC empty and single purpose
// tokens (email verification, password setup) only carry the user id.
type TokenClaims struct {
	UserID   uint64 `json:"id"`
	Role     string `json:"role,omitempty"`
	RoleID   uint64 `json:"roleId,omitempty"`
	CSRFHMAC string `json:"csrf_hmac,omitempty"`
	jwt.RegisteredClaims
}

// SignedToken represents a signed JWT along with its expiry.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// IssueToken signs claims with HS256 using secret.  Issued-at, expiry and a
// random token id are filled in here, so two tokens minted in the same second
// for the same user still differ.
func IssueToken(claims TokenClaims, secret string, ttl time.Duration) (SignedToken, error) {
	if secret == "" {
		return SignedToken{}, errors.New("empty signing secret")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyToken parses raw and checks its signature against secret.  The
// result is either the decoded claims, ErrTokenExpired or ErrTokenInvalid.
func VerifyToken(raw, secret string) (*TokenClaims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	claims := &TokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string.  Only this digest is stored so a leaked table cannot be replayed.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
