package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidCredential is the only error the hasher reports.  Malformed
// hashes, parameter problems and wrong passwords all look the same to the
// caller.
var ErrInvalidCredential = errors.New("invalid credential")

const (
	argonSaltLen uint32 = 16
	argonKeyLen  uint32 = 32
	minArgonMem  uint32 = 8 * 1024
)

// PasswordHasher hashes and verifies passwords with argon2id.  Encoded
// hashes use the PHC string layout:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
//
// so that parameters can be raised later without invalidating stored hashes.
type PasswordHasher struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// NewPasswordHasher clamps the cost parameters to sane minimums.
func NewPasswordHasher(memoryKB, time uint32, parallelism uint8) *PasswordHasher {
	if memoryKB < minArgonMem {
		memoryKB = minArgonMem
	}
	if time < 1 {
		time = 1
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &PasswordHasher{memory: memoryKB, time: time, parallelism: parallelism}
}

// Hash returns the PHC encoded argon2id hash of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrInvalidCredential
	}
	salt := make([]byte, argonSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", ErrInvalidCredential
	}
	key := argon2.IDKey([]byte(plain), salt, h.time, h.memory, h.parallelism, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify checks plain against encoded.  It returns nil on a match and
// ErrInvalidCredential for everything else.
func (h *PasswordHasher) Verify(encoded, plain string) error {
	p, err := decodePHC(encoded)
	if err != nil {
		return ErrInvalidCredential
	}
	key := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	if subtle.ConstantTimeCompare(key, p.key) != 1 {
		return ErrInvalidCredential
	}
	return nil
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodePHC(encoded string) (phcParams, error) {
	var p phcParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, errors.New("not an argon2id hash")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, errors.New("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return p, errors.New("invalid argon2 parameters")
	}
	if p.memory < minArgonMem || p.time < 1 || p.parallelism < 1 {
		return p, errors.New("argon2 parameters out of range")
	}
	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) < 8 {
		return p, errors.New("invalid salt")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) < 16 {
		return p, errors.New("invalid key")
	}
	return p, nil
}
