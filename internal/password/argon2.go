// Package password hashes and verifies credentials with argon2id using
// the standard PHC string encoding.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	memoryKiB   uint32 = 64 * 1024
	timeCost    uint32 = 2
	parallelism uint8  = 2
	saltLength         = 16
	keyLength   uint32 = 32

	// MinLength is the minimum accepted password length in bytes.
	MinLength = 8
)

var ErrTooShort = fmt.Errorf("password must be at least %d characters", MinLength)

// Hasher derives and verifies argon2id password hashes.
type Hasher struct{}

func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash derives an encoded hash from the password. Verification cost is
// bounded by the fixed parameters above; callers enforce exactly one
// verification per request.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, timeCost, memoryKiB, parallelism, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, timeCost, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether the password matches the encoded hash. The
// comparison is constant-time.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	var (
		version          int
		mem, t           uint32
		par              uint8
		saltB64, hashB64 string
	)

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, errors.New("invalid password hash format")
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errors.New("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &t, &par); err != nil {
		return false, errors.New("invalid argon2 parameters")
	}
	saltB64, hashB64 = parts[4], parts[5]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, errors.New("invalid salt encoding")
	}
	want, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, errors.New("invalid hash encoding")
	}

	got := argon2.IDKey([]byte(password), salt, t, mem, par, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
