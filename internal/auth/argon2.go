// Package auth provides password hashing, signed tokens and API key generation.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id defaults (OWASP minimum is 19 MiB / t=2; we run above it).
const (
	DefaultArgon2Memory      = 64 * 1024 // KiB
	DefaultArgon2Iterations  = 3
	DefaultArgon2Parallelism = 4

	argon2KeyLen  = 32
	argon2SaltLen = 16

	// Upper bounds accepted when decoding a stored digest.
	maxArgon2Memory      = 1024 * 1024
	maxArgon2Iterations  = 16
	maxArgon2Parallelism = 64
)

var (
	// ErrInvalidHash indicates the hash format is invalid.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion indicates the hash version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Argon2Params tunes the cost of new digests. Verification always uses
// the parameters encoded in the digest itself.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultArgon2Params returns the production hashing cost.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      DefaultArgon2Memory,
		Iterations:  DefaultArgon2Iterations,
		Parallelism: DefaultArgon2Parallelism,
	}
}

// Argon2Hasher hashes and verifies passwords as PHC-encoded argon2id strings.
// It is safe for concurrent use.
type Argon2Hasher struct {
	params Argon2Params
	dummy  string
}

// NewArgon2Hasher creates a hasher. Zero-valued params fall back to defaults.
func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	defaults := DefaultArgon2Params()
	if params.Memory == 0 {
		params.Memory = defaults.Memory
	}
	if params.Iterations == 0 {
		params.Iterations = defaults.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = defaults.Parallelism
	}

	h := &Argon2Hasher{params: params}

	dummy, err := h.Hash("partner-portal-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("compute dummy hash: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

// Hash returns a salted argon2id digest of password in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		argon2KeyLen,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest.
// A malformed or unsupported digest is a mismatch, never an error.
func (h *Argon2Hasher) Verify(password, digest string) bool {
	ok, err := VerifyPassword(password, digest)
	return err == nil && ok
}

// DummyHash returns a valid digest of an unguessable value. Login verifies
// against it when the account does not exist so both paths cost the same.
func (h *Argon2Hasher) DummyHash() string {
	return h.dummy
}

// VerifyPassword checks password against a PHC-encoded argon2id digest
// using constant-time comparison.
func VerifyPassword(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return false, ErrInvalidHash
	}

	if parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidHash
	}
	if version != argon2.Version {
		return false, ErrIncompatibleVersion
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, ErrInvalidHash
	}
	if memory == 0 || memory > maxArgon2Memory ||
		iterations == 0 || iterations > maxArgon2Iterations ||
		threads == 0 || threads > maxArgon2Parallelism {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false, ErrInvalidHash
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		iterations,
		memory,
		threads,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// QuickHash returns a SHA256 hash of the input for cache keys.
// This is NOT for password storage, only for cache key derivation.
func QuickHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}
