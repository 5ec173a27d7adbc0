package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Key format: ppk_{secret}
// Example: ppk_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	APIKeyPrefix   = "ppk_"
	apiKeySecretSz = 32 // random bytes, hex encoded to 64 chars
)

var (
	// ErrInvalidKeyFormat indicates the key format is invalid.
	ErrInvalidKeyFormat = errors.New("invalid API key format")

	keyFormatRegex = regexp.MustCompile(`^ppk_[a-f0-9]{64}$`)
)

// GenerateAPIKey returns a fresh integration API key drawn from crypto/rand.
func GenerateAPIKey() (string, error) {
	secret := make([]byte, apiKeySecretSz)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(secret), nil
}

// ValidateKeyFormat checks if the key matches the expected format.
func ValidateKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}

// MaskAPIKey returns a log-safe rendition of key: prefix plus the last four characters.
func MaskAPIKey(key string) string {
	if len(key) <= len(APIKeyPrefix)+4 {
		return APIKeyPrefix + "****"
	}
	return APIKeyPrefix + "…" + key[len(key)-4:]
}
