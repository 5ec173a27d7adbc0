package service

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Password length limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validPassword(password string) bool {
	n := len([]rune(password))
	return n >= MinPasswordLength && n <= MaxPasswordLength
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}
