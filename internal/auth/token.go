package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// TokenType distinguishes what a signed token authorizes.
type TokenType string

// Token types issued by the portal.
const (
	TokenTypeSession       TokenType = "session"
	TokenTypePasswordReset TokenType = "password_reset"
)

const (
	// DefaultSessionTTL applies when TokenConfig.DefaultTTL is unset.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// PasswordResetTTL is fixed for every reset token.
	PasswordResetTTL = time.Hour
	// MinSecretLength is the minimum HS256 key size in bytes.
	MinSecretLength = 32
)

var (
	// ErrTokenExpired is returned for an authentic token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for any malformed, forged or otherwise unusable token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("token signing secret too short")
)

// Claims carried by portal tokens. The user id is the JWT subject.
type Claims struct {
	Email string    `json:"email"`
	Type  TokenType `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenConfig is fixed at construction; rotating Secret invalidates every issued token.
type TokenConfig struct {
	Secret     []byte
	DefaultTTL time.Duration
	Issuer     string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// TokenService signs and verifies HS256 JWTs.
type TokenService struct {
	secret     []byte
	defaultTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenService validates cfg and returns a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLength)
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenService{
		secret:     secret,
		defaultTTL: cfg.DefaultTTL,
		issuer:     cfg.Issuer,
		now:        cfg.Now,
	}, nil
}

// Sign encodes claims with issued-at and expiry. A ttl <= 0 uses the default ttl.
func (s *TokenService) Sign(claims Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = ulid.Make().String()
	if s.issuer != "" {
		claims.Issuer = s.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssueSession signs a session token with the default ttl.
func (s *TokenService) IssueSession(userID, email string) (string, error) {
	return s.Sign(Claims{
		Email:            email,
		Type:             TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, 0)
}

// IssuePasswordReset signs a one-hour password reset token.
func (s *TokenService) IssuePasswordReset(userID, email string) (string, error) {
	return s.Sign(Claims{
		Email:            email,
		Type:             TokenTypePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, PasswordResetTTL)
}

// Verify checks the signature and expiry of raw and returns its claims.
// The error is ErrTokenExpired or ErrTokenInvalid.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}

	parser := jwt.NewParser(options...)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
