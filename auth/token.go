// Package auth issues and verifies session tokens and digests passwords.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeyLength is the length of generated signing keys.
const KeyLength = 32

const keyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var (
	// ErrEmptyKey is returned when a service is created without a key.
	ErrEmptyKey = errors.New("auth: signing key is empty")
	// ErrInvalidToken matches every verification failure.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Subject identifies who a token is issued to.
type Subject struct {
	Address  string
	Username string
}

// Claims is the token payload.
type Claims struct {
	Address  string `json:"ip"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Owner returns the address and username carried by the token.
func (c *Claims) Owner() Subject {
	return Subject{Address: c.Address, Username: c.Username}
}

// TokenService signs HS256 tokens with a fixed issuer and lifetime.
type TokenService struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option adjusts a TokenService.
type Option func(*TokenService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a service signing with key.
func NewTokenService(key, issuer string, ttl time.Duration, opts ...Option) (*TokenService, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: ttl must be positive, got %s", ttl)
	}
	s := &TokenService{
		key:    []byte(key),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for sub valid from now for the service TTL.
func (s *TokenService) Issue(sub Subject) (string, error) {
	now := s.now()
	claims := Claims{
		Address:  sub.Address,
		Username: sub.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and validity window, and
// returns the claims. Every failure wraps ErrInvalidToken.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// GenerateKey returns n characters drawn uniformly from [A-Za-z0-9-_].
func GenerateKey(n int) (string, error) {
	max := big.NewInt(int64(len(keyCharset)))
	key := make([]byte, n)
	for i := range key {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("auth: generate key: %w", err)
		}
		key[i] = keyCharset[idx.Int64()]
	}
	return string(key), nil
}

// Digest returns the lowercase hex SHA-256 of password.
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
