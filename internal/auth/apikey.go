// internal/auth/apikey.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APIKeyType represents the type of API key
type APIKeyType string

const (
	APIKeyAnon        APIKeyType = "anon"
	APIKeyServiceRole APIKeyType = "service_role"
)

// Issuer is the iss claim of every key this package signs.
const Issuer = "logwatch"

// ErrEmptySecret is returned when a Service is used without a signing secret.
var ErrEmptySecret = errors.New("jwt secret is empty")

// Service signs and validates admin API keys.
type Service struct {
	jwtSecret string
}

// NewService creates a key service using secret for HS256 signatures.
func NewService(jwtSecret string) *Service {
	return &Service{jwtSecret: jwtSecret}
}

// GenerateAPIKey creates a JWT API key with role claim, no expiration
func (s *Service) GenerateAPIKey(keyType APIKeyType) (string, error) {
	if s.jwtSecret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"role": string(keyType),
		"iss":  Issuer,
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateAPIKey validates a JWT API key and returns the role
func (s *Service) ValidateAPIKey(tokenString string) (role APIKeyType, err error) {
	if s.jwtSecret == "" {
		return "", ErrEmptySecret
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithIssuer(Issuer))

	if err != nil {
		return "", fmt.Errorf("invalid API key: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid API key claims")
	}

	r, ok := claims["role"].(string)
	if !ok {
		return "", fmt.Errorf("API key missing role claim")
	}

	// Validate role is one of the expected values
	switch APIKeyType(r) {
	case APIKeyAnon, APIKeyServiceRole:
		return APIKeyType(r), nil
	}
	return "", fmt.Errorf("invalid API key role: %s", r)
}

// CanWrite reports whether keys of this type may change logging state.
func (t APIKeyType) CanWrite() bool {
	return t == APIKeyServiceRole
}

// GenerateSecret returns a random base64url secret suitable for signing keys.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
