package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// JWTManager issues and validates session tokens for signed-in users. A
// session token only carries the user's email; plan and quota state always
// come from the database so an upgrade takes effect without re-login.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type SessionClaims struct {
	Email     string
	ExpiresAt time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *JWTManager) IssueSessionToken(email string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", time.Time{}, fmt.Errorf("invalid session token payload")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}

	return signed, expiresAt, nil
}

func (m *JWTManager) ParseSessionToken(raw string) (SessionClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return SessionClaims{}, ErrUnauthorized
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || token == nil || !token.Valid {
		return SessionClaims{}, ErrUnauthorized
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(claims.Subject))
	}
	if email == "" || claims.ExpiresAt == nil {
		return SessionClaims{}, ErrUnauthorized
	}

	return SessionClaims{
		Email:     email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
