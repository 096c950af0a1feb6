package services

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tower-qa/tower-qa/internal/models"
)

// TokenClaims are the claims of a personal access token.
type TokenClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// AuthService issues and verifies the bearer tokens of the fake controller.
type AuthService struct {
	controller *ControllerService
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewAuthService signs tokens with secret. An empty secret is replaced by a random one.
func NewAuthService(controller *ControllerService, secret string, ttl time.Duration) (*AuthService, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}
	return &AuthService{controller: controller, secret: key, ttl: ttl, now: time.Now}, nil
}

func (a *AuthService) Basic(username, password string) (*models.User, bool) {
	return a.controller.Authenticate(username, password)
}

// Issue creates a signed token for username.
func (a *AuthService) Issue(username, scope string) (string, time.Time, error) {
	if _, ok := a.controller.FindUser(username); !ok {
		return "", time.Time{}, fmt.Errorf("unknown user %q", username)
	}
	if scope == "" {
		scope = "write"
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    "towerqa",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses token and returns the user it was issued to.
func (a *AuthService) Verify(token string) (*models.User, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("towerqa"),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	u, ok := a.controller.FindUser(claims.Subject)
	if !ok {
		return nil, fmt.Errorf("token subject %q no longer exists", claims.Subject)
	}
	u.Token = token
	return u, nil
}
