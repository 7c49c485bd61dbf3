// Package auth verifies bearer tokens and attaches the resulting principal to
// the request context.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"savings-intents-go/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims carried by session tokens. The subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 session tokens
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(cfg models.AuthConfig) (*Verifier, error) {
	if cfg.JwtSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{
		secret: []byte(cfg.JwtSecret),
		issuer: cfg.JwtIssuer,
		now:    time.Now,
	}, nil
}

// Verify parses a raw token and returns the principal it names
func (v *Verifier) Verify(tokenString string) (models.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return models.Principal{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return models.Principal{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}

	role := models.RoleUser
	switch strings.ToLower(claims.Role) {
	case "", string(models.RoleUser):
	case string(models.RoleAdmin):
		role = models.RoleAdmin
	default:
		return models.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return models.Principal{UserId: claims.Subject, Role: role}, nil
}

// Issue signs a token for the given principal. Used by seeding tools and tests.
func (v *Verifier) Issue(principal models.Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserId,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: expected Bearer scheme", ErrInvalidToken)
	}
	return strings.TrimSpace(token), nil
}
