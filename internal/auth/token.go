package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "course-portal"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims represents the JWT claims of a portal session.
type Claims struct {
	Role  Role   `json:"role"`
	Email string `json:"email"`
	ERP   string `json:"erp,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		Email:   c.Email,
		Role:    c.Role,
		ERP:     c.ERP,
		Name:    c.Name,
		TokenID: c.ID,
	}
}

// Tokens issues and verifies HS256 session tokens. Sign-out revokes a token
// by jti until it would have expired anyway.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be greater than zero")
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		revoked: make(map[string]time.Time),
	}, nil
}

// Generate signs a token for id and returns it with its expiry.
func (t *Tokens) Generate(id Identity) (string, time.Time, error) {
	subject := id.ERP
	if subject == "" {
		subject = id.Email
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("identity has no subject")
	}

	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		Role:  id.Role,
		Email: id.Email,
		ERP:   id.ERP,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies the signature, expiry and revocation state of a token.
func (t *Tokens) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	switch claims.Role {
	case RoleStudent, RoleTA:
	default:
		return nil, ErrInvalidToken
	}
	if t.isRevoked(claims.ID) {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke invalidates the token with the given jti.
func (t *Tokens) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, id)
		}
	}
	t.revoked[jti] = expiresAt
}

func (t *Tokens) isRevoked(jti string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.revoked[jti]
	return ok
}

// TTL is the lifetime of newly issued tokens.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}
