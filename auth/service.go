package auth

import (
	"fmt"
	"slices"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/vaultflow/errors"
)

// Scopes carried by admin tokens.
const (
	ScopeRead    = "jobs:read"
	ScopeTrigger = "jobs:trigger"
)

// DefaultScopes are granted when Generate is called without scopes.
var DefaultScopes = []string{ScopeRead, ScopeTrigger}

// Claims are the admin token claims.
type Claims struct {
	gojwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// Service signs and verifies admin tokens.
type Service struct {
	cfg Config
	now func() time.Time
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Configuration("auth", err.Error())
	}
	return &Service{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of s that reads time from now. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Generate signs a token for subject that expires after ttl, or the
// configured TokenTTL when ttl <= 0.
func (s *Service) Generate(subject string, ttl time.Duration, scopes ...string) (string, error) {
	if subject == "" {
		return "", apperrors.InvalidInput("subject", "subject is required")
	}
	if ttl <= 0 {
		ttl = s.cfg.TokenTTL
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: slices.Clone(scopes),
	}
	signed, err := gojwt.NewWithClaims(s.cfg.signingMethod(), claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer of token. Failures are
// reported as UNAUTHORIZED errors.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, s.keyFunc,
		gojwt.WithValidMethods([]string{s.cfg.signingMethod().Alg()}),
		gojwt.WithIssuer(s.cfg.Issuer),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token").WithCause(err)
	}
	if !parsed.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}

func (s *Service) keyFunc(token *gojwt.Token) (any, error) {
	if token.Method.Alg() != s.cfg.signingMethod().Alg() {
		return nil, fmt.Errorf("auth: unexpected signing method: %s", token.Method.Alg())
	}
	return []byte(s.cfg.Secret), nil
}
