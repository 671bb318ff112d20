// Package auth resolves the authenticated Principal behind each request.
// Tokens are HS256 JWTs minted by the identity service; this package only
// verifies them and extracts the subject, role, and plan. Every component
// below the HTTP layer receives the resolved Principal and never trusts
// caller-supplied ids.
package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

const defaultLeeway = 30 * time.Second

var (
	// ErrNoCredential indicates the request carried no bearer token.
	ErrNoCredential = errors.New("missing bearer credential")

	// ErrTokenExpired indicates the token was valid once but is past its
	// validity window.
	ErrTokenExpired = errors.New("session expired")

	// ErrTokenInvalid indicates a malformed, unsigned, or tampered token.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the JWT payload minted by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
	Plan string `json:"plan,omitempty"`
}

// Verifier validates bearer tokens with a shared HS256 secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
}

// NewVerifier builds a verifier for the given shared secret.
func NewVerifier(secret string, leeway time.Duration) *Verifier {
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &Verifier{secret: []byte(secret), leeway: leeway}
}

// Verify parses and validates token and returns the resolved Principal.
func (v *Verifier) Verify(token string) (domain.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrTokenExpired
		}
		return domain.Principal{}, ErrTokenInvalid
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return domain.Principal{}, ErrTokenInvalid
	}

	p := domain.Principal{
		ID:   subject,
		Role: domain.Role(claims.Role),
		Plan: domain.Plan(claims.Plan),
	}
	if p.Role == "" {
		p.Role = domain.RoleUser
	}
	if p.Plan == "" {
		p.Plan = domain.PlanBasic
	}
	return p, nil
}

// Mint signs a token for p valid for ttl. Used by tests and local tooling;
// production tokens come from the identity service.
func (v *Verifier) Mint(p domain.Principal, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(p.Role),
		Plan: string(p.Plan),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
