// Package identity turns id tokens from the identity provider into a stable
// user id. Everything else about authentication happens outside this
// module.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAbsent means no user is logged in.
var ErrAbsent = errors.New("no authenticated user")

// Source supplies the current user id or ErrAbsent.
type Source interface {
	UserID(ctx context.Context) (string, error)
}

// Verifier checks HS256 id tokens signed with a shared key.
type Verifier struct {
	key    []byte
	issuer string
}

func NewVerifier(signingKey, issuer string) (*Verifier, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("identity signing key is required")
	}
	return &Verifier{key: []byte(signingKey), issuer: issuer}, nil
}

// Verify parses token and returns its subject. Expired tokens, tokens from
// another issuer and tokens without a subject are rejected.
func (v *Verifier) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("verifying id token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("verifying id token: missing subject")
	}
	return claims.Subject, nil
}

// Issue mints a token for subject valid for ttl. Used for local tooling and
// tests; production tokens come from the identity provider.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// Session is the login/logout lifecycle for a single local user, as used by
// the MCP server and other long-lived single-user processes.
type Session struct {
	verifier *Verifier

	mu     sync.RWMutex
	userID string
}

func NewSession(v *Verifier) *Session {
	return &Session{verifier: v}
}

// Login verifies token and makes its subject the current user.
func (s *Session) Login(token string) (string, error) {
	uid, err := s.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.userID = uid
	s.mu.Unlock()
	return uid, nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
}

func (s *Session) UserID(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return "", ErrAbsent
	}
	return s.userID, nil
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// FromContext is the request-scoped Source: it reads the user stored by
// WithUser.
var FromContext Source = contextSource{}

type contextSource struct{}

func (contextSource) UserID(ctx context.Context) (string, error) {
	uid, _ := ctx.Value(ctxKey{}).(string)
	if uid == "" {
		return "", ErrAbsent
	}
	return uid, nil
}
