// Package auth issues and verifies bearer tokens for business users and
// clinic patients and turns them into a domain.Principal.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bizassist/internal/domain"
)

var (
	ErrNoSecret      = errors.New("auth: signing secret not configured")
	ErrTokenExpired  = errors.New("auth: token expired")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrMissingClaims = errors.New("auth: token is missing required claims")
)

// UserClaims are carried by business-user tokens.
type UserClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// PatientClaims are carried by patient session tokens.
type PatientClaims struct {
	PatientID string `json:"patientId"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens for one principal kind.
type Tokens struct {
	kind   domain.PrincipalKind
	secret []byte
	now    func() time.Time
}

// NewUserTokens returns the token service for tenant-scoped users.
func NewUserTokens(secret string) *Tokens {
	return &Tokens{kind: domain.KindUser, secret: []byte(secret), now: time.Now}
}

// NewPatientTokens returns the token service for patients.
func NewPatientTokens(secret string) *Tokens {
	return &Tokens{kind: domain.KindPatient, secret: []byte(secret), now: time.Now}
}

func (t *Tokens) Kind() domain.PrincipalKind { return t.kind }

// Configured reports whether a signing secret is set.
func (t *Tokens) Configured() bool { return len(t.secret) > 0 }

// Issue signs a token for p that expires after ttl.
func (t *Tokens) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	if !t.Configured() {
		return "", ErrNoSecret
	}
	now := t.now()
	registered := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	var claims jwt.Claims
	switch t.kind {
	case domain.KindPatient:
		claims = PatientClaims{PatientID: p.Scope, Email: p.Email, RegisteredClaims: registered}
	default:
		claims = UserClaims{UserID: p.ID, Email: p.Email, TenantID: p.Scope, Role: p.Role, RegisteredClaims: registered}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks the signature and expiry of raw and returns its principal.
func (t *Tokens) Verify(raw string) (domain.Principal, error) {
	if !t.Configured() {
		return domain.Principal{}, ErrNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	keyFunc := func(*jwt.Token) (any, error) { return t.secret, nil }

	if t.kind == domain.KindPatient {
		var c PatientClaims
		if _, err := parser.ParseWithClaims(raw, &c, keyFunc); err != nil {
			return domain.Principal{}, mapParseError(err)
		}
		if c.PatientID == "" || c.Email == "" {
			return domain.Principal{}, ErrMissingClaims
		}
		return domain.Principal{ID: c.PatientID, Scope: c.PatientID, Email: c.Email, Kind: domain.KindPatient}, nil
	}

	var c UserClaims
	if _, err := parser.ParseWithClaims(raw, &c, keyFunc); err != nil {
		return domain.Principal{}, mapParseError(err)
	}
	if c.UserID == "" || c.TenantID == "" {
		return domain.Principal{}, ErrMissingClaims
	}
	return domain.Principal{ID: c.UserID, Scope: c.TenantID, Role: c.Role, Email: c.Email, Kind: domain.KindUser}, nil
}

func mapParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
