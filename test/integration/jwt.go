package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionIssuer matches the issuer the console stamps on session cookies.
const sessionIssuer = "bazaar-console"

// ForgedSession describes a hand-built session cookie.
type ForgedSession struct {
	SessionID string
	SubjectID string
	Issuer    string
	ExpiresAt time.Time
}

func (f ForgedSession) claims() jwt.RegisteredClaims {
	id := f.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	iss := f.Issuer
	if iss == "" {
		iss = sessionIssuer
	}
	exp := f.ExpiresAt
	if exp.IsZero() {
		exp = time.Now().Add(time.Hour)
	}
	return jwt.RegisteredClaims{
		ID:        id,
		Subject:   f.SubjectID,
		Issuer:    iss,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// SignHS256 signs the cookie with secret.
func (f ForgedSession) SignHS256(t *testing.T, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, f.claims()).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign forged session: %v", err)
	}
	return s
}

// SignRS256 signs the cookie with a fresh RSA key, an algorithm the console
// never issues.
func (f ForgedSession) SignRS256(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims()).SignedString(key)
	if err != nil {
		t.Fatalf("sign forged session: %v", err)
	}
	return s
}

// SignNone returns an unsigned cookie.
func (f ForgedSession) SignNone(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, f.claims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign forged session: %v", err)
	}
	return s
}
