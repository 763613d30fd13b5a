package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "bazaar-console"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// Codec signs and verifies session cookies. The cookie is an HS256 JWT whose
// jti is the session id; it carries nothing else of value.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec with the given signing secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session: secret must be at least %d bytes", MinSecretLength)
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Encode returns the signed cookie value for s.
func (c *Codec) Encode(s Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   s.SubjectID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(c.now()),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies value and returns the session id it names.
func (c *Codec) Decode(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session: token has no session id")
	}
	return claims.ID, nil
}

// describeError turns a verification failure into a message safe to show.
func describeError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Session expired"
	case strings.Contains(err.Error(), "signing method"):
		return "Disallowed signing algorithm"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Invalid session signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "Invalid session issuer"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Malformed session token"
	default:
		return "Invalid session"
	}
}
