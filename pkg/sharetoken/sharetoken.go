// Package sharetoken signs read-only document share links as HS256 JWTs.
package sharetoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "studygen-api"

// ErrInvalid is returned for tokens that are malformed, forged or expired.
var ErrInvalid = errors.New("invalid share token")

// Claims identify the shared document.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const scopeRead = "document:read"

// Signer issues and verifies share tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token for documentID and its expiry.
func (s *Signer) Sign(documentID string) (string, time.Time, error) {
	if documentID == "" {
		return "", time.Time{}, fmt.Errorf("document id required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &Claims{
		Scope: scopeRead,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   documentID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign share token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Verify returns the document id carried by token.
func (s *Signer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", errors.Join(ErrInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Scope != scopeRead || claims.Subject == "" {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}
