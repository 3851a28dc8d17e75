// ABOUTME: JWT access/refresh token issuing, verification, and unverified inspection
// ABOUTME: HS256 signing; the client side only reads claims to report expiry

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWrongKind    = errors.New("wrong token kind")
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims are the JWT claims used by the chat backend.
type Claims struct {
	Kind string `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is what the client can learn from a token without the secret.
type TokenInfo struct {
	Subject   string
	Kind      string
	ExpiresAt time.Time // zero when the token has no exp claim
}

// Expired reports whether the token's exp claim is at or before now.
// Tokens without exp never expire.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect decodes a token's claims without verifying its signature.
func Inspect(tokenString string) (TokenInfo, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return TokenInfo{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	info := TokenInfo{Subject: claims.Subject, Kind: claims.Kind}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Issuer signs and verifies HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an issuer with the given secret.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret, now: time.Now}
}

// Generate creates a token of the given kind for subject, valid for expiresIn.
func (i *Issuer) Generate(subject, kind string, expiresIn time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify validates the signature, expiry, and kind of a token and returns
// its subject.
func (i *Issuer) Verify(tokenString, kind string) (string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if claims.Kind != kind {
		return "", fmt.Errorf("%w: got %q, want %q", ErrWrongKind, claims.Kind, kind)
	}
	return claims.Subject, nil
}
