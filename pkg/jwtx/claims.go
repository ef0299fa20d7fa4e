package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication Methods Reference values carried in the amr claim.
const (
	AMRPassword = "pwd" // password sign-in
	AMROTP      = "otp" // authenticator app code
	AMRRecovery = "rec" // one-time recovery code
	AMRMFA      = "mfa" // any second factor was presented
)

var (
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrMissingSID   = errors.New("jwtx: missing session id")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Claims are the session access-token claims. Every token is bound to a
// server-side session through SID so revocation takes effect immediately.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID
	SID string `json:"sid"`

	// Authentication Methods Reference ["pwd","otp","mfa"]
	AMR []string `json:"amr,omitempty"`

	Email string `json:"email,omitempty"`
}

// NewSessionClaims builds claims for a freshly issued session.
func NewSessionClaims(subject, sid, email, issuer string, amr []string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		AMR:   amr,
		Email: email,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasAMR reports whether method is listed in the amr claim.
func (c *Claims) HasAMR(method string) bool {
	return slices.Contains(c.AMR, method)
}

// Validate checks issuer, expiry (with leeway) and the session binding.
func (c *Claims) Validate(issuer string, leeway time.Duration, now time.Time) error {
	if issuer != "" && c.Issuer != issuer {
		return ErrIssuer
	}
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	if c.Subject == "" {
		return ErrInvalidClaim
	}
	if c.SID == "" {
		return ErrMissingSID
	}
	return nil
}
