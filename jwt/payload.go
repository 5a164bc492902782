package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind selects the key and lifetime used for a token.
type Kind int

const (
	// Access tokens authenticate API calls.
	Access Kind = iota
	// Refresh tokens mint new access tokens.
	Refresh
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Draft is the kind-independent half of a payload. Finalizing one draft for
// both kinds yields an access and a refresh payload sharing iat and jti.
type Draft struct {
	Sub map[string]any
	Iat int64
	Jti string
}

// Payload is the claim set carried by every token.
type Payload struct {
	Sub map[string]any `json:"sub"`
	Iat int64          `json:"iat"`
	Exp int64          `json:"exp"`
	Jti string         `json:"jti"`
}

// ExpiresAt returns exp as a time value.
func (p Payload) ExpiresAt() time.Time { return time.Unix(p.Exp, 0) }

// Expired reports whether exp is not after now.
func (p Payload) Expired(now time.Time) bool { return p.Exp <= now.Unix() }

// SecondsLeft returns the whole seconds until exp, or zero once expired.
func (p Payload) SecondsLeft(now time.Time) int64 {
	left := p.Exp - now.Unix()
	if left < 0 {
		return 0
	}
	return left
}

// GetExpirationTime implements jwt.Claims.
func (p Payload) GetExpirationTime() (*jwt.NumericDate, error) {
	if p.Exp == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(p.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims.
func (p Payload) GetIssuedAt() (*jwt.NumericDate, error) {
	if p.Iat == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(p.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims.
func (p Payload) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

// GetIssuer implements jwt.Claims.
func (p Payload) GetIssuer() (string, error) { return "", nil }

// GetSubject implements jwt.Claims. The subject here is a claim map, not a string.
func (p Payload) GetSubject() (string, error) { return "", nil }

// GetAudience implements jwt.Claims.
func (p Payload) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }
