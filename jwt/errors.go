package jwt

import (
	"errors"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrToken is the sentinel every *TokenError matches with errors.Is.
	ErrToken = errors.New("token error")
	// ErrBlacklisted is wrapped by the TokenError returned for revoked tokens.
	ErrBlacklisted = errors.New("token has been blacklisted")
	// ErrBlacklistDisabled is wrapped when Invalidate runs without a blacklist.
	ErrBlacklistDisabled = errors.New("blacklist is not enabled")
	// ErrKeyNotConfigured is wrapped when the key for a token kind is empty.
	ErrKeyNotConfigured = errors.New("signing key is not configured")
)

// TokenError reports an encode, decode or revocation failure.
//
// Message is safe to show to clients. Err keeps the underlying cause.
type TokenError struct {
	Message string
	Err     error
}

// NewTokenError returns a TokenError carrying message and cause.
func NewTokenError(message string, cause error) *TokenError {
	return &TokenError{Message: message, Err: cause}
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is makes every TokenError match ErrToken.
func (e *TokenError) Is(target error) bool { return target == ErrToken }

// ErrExpired is wrapped by Decode when a token is past its exp.
var ErrExpired = gjwt.ErrTokenExpired
