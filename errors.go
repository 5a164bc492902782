package tokenauth

import (
	"errors"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/validation"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrAuth is matched by every *AuthError.
	ErrAuth = errors.New("authentication failed")
	// ErrToken is matched by every *TokenError.
	ErrToken = jwt.ErrToken
	// ErrUnauthorized is matched by every *UnauthorizedError.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRecordNotFound is returned by Repository lookups that match nothing.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNotConfigured reports a missing optional dependency such as the cipher.
	ErrNotConfigured = errors.New("dependency not configured")
	// ErrTooManyAttempts is wrapped by the AuthError of a throttled login.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// TokenError reports token encode, decode and revocation failures.
type TokenError = jwt.TokenError

// JWTError is the name the revoke and logout operations document for TokenError.
type JWTError = jwt.TokenError

// ValidationError carries per-field messages, or a single Message when the
// failure is not tied to one field.
type ValidationError struct {
	Message string
	Fields  validation.Errors
}

func newValidationError(fields validation.Errors) *ValidationError {
	return &ValidationError{Message: "The given data was invalid.", Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + " " + e.Fields.Error()
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AuthError reports a rejected authentication step: bad refresh token, bad
// reset token, wrong old password, misconfiguration.
type AuthError struct {
	Message string
	Err     error
}

func newAuthError(message string, cause error) *AuthError {
	return &AuthError{Message: message, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is makes every AuthError match ErrAuth.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// UnauthorizedError is returned by Authenticate when no valid bearer token is present.
type UnauthorizedError struct {
	Message string
	Err     error
}

func (e *UnauthorizedError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UnauthorizedError) Unwrap() error { return e.Err }

// Is makes every UnauthorizedError match ErrUnauthorized.
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// PublicMessage returns the client-safe message of a tokenauth error, or
// fallback for anything else.
func PublicMessage(err error, fallback string) string {
	var (
		ve *ValidationError
		ae *AuthError
		te *TokenError
		ue *UnauthorizedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return ae.Message
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &te):
		return te.Message
	case errors.As(err, &ue):
		return ue.Message
	default:
		return fallback
	}
}

// asAuthError keeps an existing AuthError and wraps anything else, carrying
// over the public message of typed errors.
func asAuthError(err error, fallback string) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return newAuthError(PublicMessage(err, fallback), err)
}
