// Package tokenauth provides pluggable authentication services over a user
// Repository: a stateless JWT variant with access and refresh tokens, and a
// session variant driven by a StatefulGuard.
//
// Both services are assembled with [Builder] and are safe to call from
// multiple goroutines when the injected Repository, storage and guard are.
//
// # Token lifecycle
//
// [JWTService.Login] issues an HS256 access token and a refresh token that
// share one jti. The access jti is mapped to the refresh token in storage so
// that [JWTService.Revoke] and [JWTService.Logout] can blacklist both.
// [JWTService.Refresh] mints a new access token and returns the presented
// refresh token unchanged.
//
// # Errors
//
// Failures are typed: *ValidationError, *AuthError, *TokenError (also named
// JWTError) and *UnauthorizedError. Each matches its sentinel with errors.Is
// and [PublicMessage] extracts the client-safe text.
//
// # Sub-packages
//
//   - jwt: token engine
//   - revocation: blacklist and token mapper
//   - storage: key/value adapter contract and Redis adapter
//   - password, crypt, validation: hashing, reset-token cipher, input rules
//   - session: Redis-backed StatefulGuard
//   - middleware: net/http and gin guards
//   - repository/...: SQL, PostgreSQL and MongoDB repositories
package tokenauth
