// Package revocation keeps the state needed to revoke stateless tokens.
//
// [Blacklist] stores revoked token ids until the token would have expired anyway.
// [TokenMapper] links an access token id to the refresh token issued with it,
// so revoking the access token can also revoke its refresh token.
//
// Both are thin layers over [storage.Storage] and add no locking of their own.
package revocation
