// Package jwt is the token engine: it builds payloads in two steps (draft, then
// finalize per token kind), signs and verifies them with HS256, and consults an
// optional blacklist while decoding.
//
// Access and refresh tokens use independent keys and lifetimes. A refresh token
// therefore never verifies as an access token and vice versa.
//
// # What this package must NOT do
//
//   - Import tokenauth, revocation or storage. The blacklist is injected through [Blacklist].
//   - Look up users or interpret the subject claims beyond carrying them.
package jwt
