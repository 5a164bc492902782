// Package middleware exposes HTTP adapters for tokenauth.
//
// # Guards
//
//   - [Guard]: net/http bearer-token guard over any [Authenticator].
//   - [GinGuard]: the same check as a gin handler.
//   - [Sessions] and [RequireUser]: load the session named by a cookie and
//     reject anonymous sessions.
//
// Guards delegate every decision to the authenticator or the session store;
// they never parse tokens themselves.
package middleware
