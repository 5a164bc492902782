// Package internal contains helper utilities that are private to tokenauth.
//
// # Sub-packages
//
//   - obs: zap logger construction for binaries and examples
//   - rate: Redis fixed-window counter behind login throttling
//   - sqlquery: SQL statement builder shared by the database/sql and pgx repositories
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokenauth API.
//   - Be imported by any package outside the tokenauth module.
package internal
