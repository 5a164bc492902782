// Package password hashes and verifies user passwords.
//
// [Argon2] writes PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] writes standard $2a$/$2b$ hashes, which keeps hashes produced by other
// stacks verifiable. [Chain] hashes with its first hasher and verifies with
// whichever hasher recognises the stored format.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy. Complexity rules live in the validation package.
//   - Log plaintext passwords.
package password
