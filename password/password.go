package password

import "errors"

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrUnsupportedHash is returned when a stored hash has a format the hasher does not handle.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
)

// Hasher hashes passwords and checks plaintext against stored hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	// Recognizes reports whether encodedHash is in this hasher's format.
	Recognizes(encodedHash string) bool
}

// Chain hashes with the first hasher and verifies with the first one that
// recognizes the stored hash.
type Chain struct {
	hashers []Hasher
}

// NewChain returns a Chain. primary is used for new hashes.
func NewChain(primary Hasher, legacy ...Hasher) *Chain {
	return &Chain{hashers: append([]Hasher{primary}, legacy...)}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.hashers[0].Hash(password)
}

func (c *Chain) Verify(password, encodedHash string) (bool, error) {
	for _, h := range c.hashers {
		if h.Recognizes(encodedHash) {
			return h.Verify(password, encodedHash)
		}
	}
	return false, ErrUnsupportedHash
}

func (c *Chain) Recognizes(encodedHash string) bool {
	for _, h := range c.hashers {
		if h.Recognizes(encodedHash) {
			return true
		}
	}
	return false
}

// ParamChecker is implemented by hashers that can tell when a hash in their
// own format was made with weaker settings than they use now.
type ParamChecker interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

// NeedsUpgrade reports whether encodedHash should be replaced by a fresh
// primary hash: it comes from a legacy hasher, or the primary hasher reports
// weaker parameters. A primary hash that cannot be parsed is not upgraded.
func (c *Chain) NeedsUpgrade(encodedHash string) bool {
	primary := c.hashers[0]
	if !primary.Recognizes(encodedHash) {
		return true
	}
	pc, ok := primary.(ParamChecker)
	if !ok {
		return false
	}
	stale, err := pc.NeedsUpgrade(encodedHash)
	return err == nil && stale
}
