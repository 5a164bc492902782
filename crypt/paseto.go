// Package crypt provides the symmetric cipher used for password reset tokens.
package crypt

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/o1egl/paseto"
)

// KeySize is the PASETO v2.local key length.
const KeySize = 32

// ErrInvalidToken is returned when a token cannot be authenticated or decrypted.
var ErrInvalidToken = errors.New("invalid encrypted token")

// Paseto encrypts payloads as PASETO v2.local tokens (XChaCha20-Poly1305).
type Paseto struct {
	v2     *paseto.V2
	key    []byte
	footer string
}

// NewPaseto returns a cipher using key, which must be KeySize bytes.
// A non-empty footer is authenticated with every token and checked on decrypt.
func NewPaseto(key []byte, footer string) (*Paseto, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("paseto key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Paseto{v2: paseto.NewV2(), key: append([]byte(nil), key...), footer: footer}, nil
}

// DeriveKey turns application key material into a KeySize key. A value in the
// form "base64:<data>" is decoded first; data that is not exactly KeySize bytes
// is hashed with SHA-256.
func DeriveKey(appKey string) ([]byte, error) {
	if appKey == "" {
		return nil, errors.New("app key is empty")
	}
	raw := []byte(appKey)
	if encoded, ok := strings.CutPrefix(appKey, "base64:"); ok {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode app key: %w", err)
		}
		raw = decoded
	}
	if len(raw) == KeySize {
		return raw, nil
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// Encrypt seals plaintext into a v2.local token.
func (p *Paseto) Encrypt(plaintext []byte) (string, error) {
	token, err := p.v2.Encrypt(p.key, plaintext, p.footer)
	if err != nil {
		return "", fmt.Errorf("paseto encrypt: %w", err)
	}
	return token, nil
}

// Decrypt opens token. Any authentication or format failure returns ErrInvalidToken.
func (p *Paseto) Decrypt(token string) ([]byte, error) {
	var (
		payload []byte
		footer  string
	)
	if err := p.v2.Decrypt(token, p.key, &payload, &footer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if footer != p.footer {
		return nil, fmt.Errorf("%w: footer mismatch", ErrInvalidToken)
	}
	return payload, nil
}
