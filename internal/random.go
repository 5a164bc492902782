package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	jtiRandomLen = 6
	csrfRawSize  = 30
)

// RandomAlphanumeric returns n characters drawn uniformly from [a-zA-Z0-9]
// using crypto/rand.
func RandomAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid random length")
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphanumeric[idx.Int64()])
	}
	return b.String(), nil
}

// NewJTI builds a token identifier: six random alphanumerics followed by
// the unix timestamp of now.
func NewJTI(now time.Time) (string, error) {
	prefix, err := RandomAlphanumeric(jtiRandomLen)
	if err != nil {
		return "", err
	}
	return prefix + strconv.FormatInt(now.Unix(), 10), nil
}

// NewCSRFToken returns a base64url encoded random token for session forms.
func NewCSRFToken() (string, error) {
	var raw [csrfRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
