// Package auth holds the credential primitives: session token generation and
// password hashing.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// TokenBytes is the amount of randomness in a session token.
const TokenBytes = 32

// NewToken returns a hex-encoded random token read from crypto/rand.
func NewToken() (string, error) {
	return newTokenFrom(rand.Reader)
}

func newTokenFrom(r io.Reader) (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
