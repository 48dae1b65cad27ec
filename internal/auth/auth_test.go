package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 2*TokenBytes)
	assert.NotEqual(t, a, b)
	_, err = hex.DecodeString(a)
	assert.NoError(t, err)
}

func TestNewToken_Deterministic(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xab}, TokenBytes))
	tok, err := newTokenFrom(src)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(bytes.Repeat([]byte{0xab}, TokenBytes)), tok)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewToken_ReaderError(t *testing.T) {
	_, err := newTokenFrom(failingReader{})
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Admin123!@#")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "Admin123!@#"))
	assert.False(t, CheckPassword(hash, "admin123!@#"))
	assert.False(t, CheckPassword(hash, ""))
	assert.False(t, NeedsRehash(hash))

	_, err = HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestCheckPassword_Legacy(t *testing.T) {
	sum := sha256.Sum256([]byte("s3cret"))
	legacy := hex.EncodeToString(sum[:])

	assert.True(t, CheckPassword(legacy, "s3cret"))
	assert.False(t, CheckPassword(legacy, "s3cret "))
	assert.False(t, CheckPassword("", "s3cret"))
	assert.True(t, NeedsRehash(legacy))
}
