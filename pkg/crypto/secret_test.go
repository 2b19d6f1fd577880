package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSecret_AndCheck(t *testing.T) {
	hash, err := HashSecret("hunter2")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.True(t, CheckSecret("hunter2", hash))
	assert.False(t, CheckSecret("wrong", hash))
}

func TestHashSecret_Error(t *testing.T) {
	orig := bcryptGenerateFromPassword
	bcryptGenerateFromPassword = func([]byte, int) ([]byte, error) {
		return nil, errors.New("boom")
	}
	defer func() { bcryptGenerateFromPassword = orig }()

	_, err := HashSecret("x")
	assert.Error(t, err)
}

func TestGenerateAuthorizationNonce(t *testing.T) {
	nonce, err := GenerateAuthorizationNonce()
	assert.NoError(t, err)
	assert.Len(t, nonce, 66)
	assert.Equal(t, "0x", nonce[:2])

	other, err := GenerateAuthorizationNonce()
	assert.NoError(t, err)
	assert.NotEqual(t, nonce, other)
}

func TestGenerateRandomHex_Error(t *testing.T) {
	orig := randomRead
	randomRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	defer func() { randomRead = orig }()

	_, err := GenerateRandomHex(16)
	assert.Error(t, err)
}
