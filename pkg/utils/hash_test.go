package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-pass", hash)
	assert.True(t, CheckPassword("secret-pass", hash))
	assert.False(t, CheckPassword("wrong-pass", hash))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("abc")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestCheckPassword_GarbageHash(t *testing.T) {
	assert.False(t, CheckPassword("anything", "not-a-bcrypt-hash"))
}
