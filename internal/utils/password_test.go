package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_Salted(t *testing.T) {
	h1, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	h2, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ")
	assert.True(t, VerifyPassword(h1, "secret1"))
	assert.True(t, VerifyPassword(h2, "secret1"))
}

func TestVerifyPassword_Mismatch(t *testing.T) {
	h, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	assert.False(t, VerifyPassword(h, "secret2"))
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "secret1"))
	assert.False(t, VerifyPassword("", ""))
}

func TestHashPassword_UsesCost(t *testing.T) {
	h, err := HashPassword("secret1", bcrypt.MinCost+1)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}
