package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	require.NoError(t, err)
	require.Len(t, a, n)

	b, err := RandBytes(n)
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b), "two subsequent RandBytes(%d) are equal", n)
	require.False(t, bytes.Equal(a, make([]byte, n)), "RandBytes returned all zeros")
}

func TestHashPassword_DeterministicOnSameInput(t *testing.T) {
	t.Parallel()

	pw := []byte("p@ssw0rd")
	salt := []byte("NaCl-16-bytes?")

	h1 := HashPassword(pw, salt)
	require.NotEmpty(t, h1)
	require.Equal(t, h1, HashPassword(pw, salt))
	require.NotEqual(t, h1, HashPassword(pw, []byte("another-salt----")))
	require.NotEqual(t, h1, HashPassword([]byte("p@ssw0rd!"), salt))
}

func TestNewCredential(t *testing.T) {
	t.Parallel()

	hash, salt, err := NewCredential("hunter2")
	require.NoError(t, err)
	require.Len(t, salt, SaltLen)
	require.True(t, VerifyPassword([]byte("hunter2"), salt, hash))

	hash2, salt2, err := NewCredential("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, salt, salt2)
	require.NotEqual(t, hash, hash2)

	_, _, err = NewCredential("")
	require.Error(t, err)
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	pw := []byte("correct horse battery staple")
	salt := []byte("salty-salt-123456")
	hash := HashPassword(pw, salt)

	require.True(t, VerifyPassword(pw, salt, hash))
	require.False(t, VerifyPassword([]byte("wrong"), salt, hash))
	require.False(t, VerifyPassword(pw, []byte("wrong-salt"), hash))
	require.False(t, VerifyPassword([]byte{}, salt, hash))
	require.False(t, VerifyPassword(pw, nil, hash))
	require.False(t, VerifyPassword(pw, salt, nil))
}
