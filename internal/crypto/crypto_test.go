package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService("test-passphrase")
	require.NoError(t, err)
	return svc
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	cases := []string{
		"sk-123",
		"a",
		"exactly sixteen!",
		strings.Repeat("long credential material ", 40),
		"unicode: héllo wörld ☂",
		`{"apiKey":"sk-123","endpoint":"https://api.example.com"}`,
	}

	for _, plaintext := range cases {
		blob, err := svc.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := svc.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncrypt_BlobFormat(t *testing.T) {
	svc := newTestService(t)

	blob, err := svc.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 32) // 16-byte salt, hex encoded
	assert.Len(t, parts[1], 32) // 16-byte IV, hex encoded
	assert.NotContains(t, blob, "secret")
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Encrypt("secret")
	require.NoError(t, err)
	second, err := svc.Encrypt("secret")
	require.NoError(t, err)

	// Fresh salt and IV per call.
	assert.NotEqual(t, first, second)

	d1, err := svc.Decrypt(first)
	require.NoError(t, err)
	d2, err := svc.Decrypt(second)
	require.NoError(t, err)
	assert.Equal(t, "secret", d1)
	assert.Equal(t, "secret", d2)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	svc := newTestService(t)

	blob, err := svc.EncryptWithKey("secret", "key-one")
	require.NoError(t, err)

	_, err = svc.DecryptWithKey(blob, "key-two")
	assert.Error(t, err)
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Encrypt("")
	assert.ErrorIs(t, err, domain.ErrEmptyPlaintext)
}

func TestDecrypt_MalformedBlob(t *testing.T) {
	svc := newTestService(t)

	cases := []string{
		"",
		"notablob",
		"aa:bb",
		"aa:bb:cc:dd",
		"zz:zz:zz",
		"00112233445566778899aabbccddeeff:tooshortiv:00",
	}

	for _, blob := range cases {
		_, err := svc.Decrypt(blob)
		assert.Error(t, err, "blob %q should not decrypt", blob)
	}
}

func TestNewService_FallbackKey(t *testing.T) {
	t.Setenv(EnvKey, "")

	svc, err := NewService("")
	require.NoError(t, err)
	assert.True(t, svc.UsingFallbackKey())

	// Fallback still round-trips within the process.
	blob, err := svc.Encrypt("secret")
	require.NoError(t, err)
	decrypted, err := svc.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "secret", decrypted)
}

func TestNewService_EnvironmentKey(t *testing.T) {
	t.Setenv(EnvKey, "env-passphrase")

	svc, err := NewService("")
	require.NoError(t, err)
	assert.False(t, svc.UsingFallbackKey())

	blob, err := svc.Encrypt("secret")
	require.NoError(t, err)

	explicit, err := NewService("env-passphrase")
	require.NoError(t, err)
	decrypted, err := explicit.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "secret", decrypted)
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 64) // 32 bytes hex encoded

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestHashVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	parts := strings.Split(hash, ":")
	require.Len(t, parts, 2)
	assert.NotContains(t, hash, "hunter2")

	assert.True(t, VerifyPassword("hunter2", hash))
	assert.False(t, VerifyPassword("hunter3", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	first, err := HashPassword("hunter2")
	require.NoError(t, err)
	second, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("hunter2", first))
	assert.True(t, VerifyPassword("hunter2", second))
}

func TestVerifyPassword_MalformedStored(t *testing.T) {
	assert.False(t, VerifyPassword("hunter2", ""))
	assert.False(t, VerifyPassword("hunter2", "nocolonhere"))
	assert.False(t, VerifyPassword("hunter2", "zz:zz"))
}
