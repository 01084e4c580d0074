package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	SetEncryptionKey("unit-test-key")
	t.Cleanup(func() { SetEncryptionKey("") })

	enc, err := Encrypt("app-secret-value")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, encryptedPrefix))
	assert.NotContains(t, enc, "app-secret-value")

	dec, err := Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "app-secret-value", dec)
}

func TestDecrypt_PlainValuePassesThrough(t *testing.T) {
	SetEncryptionKey("unit-test-key")
	t.Cleanup(func() { SetEncryptionKey("") })

	dec, err := Decrypt("legacy-plain")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain", dec)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	SetEncryptionKey("key-a")
	enc, err := Encrypt("secret")
	require.NoError(t, err)

	SetEncryptionKey("key-b")
	t.Cleanup(func() { SetEncryptionKey("") })
	_, err = Decrypt(enc)
	assert.Error(t, err)

	SetEncryptionKey("")
	_, err = Decrypt(enc)
	assert.ErrorIs(t, err, ErrKeyNotConfigured)
}
