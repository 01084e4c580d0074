package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// encryptedPrefix marks values produced by Encrypt so that plain legacy
// values stored before encryption was enabled can still be read.
const encryptedPrefix = "enc:v1:"

var encryptionKey []byte

// ErrKeyNotConfigured is returned by Decrypt for an encrypted value when no key is set.
var ErrKeyNotConfigured = errors.New("encryption key not configured")

// SetEncryptionKey derives the AES-256 key used for tenant secrets.
// An empty key disables encryption.
func SetEncryptionKey(key string) {
	if key == "" {
		encryptionKey = nil
		return
	}
	sum := sha256.Sum256([]byte(key))
	encryptionKey = sum[:]
}

// Encrypt encrypts plainText with AES-GCM. Without a key the value is returned as is.
func Encrypt(plainText string) (string, error) {
	if len(encryptionKey) == 0 || plainText == "" {
		return plainText, nil
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Values without the encrypted prefix are returned unchanged.
func Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if len(encryptionKey) == 0 {
		return "", ErrKeyNotConfigured
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", err
	}

	gcm, err := newGCM()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
