// Package crypto encrypts secrets stored in config files, such as the database
// password and the bastion key passphrase.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ekaya-inc/gamedash/pkg/apperrors"
)

// EncryptedPrefix marks a config value as ciphertext produced by Encrypt.
const EncryptedPrefix = "enc:"

// ErrInvalidKey is returned when the key is empty.
var ErrInvalidKey = errors.New("invalid encryption key: must not be empty")

// SecretCipher provides AES-256-GCM encryption for config secrets.
type SecretCipher struct {
	gcm cipher.AEAD
}

// NewSecretCipher creates a cipher from keyInput. A base64 string decoding to
// exactly 32 bytes is used as the key; anything else is treated as a
// passphrase and hashed with SHA-256.
func NewSecretCipher(keyInput string) (*SecretCipher, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	decoded, err := base64.StdEncoding.DecodeString(keyInput)
	if err == nil && len(decoded) == 32 {
		key = decoded
	} else {
		sum := sha256.Sum256([]byte(keyInput))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &SecretCipher{gcm: gcm}, nil
}

// Encrypt returns "enc:" + base64(nonce || ciphertext || tag).
// The empty string stays empty.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned unchanged
// so plaintext config keeps working.
func (c *SecretCipher) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", apperrors.ErrSecretMismatch)
	}

	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize+c.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", apperrors.ErrSecretMismatch)
	}

	plaintext, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", apperrors.ErrSecretMismatch)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}
