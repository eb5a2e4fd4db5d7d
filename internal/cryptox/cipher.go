// Package cryptox holds the cryptographic primitives of the server:
// the secret-at-rest cipher used for two-factor seeds and the password
// hashing helpers used at login.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/picvault/picvault/internal/common"
)

const (
	keyIterations = 65536
	keySize       = 32
	nonceSize     = 12
)

// SecretCipher encrypts and decrypts small secrets with AES-256-GCM.
// The key is derived once from an operator-supplied password and salt;
// the cipher is safe for concurrent use and read-only after construction.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives a key from (password, salt) via PBKDF2-SHA256 and
// returns a ready-to-use cipher.
func NewSecretCipher(password, salt string) (*SecretCipher, error) {
	key := pbkdf2.Key([]byte(password), []byte(salt), keyIterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals the plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext), safe for storage in a text column.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := common.GenerateRandByteArray(nonceSize)
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed encodings, truncated input, and
// authentication failures (wrong key material, tampered data) all yield
// common.ErrDecryptionFailed; callers must treat it as a server-side fault,
// not as user input error.
func (c *SecretCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	if len(sealed) < nonceSize {
		return "", common.ErrDecryptionFailed
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
