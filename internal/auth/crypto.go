package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const passwordKeyInfo = "course-portal/ta-password/v1"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// PasswordCipher encrypts TA passwords at rest with AES-256-GCM. The key is
// derived from the configured secret with HKDF-SHA256.
type PasswordCipher struct {
	aead cipher.AEAD
}

func NewPasswordCipher(secret string) (*PasswordCipher, error) {
	if secret == "" {
		return nil, errors.New("password secret is not configured")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(passwordKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &PasswordCipher{aead: aead}, nil
}

// Encrypt returns base64(nonce|ciphertext).
func (c *PasswordCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *PasswordCipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Matches reports whether password equals the plaintext of encoded.
func (c *PasswordCipher) Matches(encoded, password string) bool {
	if encoded == "" {
		return false
	}
	plain, err := c.Decrypt(encoded)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(password)) == 1
}
