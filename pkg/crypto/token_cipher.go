package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	// prefix marks values produced by this cipher so legacy plaintext rows are still readable.
	prefix = "sb1:"
)

var ErrDecrypt = errors.New("token decryption failed")

// TokenCipher encrypts OAuth tokens before they are written to storage.
type TokenCipher struct {
	key [keySize]byte
}

// NewTokenCipher derives the encryption key from the session secret.
func NewTokenCipher(secret string) (*TokenCipher, error) {
	if secret == "" {
		return nil, errors.New("secret is required")
	}

	c := &TokenCipher{}
	r := hkdf.New(sha256.New, []byte(secret), []byte("mailsync"), []byte("oauth-token-encryption"))
	if _, err := io.ReadFull(r, c.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return c, nil
}

// Encrypt returns a prefixed base64 sealed box. Empty input stays empty.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned unchanged.
func (c *TokenCipher) Decrypt(value string) (string, error) {
	if value == "" || len(value) < len(prefix) || value[:len(prefix)] != prefix {
		return value, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value[len(prefix):])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
