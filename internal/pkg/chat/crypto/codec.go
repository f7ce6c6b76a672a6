// Package crypto provides the symmetric authenticated encryption used for
// message bodies at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when the codec is used before a key was
// derived.
var ErrNotInitialized = errors.New("crypto: codec not initialized")

// Codec encrypts and decrypts message content with AES-256-GCM. The key is
// the SHA-256 digest of a configured secret, derived once at construction.
//
// Decrypt deliberately degrades to passthrough: content written before
// encryption was introduced is stored as plaintext, and such values must
// keep reading back unchanged. The fallback is a compatibility measure, not
// a security boundary.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the AES key from secret and prepares the AEAD.
func NewCodec(secret string) (*Codec, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag) for the given plaintext
// using a fresh 96-bit random nonce. Empty input passes through unchanged.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", ErrNotInitialized
	}
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	combined := append(nonce, sealed...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// Decrypt reverses Encrypt. Input that is not base64, is shorter than
// nonce plus tag, or fails authentication is returned unchanged so legacy
// plaintext rows keep working. Decrypt never fails.
func (c *Codec) Decrypt(blob string) string {
	if c == nil || c.aead == nil {
		return blob
	}
	if blob == "" {
		return ""
	}

	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return blob
	}
	minLen := c.aead.NonceSize() + c.aead.Overhead()
	if len(combined) < minLen {
		return blob
	}

	nonce := combined[:c.aead.NonceSize()]
	sealed := combined[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return blob
	}
	return string(plain)
}
