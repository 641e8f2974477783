package engine

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// CryptoProvider encrypts every value written to an SSTable segment at
// rest with an AEAD cipher, so the segment file on disk never holds a
// value chunk's bytes in the clear.
type CryptoProvider struct {
	aead cipher.AEAD
}

// NewCryptoProvider constructs a provider from a 32-byte key
// (chacha20poly1305.KeySize).
func NewCryptoProvider(key []byte) (*CryptoProvider, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("engine: crypto key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &CryptoProvider{aead: aead}, nil
}

// Encrypt seals plaintext, returning nonce||ciphertext. aad binds
// associated data (the entry's key) into the authentication tag so a
// ciphertext cannot be replayed under a different key without detection.
func (c *CryptoProvider) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, aad)
	return append(nonce, sealed...), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *CryptoProvider) Decrypt(blob, aad []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(blob) < n {
		return nil, fmt.Errorf("engine: ciphertext shorter than nonce")
	}
	nonce, ciphertext := blob[:n], blob[n:]
	return c.aead.Open(nil, nonce, ciphertext, aad)
}

// buildEntryAAD derives the associated data an Entry's encrypted plaintext
// is bound to: its key, known before decryption (unlike the timestamp and
// deleted flag, which live inside the plaintext), so a segment rewrite
// cannot silently splice one entry's ciphertext onto another's key.
func buildEntryAAD(key []byte) []byte {
	return append([]byte(nil), key...)
}
