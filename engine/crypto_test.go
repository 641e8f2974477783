package engine

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, chacha20poly1305.KeySize)
}

func TestNewCryptoProviderRejectsShortKey(t *testing.T) {
	if _, err := NewCryptoProvider([]byte("too short")); err == nil {
		t.Fatalf("expected an error for a key shorter than %d bytes", chacha20poly1305.KeySize)
	}
}

func TestCryptoProviderEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCryptoProvider(testKey())
	if err != nil {
		t.Fatalf("NewCryptoProvider: %v", err)
	}

	plaintext := []byte("a secret value chunk")
	aad := []byte("some-key")
	blob, err := c.Encrypt(plaintext, aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := c.Decrypt(blob, aad)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestCryptoProviderDecryptDetectsTamperedCiphertext(t *testing.T) {
	c, err := NewCryptoProvider(testKey())
	if err != nil {
		t.Fatalf("NewCryptoProvider: %v", err)
	}

	blob, err := c.Encrypt([]byte("payload"), []byte("aad"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF

	if _, err := c.Decrypt(blob, []byte("aad")); err == nil {
		t.Fatalf("expected tampered ciphertext to fail authentication")
	}
}

func TestCryptoProviderDecryptDetectsWrongAAD(t *testing.T) {
	c, err := NewCryptoProvider(testKey())
	if err != nil {
		t.Fatalf("NewCryptoProvider: %v", err)
	}

	blob, err := c.Encrypt([]byte("payload"), []byte("original-key"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c.Decrypt(blob, []byte("different-key")); err == nil {
		t.Fatalf("expected a mismatched AAD to fail authentication")
	}
}

func TestCryptoProviderEncryptProducesFreshNonce(t *testing.T) {
	c, err := NewCryptoProvider(testKey())
	if err != nil {
		t.Fatalf("NewCryptoProvider: %v", err)
	}
	a, err := c.Encrypt([]byte("same plaintext"), []byte("aad"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt([]byte("same plaintext"), []byte("aad"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("expected distinct ciphertexts for repeated encryption of the same plaintext")
	}
}
