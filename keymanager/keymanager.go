// Package keymanager resolves the engine's 32-byte encryption key, adapted
// from the teacher's MasterKeyManager: an explicit key wins outright, and
// failing that a Shamir-shared key is reconstructed from (or split into)
// share files on disk, with a securely-read passphrase prompt as the
// fallback when no shares exist yet.
package keymanager

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/shamir"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/term"
)

// ShamirConfig controls Shamir-shared reconstruction of the master key.
type ShamirConfig struct {
	Enabled     bool
	Threshold   int
	TotalShares int
	SharesPath  string
}

// PromptFunc reads one line of operator input for prompt, echoing it back
// or not depending on how the caller wants it displayed.
type PromptFunc func(prompt string) (string, error)

// Resolve returns the engine's encryption key: explicit if it is already a
// valid 32-byte key, otherwise reconstructed from (or split into) Shamir
// shares when shamirCfg.Enabled, otherwise explicit unchanged (left for the
// caller to reject as too short).
func Resolve(explicit []byte, shamirCfg ShamirConfig, prompt PromptFunc) ([]byte, error) {
	if len(explicit) == chacha20poly1305.KeySize {
		return explicit, nil
	}
	if !shamirCfg.Enabled {
		return explicit, nil
	}

	sharesDir := shamirCfg.SharesPath
	if sharesDir == "" {
		sharesDir = "shamir_shares"
	}

	if _, err := os.Stat(sharesDir); err == nil {
		return loadShares(sharesDir)
	}

	threshold, totalShares := shamirCfg.Threshold, shamirCfg.TotalShares
	if totalShares < 3 {
		totalShares = 3
	}
	if threshold < 2 {
		threshold = (totalShares + 1) / 2
	}
	return createShares(sharesDir, threshold, totalShares, prompt)
}

// createShares prompts for (or generates) a master key, splits it into
// totalShares Shamir shares requiring threshold to reconstruct, persists
// them under dir, and returns the master key.
func createShares(dir string, threshold, totalShares int, prompt PromptFunc) ([]byte, error) {
	keyStr, err := prompt("Enter master key to split (32 bytes, base64/hex) or press Enter to generate: ")
	if err != nil {
		return nil, fmt.Errorf("keymanager: reading master key: %w", err)
	}

	var masterKey []byte
	if strings.TrimSpace(keyStr) == "" {
		masterKey = make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(rand.Reader, masterKey); err != nil {
			return nil, fmt.Errorf("keymanager: generating master key: %w", err)
		}
	} else {
		masterKey, err = ParseKeyString(strings.TrimSpace(keyStr))
		if err != nil {
			return nil, fmt.Errorf("keymanager: invalid master key: %w", err)
		}
	}

	shares, err := shamir.Split(masterKey, threshold, totalShares)
	if err != nil {
		return nil, fmt.Errorf("keymanager: splitting master key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keymanager: creating shares directory: %w", err)
	}
	for i, share := range shares {
		path := filepath.Join(dir, fmt.Sprintf("share_%d.key", i+1))
		encoded := base64.StdEncoding.EncodeToString(share)
		if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
			return nil, fmt.Errorf("keymanager: writing share %d: %w", i+1, err)
		}
	}
	return masterKey, nil
}

// loadShares reads every share_*.key file under dir and reconstructs the
// master key from them.
func loadShares(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("keymanager: reading shares directory: %w", err)
	}

	var shares [][]byte
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "share_") || !strings.HasSuffix(name, ".key") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("keymanager: reading %s: %w", name, err)
		}
		share, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("keymanager: decoding %s: %w", name, err)
		}
		shares = append(shares, share)
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("keymanager: no share files found under %s", dir)
	}

	masterKey, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("keymanager: reconstructing master key: %w", err)
	}
	return masterKey, nil
}

// ParseKeyString accepts a 32-byte key encoded as base64, hex, or raw bytes.
func ParseKeyString(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("keymanager: empty key value")
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil && len(decoded) == chacha20poly1305.KeySize {
		return decoded, nil
	}
	if decoded, err := hex.DecodeString(value); err == nil && len(decoded) == chacha20poly1305.KeySize {
		return decoded, nil
	}
	if len(value) == chacha20poly1305.KeySize {
		return []byte(value), nil
	}
	return nil, fmt.Errorf("keymanager: expected a %d-byte key (raw/base64/hex), got %d bytes", chacha20poly1305.KeySize, len(value))
}

// DefaultPrompt reads one line from the controlling terminal, using
// term.ReadPassword to keep a master key from echoing to the screen or
// landing in shell history.
func DefaultPrompt(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		fmt.Println()
		return string(password), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
