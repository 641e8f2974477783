// Package config loads and validates the engine's configuration from a YAML
// file with environment-variable overrides, following the same
// load-then-override shape used elsewhere in this codebase's stack.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a running valuestore engine.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig controls the embedded engine's storage parameters.
type StoreConfig struct {
	DataDir string `yaml:"dataDir"`
	// EncryptionKeyHex is the hex-encoded 32-byte chacha20poly1305 key used
	// to seal every value at rest. Required unless ShamirShares is enabled,
	// in which case the key can be reconstructed from shares instead.
	EncryptionKeyHex string `yaml:"encryptionKeyHex"`

	MemTableFlushThreshold int64         `yaml:"memTableFlushThresholdBytes"`
	BlockCacheBytes        int64         `yaml:"blockCacheBytes"`
	BloomBitsPerKey        int           `yaml:"bloomBitsPerKey"`
	WALSyncInterval        time.Duration `yaml:"walSyncInterval"`

	// ChunkSizeThreshold overrides valuestore.ChunkSizeThreshold, the
	// tag size in bytes at which a value chunk is split into two.
	ChunkSizeThreshold int `yaml:"chunkSizeThreshold"`

	// ShamirShares controls Shamir-shared reconstruction of the encryption
	// key when EncryptionKeyHex is not set.
	ShamirShares ShamirSharesConfig `yaml:"shamirShares"`
}

// ShamirSharesConfig mirrors the teacher's Shamir-sharing master key mode:
// the key is split across TotalShares files, any Threshold of which
// reconstruct it.
type ShamirSharesConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Threshold   int    `yaml:"threshold"`
	TotalShares int    `yaml:"totalShares"`
	SharesPath  string `yaml:"sharesPath"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// EncryptionKey decodes StoreConfig.EncryptionKeyHex.
func (s StoreConfig) EncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(s.EncryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("config: encryptionKeyHex: %w", err)
	}
	return key, nil
}

// Load reads a YAML config file (if path is non-empty) over a set of
// defaults, then applies VALUESTORE_* environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:                "./data",
			MemTableFlushThreshold: 4 << 20,
			BlockCacheBytes:        16 << 20,
			BloomBitsPerKey:        10,
			WALSyncInterval:        time.Second,
			ChunkSizeThreshold:     2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VALUESTORE_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("VALUESTORE_ENCRYPTION_KEY_HEX"); v != "" {
		cfg.Store.EncryptionKeyHex = v
	}
	if v := os.Getenv("VALUESTORE_MEMTABLE_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Store.MemTableFlushThreshold = n
		}
	}
	if v := os.Getenv("VALUESTORE_BLOCK_CACHE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Store.BlockCacheBytes = n
		}
	}
	if v := os.Getenv("VALUESTORE_CHUNK_SIZE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.ChunkSizeThreshold = n
		}
	}
	if v := os.Getenv("VALUESTORE_SHAMIR_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.ShamirShares.Enabled = b
		}
	}
	if v := os.Getenv("VALUESTORE_SHAMIR_SHARES_PATH"); v != "" {
		cfg.Store.ShamirShares.SharesPath = v
	}
	if v := os.Getenv("VALUESTORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VALUESTORE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VALUESTORE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
