// Package config holds the configuration for blockfs tooling: where block
// files live, how aggressively to verify them, and where inventory
// snapshots go.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blockfs-io/blockfs/pkg/inventory"
)

const (
	// DefaultConfigFileName is the file the tools read inside a block directory
	DefaultConfigFileName = "blockfs.json"
	// CurrentConfigVersion is the current configuration format version
	CurrentConfigVersion = 1
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrConfigNotFound = errors.New("configuration file not found")
)

// Config is the tool configuration. Access through the accessors is
// thread-safe; the struct itself is serialized as JSON.
type Config struct {
	Version int `json:"version"`

	// Block directory configuration
	BlockDir        string `json:"block_dir"`
	VerifyChecksums bool   `json:"verify_checksums"`

	// Inventory snapshot configuration
	InventoryPath        string `json:"inventory_path"`
	InventoryCompression string `json:"inventory_compression"`

	// Logging
	LogLevel string `json:"log_level"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended defaults rooted at
// the given block directory.
func NewDefaultConfig(blockDir string) *Config {
	return &Config{
		Version:              CurrentConfigVersion,
		BlockDir:             blockDir,
		VerifyChecksums:      false,
		InventoryPath:        filepath.Join(blockDir, "blocks.inv"),
		InventoryCompression: "zstd",
		LogLevel:             "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: version must be positive, got %d", ErrInvalidConfig, c.Version)
	}
	if c.BlockDir == "" {
		return fmt.Errorf("%w: block_dir cannot be empty", ErrInvalidConfig)
	}
	if c.InventoryPath == "" {
		return fmt.Errorf("%w: inventory_path cannot be empty", ErrInvalidConfig)
	}
	if _, err := inventory.ParseCompressionCodec(c.InventoryCompression); err != nil {
		return fmt.Errorf("%w: inventory_compression: %v", ErrInvalidConfig, err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// InventoryCodec returns the parsed compression codec for snapshots.
// Validate must have accepted the configuration first.
func (c *Config) InventoryCodec() inventory.CompressionCodec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	codec, err := inventory.ParseCompressionCodec(c.InventoryCompression)
	if err != nil {
		return inventory.CompressionNone
	}
	return codec
}

// SetVerifyChecksums toggles checksum verification during scans.
func (c *Config) SetVerifyChecksums(verify bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.VerifyChecksums = verify
}

// LoadConfigFromFile reads and validates a configuration file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the configuration to a file, creating parent
// directories as needed.
func (c *Config) SaveConfig(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
