// Package config provides unified configuration for the tablefeed service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	// DataDir is the directory holding data files, the progress ledger,
	// and the catalog files.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Ledger configuration
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// Batch allocation configuration
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Remote sync configuration
	Sync SyncConfig `json:"sync" yaml:"sync"`

	// Storage configuration (the remote drive)
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// LedgerConfig holds progress ledger configuration.
type LedgerConfig struct {
	// FileName is the ledger file name inside DataDir
	FileName string `json:"file_name" yaml:"file_name"`

	// LockTimeout bounds the wait for the ledger write lock
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`

	// RetryInterval is the lock poll interval
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval"`
}

// BatchConfig holds batch allocation configuration.
type BatchConfig struct {
	// Quota is the number of rows released per allocation round
	Quota int64 `json:"quota" yaml:"quota"`

	// EstimatedRowBytes is the bytes-per-row divisor for size-based
	// total estimates of files that cannot be row-counted exactly
	EstimatedRowBytes int64 `json:"estimated_row_bytes" yaml:"estimated_row_bytes"`
}

// SyncConfig holds remote sync configuration.
type SyncConfig struct {
	// MetaFileName is the catalog file name inside DataDir
	MetaFileName string `json:"meta_file_name" yaml:"meta_file_name"`

	// Interval between background sync passes (0 disables the daemon)
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Concurrency bounds parallel downloads per pass
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Prefix scopes remote listing to a key prefix
	Prefix string `json:"prefix" yaml:"prefix"`
}

// StorageConfig holds remote storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tablefeed",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Ledger: LedgerConfig{
			FileName:      "progress.json",
			LockTimeout:   5 * time.Second,
			RetryInterval: 25 * time.Millisecond,
		},
		Batch: BatchConfig{
			Quota:             15000,
			EstimatedRowBytes: 512,
		},
		Sync: SyncConfig{
			MetaFileName: "meta.json",
			Interval:     0,
			Concurrency:  4,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tablefeed"
	}
	if c.Ledger.FileName == "" {
		c.Ledger.FileName = "progress.json"
	}
	if c.Sync.MetaFileName == "" {
		c.Sync.MetaFileName = "meta.json"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "remote")
	}
}

// LedgerPath returns the path to the progress ledger file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, c.Ledger.FileName)
}

// MetaPath returns the path to the catalog file.
func (c *Config) MetaPath() string {
	return filepath.Join(c.DataDir, c.Sync.MetaFileName)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Batch.Quota < 0 {
		return fmt.Errorf("batch.quota must be non-negative, got %d", c.Batch.Quota)
	}

	if c.Batch.EstimatedRowBytes <= 0 {
		return fmt.Errorf("batch.estimated_row_bytes must be positive, got %d", c.Batch.EstimatedRowBytes)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TABLEFEED_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TABLEFEED_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TABLEFEED_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Batch configuration
	if v := os.Getenv("TABLEFEED_BATCH_QUOTA"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Batch.Quota)
	}
	if v := os.Getenv("TABLEFEED_BATCH_ESTIMATED_ROW_BYTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Batch.EstimatedRowBytes)
	}

	// Ledger configuration
	if v := os.Getenv("TABLEFEED_LEDGER_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ledger.LockTimeout = d
		}
	}

	// Sync configuration
	if v := os.Getenv("TABLEFEED_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = d
		}
	}
	if v := os.Getenv("TABLEFEED_SYNC_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Sync.Concurrency)
	}
	if v := os.Getenv("TABLEFEED_SYNC_PREFIX"); v != "" {
		cfg.Sync.Prefix = v
	}

	// Storage configuration
	if v := os.Getenv("TABLEFEED_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TABLEFEED_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TABLEFEED_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TABLEFEED_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TABLEFEED_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
