// Package config loads and validates the atelier.json project
// configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "atelier.json"

	// DefaultDevPort is the default local platform emulator port.
	DefaultDevPort = 54321

	// DefaultDevHost is the default local platform emulator host.
	DefaultDevHost = "localhost"

	// DefaultStorageBucket is the default design upload bucket.
	DefaultStorageBucket = "designs"

	// DefaultMaxUploadMB caps design uploads.
	DefaultMaxUploadMB = 50
)

// Config is the complete atelier.json configuration.
type Config struct {
	// PlatformURL is the base URL of the data platform.
	PlatformURL string `json:"platformUrl,omitempty"`

	// AnonKey is the project's anonymous API key.
	AnonKey string `json:"anonKey,omitempty"`

	// RealtimeEndpoint is the websocket endpoint for realtime rooms.
	// Derived from PlatformURL when empty.
	RealtimeEndpoint string `json:"realtimeEndpoint,omitempty"`

	// Storage configures the design upload store.
	Storage StorageConfig `json:"storage,omitempty"`

	// Dev configures the local platform emulator.
	Dev DevConfig `json:"dev,omitempty"`
}

// StorageConfig configures the S3-compatible object store.
type StorageConfig struct {
	Bucket      string `json:"bucket,omitempty"`
	Region      string `json:"region,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	MaxUploadMB int64  `json:"maxUploadMB,omitempty"`
}

// DevConfig configures the local platform emulator.
type DevConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Bucket:      DefaultStorageBucket,
			MaxUploadMB: DefaultMaxUploadMB,
		},
		Dev: DevConfig{
			Host: DefaultDevHost,
			Port: DefaultDevPort,
		},
	}
}

// Load reads atelier.json from dir, applies defaults for missing
// fields, then applies environment overrides. A missing file is not an
// error; the defaults are returned.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// LoadWithEnv loads .env from dir (if present) before reading the
// config, so local overrides take effect.
func LoadWithEnv(dir string) (*Config, error) {
	// Missing .env is fine; godotenv errors only on malformed files.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	return Load(dir)
}

func (c *Config) applyDefaults() {
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = DefaultStorageBucket
	}
	if c.Storage.MaxUploadMB == 0 {
		c.Storage.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultDevHost
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultDevPort
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ATELIER_PLATFORM_URL"); v != "" {
		c.PlatformURL = v
	}
	if v := os.Getenv("ATELIER_ANON_KEY"); v != "" {
		c.AnonKey = v
	}
	if v := os.Getenv("ATELIER_REALTIME_ENDPOINT"); v != "" {
		c.RealtimeEndpoint = v
	}
}

// Validate checks the configuration for client use. The emulator does
// not need a platform URL; clients do.
func (c *Config) Validate() error {
	if c.PlatformURL == "" {
		return fmt.Errorf("config: platformUrl required (or set ATELIER_PLATFORM_URL)")
	}
	if c.AnonKey == "" {
		return fmt.Errorf("config: anonKey required (or set ATELIER_ANON_KEY)")
	}
	if c.Dev.Port < 1 || c.Dev.Port > 65535 {
		return fmt.Errorf("config: dev.port %d out of range", c.Dev.Port)
	}
	return nil
}
