package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"restock/pkg/duplicate"
	"restock/pkg/fingerprint"
)

// Config holds the application configuration
type Config struct {
	Destinations map[string]DestinationConfig `json:"destinations"`

	AssetsPrice     int    `json:"assets_price,omitempty"`
	Description     string `json:"description,omitempty"`
	SleepEachUpload int    `json:"sleep_each_upload,omitempty"` // seconds between items

	MaxNudityValue float64 `json:"max_nudity_value,omitempty"`
	DupeCheck      *bool   `json:"dupe_check,omitempty"` // nil means use default (true)

	DuplicateDetection DuplicateDetectionConfig `json:"duplicate_detection,omitempty"`
	Ledger             LedgerConfig             `json:"ledger,omitempty"`
	Retry              RetryConfig              `json:"retry,omitempty"`

	AbortRunOnInsufficientFunds bool `json:"abort_run_on_insufficient_funds,omitempty"`

	Marketplace MarketplaceConfig `json:"marketplace,omitempty"`
}

// DestinationConfig holds per-destination credentials and layout
type DestinationConfig struct {
	Cookie    string `json:"cookie"`
	CorpusDir string `json:"corpus_dir,omitempty"` // already-published images for similarity checks
}

// DuplicateDetectionConfig tunes the similarity matcher
type DuplicateDetectionConfig struct {
	MinAlgorithmMatches int            `json:"min_algorithm_matches,omitempty"`
	Thresholds          map[string]int `json:"thresholds,omitempty"` // algorithm name -> max distance
	Workers             int            `json:"workers,omitempty"`
	CacheSize           int            `json:"cache_size,omitempty"`
}

// LedgerConfig selects the publish-ledger backend
type LedgerConfig struct {
	Backend string `json:"backend,omitempty"` // "file" or "sqlite"
	Path    string `json:"path,omitempty"`
}

// RetryConfig tunes network retry and operation polling
type RetryConfig struct {
	MaxAttempts     int `json:"max_attempts,omitempty"`
	BackoffBaseSecs int `json:"backoff_base_secs,omitempty"`
	PollIntervalSec int `json:"poll_interval_secs,omitempty"`
	PollAttempts    int `json:"poll_attempts,omitempty"`
}

// MarketplaceConfig overrides the API endpoints, mainly for testing
type MarketplaceConfig struct {
	AssetsURL string `json:"assets_url,omitempty"`
	ConfigURL string `json:"config_url,omitempty"`
	AuthURL   string `json:"auth_url,omitempty"`
}

const (
	DefaultAssetsPrice     = 5
	DefaultSleepEachUpload = 5
	DefaultMaxNudityValue  = 0.35
)

// DefaultPath returns the default configuration file path
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "restock", "config.json")
}

// Load loads configuration from path, falling back to defaults when the
// file does not exist yet
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Destinations == nil {
		c.Destinations = make(map[string]DestinationConfig)
	}
	if c.AssetsPrice == 0 {
		c.AssetsPrice = DefaultAssetsPrice
	}
	if c.SleepEachUpload == 0 {
		c.SleepEachUpload = DefaultSleepEachUpload
	}
	if c.MaxNudityValue == 0 {
		c.MaxNudityValue = DefaultMaxNudityValue
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = "file"
	}
	if c.Ledger.Path == "" {
		home, _ := os.UserHomeDir()
		name := "published.txt"
		if c.Ledger.Backend == "sqlite" {
			name = "published.db"
		}
		c.Ledger.Path = filepath.Join(home, ".config", "restock", name)
	}
}

// IsDupeCheckEnabled returns whether duplicate checking is enabled.
// Defaults to true when not explicitly set.
func (c *Config) IsDupeCheckEnabled() bool {
	if c.DupeCheck == nil {
		return true
	}
	return *c.DupeCheck
}

// SleepBetweenUploads returns the configured inter-item pause
func (c *Config) SleepBetweenUploads() time.Duration {
	return time.Duration(c.SleepEachUpload) * time.Second
}

// Thresholds converts the configured per-algorithm distance limits to
// matcher form, filling unset algorithms from the defaults. Unknown
// algorithm names are reported rather than silently ignored.
func (c *Config) Thresholds() (map[fingerprint.Algorithm]int, error) {
	thresholds := duplicate.DefaultThresholds()
	for name, limit := range c.DuplicateDetection.Thresholds {
		algo, err := fingerprint.ParseAlgorithm(name)
		if err != nil {
			return nil, fmt.Errorf("duplicate_detection.thresholds: %w", err)
		}
		thresholds[algo] = limit
	}
	return thresholds, nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
