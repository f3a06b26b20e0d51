// Package config holds Shadow Atlas's configuration: cache and job database
// paths, extraction concurrency and retry policy, integrity mode, and
// validation thresholds. No global singleton is used — a *Config is
// constructed once and threaded explicitly through atlas.New into every
// component that needs it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shadowatlas/internal/integrity"
)

// Config is the top-level configuration for a Shadow Atlas service
// instance.
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Integrity  IntegrityConfig  `yaml:"integrity"`
	Validation ValidationConfig `yaml:"validation"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// CacheConfig configures the content-addressed extraction cache (§4.D).
type CacheConfig struct {
	Directory   string `yaml:"directory"`
	GracePeriod string `yaml:"grace_period"`
}

// GracePeriodDuration parses GracePeriod, defaulting to 72h on a malformed
// or empty value.
func (c CacheConfig) GracePeriodDuration() time.Duration {
	d, err := time.ParseDuration(c.GracePeriod)
	if err != nil {
		return 72 * time.Hour
	}
	return d
}

// ExtractionConfig configures the Extraction Engine's worker pool and retry
// policy (§4.E, §5).
type ExtractionConfig struct {
	Concurrency     int    `yaml:"concurrency"`
	ContinueOnError bool   `yaml:"continue_on_error"`
	TimeoutPerTask  string `yaml:"timeout_per_task"`
	RetryAttempts   int    `yaml:"retry_attempts"`
	RetryBaseDelay  string `yaml:"retry_base_delay"`
}

func (c ExtractionConfig) TimeoutPerTaskDuration() time.Duration {
	d, err := time.ParseDuration(c.TimeoutPerTask)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c ExtractionConfig) RetryBaseDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.RetryBaseDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// IntegrityConfig selects strict or permissive handling of unpinned
// checksums (§4.B).
type IntegrityConfig struct {
	Mode string `yaml:"mode"` // "strict" or "permissive"
}

// ManifestMode translates the configured string into integrity.Mode,
// defaulting to Permissive on an unrecognized value.
func (c IntegrityConfig) ManifestMode() integrity.Mode {
	if c.Mode == "strict" {
		return integrity.Strict
	}
	return integrity.Permissive
}

// ValidationConfig holds the Validation Pipeline's configurable thresholds
// (§4.F).
type ValidationConfig struct {
	MinConfidence         int     `yaml:"min_confidence"`
	MinPassRate           float64 `yaml:"min_pass_rate"`
	GeographicBoundsKM    float64 `yaml:"geographic_bounds_km"`
	MaxCountRatio         float64 `yaml:"max_count_ratio"`
	TessellationTolerance float64 `yaml:"tessellation_tolerance"`
	ExhaustivityMin       float64 `yaml:"exhaustivity_min"`
	MinMatchRate          float64 `yaml:"min_match_rate"`
}

// StorageConfig holds the sqlite database paths for the Snapshot Store and
// Job Registry.
type StorageConfig struct {
	SnapshotDBPath string `yaml:"snapshot_db_path"`
	JobDBPath      string `yaml:"job_db_path"`
}

// TelemetryConfig selects the zap logging level for every component
// logger (§ ambient stack).
type TelemetryConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns Shadow Atlas's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Directory:   "data/cache",
			GracePeriod: "72h",
		},
		Extraction: ExtractionConfig{
			Concurrency:     5,
			ContinueOnError: true,
			TimeoutPerTask:  "30s",
			RetryAttempts:   3,
			RetryBaseDelay:  "500ms",
		},
		Integrity: IntegrityConfig{
			Mode: "permissive",
		},
		Validation: ValidationConfig{
			MinConfidence:         60,
			MinPassRate:           0.9,
			GeographicBoundsKM:    50,
			MaxCountRatio:         3,
			TessellationTolerance: 0.02,
			ExhaustivityMin:       0.95,
			MinMatchRate:          0.9,
		},
		Storage: StorageConfig{
			SnapshotDBPath: "data/snapshots.db",
			JobDBPath:      "data/jobs.db",
		},
		Telemetry: TelemetryConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// defaults (with environment overrides still applied) if the file does not
// exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create directory %s: %w", dir, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides layers environment variables on top of file/default
// configuration, matching the env-var-override convention used throughout
// this configuration layer.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("SHADOWATLAS_CACHE_DIR"); dir != "" {
		c.Cache.Directory = dir
	}
	if mode := os.Getenv("SHADOWATLAS_INTEGRITY_MODE"); mode != "" {
		c.Integrity.Mode = mode
	}
	if concurrency := os.Getenv("SHADOWATLAS_CONCURRENCY"); concurrency != "" {
		var n int
		if _, err := fmt.Sscanf(concurrency, "%d", &n); err == nil && n > 0 {
			c.Extraction.Concurrency = n
		}
	}
	if level := os.Getenv("SHADOWATLAS_LOG_LEVEL"); level != "" {
		c.Telemetry.Level = level
	}
	if path := os.Getenv("SHADOWATLAS_SNAPSHOT_DB"); path != "" {
		c.Storage.SnapshotDBPath = path
	}
	if path := os.Getenv("SHADOWATLAS_JOB_DB"); path != "" {
		c.Storage.JobDBPath = path
	}
}

// Validate checks the configuration for internally inconsistent values
// that should abort startup as a configuration_error rather than surface
// as a confusing runtime failure later.
func (c *Config) Validate() error {
	if c.Extraction.Concurrency <= 0 {
		return fmt.Errorf("config: extraction.concurrency must be positive, got %d", c.Extraction.Concurrency)
	}
	if c.Validation.MinConfidence < 0 || c.Validation.MinConfidence > 100 {
		return fmt.Errorf("config: validation.min_confidence must be in [0, 100], got %d", c.Validation.MinConfidence)
	}
	if c.Integrity.Mode != "strict" && c.Integrity.Mode != "permissive" {
		return fmt.Errorf("config: integrity.mode must be %q or %q, got %q", "strict", "permissive", c.Integrity.Mode)
	}
	return nil
}
