// Package config loads shelfsort configuration from defaults, an optional
// YAML file and SHELFSORT_* environment variables.
//
// Precedence is environment over file over defaults: the file is applied on
// top of DefaultConfig, then every set environment variable overrides the
// matching field.
//
// Example Usage:
//
//	cfg, err := config.Load("./shelfsort.yaml")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Println(cfg)
//
// Environment Variables:
//
// Storage:
//   - SHELFSORT_DATA_DIR="./data"
//   - SHELFSORT_IN_MEMORY=false
//   - SHELFSORT_CACHE_SIZE="32MB"
//   - SHELFSORT_ENCRYPTION_ENABLED=false
//   - SHELFSORT_ENCRYPTION_PASSWORD=""
//
// Organization:
//   - SHELFSORT_STRATEGY="communities" or "kmeans"
//   - SHELFSORT_SIMILARITY_THRESHOLD=0.7
//   - SHELFSORT_MAX_SHELVES=5
//   - SHELFSORT_MAX_FOLDERS=5
//   - SHELFSORT_K=0 (0 = min(documents, max shelves * max folders))
//   - SHELFSORT_SEED=42
//   - SHELFSORT_KMEANS_MAX_ITERATIONS=100
//   - SHELFSORT_COMMUNITY_MAX_ITERATIONS=100
//   - SHELFSORT_WORKERS=0 (0 = GOMAXPROCS)
//
// Logging:
//   - SHELFSORT_LOG_LEVEL="info"
//   - SHELFSORT_LOG_FORMAT="text" or "json"
//
// Schedule:
//   - SHELFSORT_SCHEDULE_ENABLED=false
//   - SHELFSORT_SCHEDULE_CRON="0 0 3 * * *"
//   - SHELFSORT_SCHEDULE_AUTO_APPLY=false
//   - SHELFSORT_SCHEDULE_TIMEOUT=10m
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Organization strategies.
const (
	StrategyCommunities = "communities"
	StrategyKMeans      = "kmeans"
)

// Config holds all shelfsort configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Organize OrganizeConfig `yaml:"organize"`
	Logging  LoggingConfig  `yaml:"logging"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// StorageConfig configures the document store.
type StorageConfig struct {
	// DataDir is the BadgerDB directory.
	DataDir string `yaml:"data_dir"`

	// InMemory keeps documents in memory only.
	InMemory bool `yaml:"in_memory"`

	// CacheSize is the Badger block cache size, e.g. "32MB".
	CacheSize string `yaml:"cache_size"`

	// EncryptionEnabled seals stored records with a key derived from
	// EncryptionPassword.
	EncryptionEnabled  bool   `yaml:"encryption_enabled"`
	EncryptionPassword string `yaml:"encryption_password"`
}

// OrganizeConfig configures clustering and location mapping.
type OrganizeConfig struct {
	Strategy            string  `yaml:"strategy"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxShelves          int     `yaml:"max_shelves"`
	MaxFolders          int     `yaml:"max_folders"`

	// K is the k-means cluster count. Zero picks
	// min(documents, MaxShelves*MaxFolders).
	K    int   `yaml:"k"`
	Seed int64 `yaml:"seed"`

	KMeansMaxIterations    int `yaml:"kmeans_max_iterations"`
	CommunityMaxIterations int `yaml:"community_max_iterations"`

	// Workers bounds similarity graph parallelism. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig configures periodic re-organization.
type ScheduleConfig struct {
	Enabled bool `yaml:"enabled"`

	// Cron is a six-field expression with seconds.
	Cron string `yaml:"cron"`

	// AutoApply persists changed suggestions after each run.
	AutoApply bool `yaml:"auto_apply"`

	// Timeout bounds a single scheduled run.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:   "./data",
			CacheSize: "32MB",
		},
		Organize: OrganizeConfig{
			Strategy:               StrategyCommunities,
			SimilarityThreshold:    0.7,
			MaxShelves:             5,
			MaxFolders:             5,
			Seed:                   42,
			KMeansMaxIterations:    100,
			CommunityMaxIterations: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Schedule: ScheduleConfig{
			Cron:    "0 0 3 * * *",
			Timeout: 10 * time.Minute,
		},
	}
}

// LoadFromEnv returns the defaults overridden by environment variables.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadFile returns the defaults overlaid with the YAML file at path.
// Fields the file leaves out keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Organize.Strategy = strings.ToLower(strings.TrimSpace(cfg.Organize.Strategy))
	return cfg, nil
}

// Load applies defaults, the optional file at path and the environment, then
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields whose environment variable is set.
func (c *Config) applyEnv() {
	c.Storage.DataDir = getEnv("SHELFSORT_DATA_DIR", c.Storage.DataDir)
	c.Storage.InMemory = getEnvBool("SHELFSORT_IN_MEMORY", c.Storage.InMemory)
	c.Storage.CacheSize = getEnv("SHELFSORT_CACHE_SIZE", c.Storage.CacheSize)
	c.Storage.EncryptionEnabled = getEnvBool("SHELFSORT_ENCRYPTION_ENABLED", c.Storage.EncryptionEnabled)
	c.Storage.EncryptionPassword = getEnv("SHELFSORT_ENCRYPTION_PASSWORD", c.Storage.EncryptionPassword)

	c.Organize.Strategy = strings.ToLower(getEnv("SHELFSORT_STRATEGY", c.Organize.Strategy))
	c.Organize.SimilarityThreshold = getEnvFloat("SHELFSORT_SIMILARITY_THRESHOLD", c.Organize.SimilarityThreshold)
	c.Organize.MaxShelves = getEnvInt("SHELFSORT_MAX_SHELVES", c.Organize.MaxShelves)
	c.Organize.MaxFolders = getEnvInt("SHELFSORT_MAX_FOLDERS", c.Organize.MaxFolders)
	c.Organize.K = getEnvInt("SHELFSORT_K", c.Organize.K)
	c.Organize.Seed = getEnvInt64("SHELFSORT_SEED", c.Organize.Seed)
	c.Organize.KMeansMaxIterations = getEnvInt("SHELFSORT_KMEANS_MAX_ITERATIONS", c.Organize.KMeansMaxIterations)
	c.Organize.CommunityMaxIterations = getEnvInt("SHELFSORT_COMMUNITY_MAX_ITERATIONS", c.Organize.CommunityMaxIterations)
	c.Organize.Workers = getEnvInt("SHELFSORT_WORKERS", c.Organize.Workers)

	c.Logging.Level = getEnv("SHELFSORT_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("SHELFSORT_LOG_FORMAT", c.Logging.Format)

	c.Schedule.Enabled = getEnvBool("SHELFSORT_SCHEDULE_ENABLED", c.Schedule.Enabled)
	c.Schedule.Cron = getEnv("SHELFSORT_SCHEDULE_CRON", c.Schedule.Cron)
	c.Schedule.AutoApply = getEnvBool("SHELFSORT_SCHEDULE_AUTO_APPLY", c.Schedule.AutoApply)
	c.Schedule.Timeout = getEnvDuration("SHELFSORT_SCHEDULE_TIMEOUT", c.Schedule.Timeout)
}

// Validate checks the configuration for values the organizer cannot run with.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("data directory required unless running in memory")
	}
	if c.Storage.EncryptionEnabled && c.Storage.EncryptionPassword == "" {
		return fmt.Errorf("encryption enabled but no password provided")
	}
	if _, err := ParseMemorySize(c.Storage.CacheSize); err != nil {
		return err
	}

	switch c.Organize.Strategy {
	case StrategyCommunities, StrategyKMeans:
	default:
		return fmt.Errorf("unknown strategy %q (want %s or %s)",
			c.Organize.Strategy, StrategyCommunities, StrategyKMeans)
	}
	if !(c.Organize.SimilarityThreshold >= 0 && c.Organize.SimilarityThreshold <= 1) {
		return fmt.Errorf("similarity threshold must be in [0, 1]: %g", c.Organize.SimilarityThreshold)
	}
	if c.Organize.MaxShelves < 1 {
		return fmt.Errorf("invalid max shelves: %d", c.Organize.MaxShelves)
	}
	if c.Organize.MaxFolders < 1 || c.Organize.MaxFolders > 26 {
		return fmt.Errorf("max folders must be in [1, 26]: %d", c.Organize.MaxFolders)
	}
	if c.Organize.K < 0 {
		return fmt.Errorf("invalid k: %d", c.Organize.K)
	}
	if c.Organize.KMeansMaxIterations < 1 || c.Organize.CommunityMaxIterations < 1 {
		return fmt.Errorf("iteration caps must be positive")
	}
	if c.Organize.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Organize.Workers)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	if c.Schedule.Enabled && c.Schedule.Cron == "" {
		return fmt.Errorf("schedule enabled but no cron expression provided")
	}
	return nil
}

// String returns a representation safe for logging; the encryption password
// is never included.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, InMemory: %v, Encrypted: %v, Strategy: %s, Threshold: %g, Shelves: %dx%d, Seed: %d, Schedule: %v}",
		c.Storage.DataDir, c.Storage.InMemory, c.Storage.EncryptionEnabled,
		c.Organize.Strategy, c.Organize.SimilarityThreshold,
		c.Organize.MaxShelves, c.Organize.MaxFolders, c.Organize.Seed,
		c.Schedule.Enabled,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// ParseMemorySize parses a human-readable size such as "512K", "32MB" or
// "1G". Empty and "0" yield 0. Anything else that is not a non-negative
// number with an optional K/M/G suffix is an error.
func ParseMemorySize(s string) (int64, error) {
	in := s
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" {
		return 0, nil
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "G")
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid memory size %q", in)
	}
	return val * multiplier, nil
}
