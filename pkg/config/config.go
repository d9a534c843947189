// Package config loads the Vizier configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (VIZIER_*)
//  2. Config file (<config dir>/config.yaml if it exists)
//  3. Defaults (Default())
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/vizier/pkg/datastore"
)

// FileName is the name of the config file inside the config directory.
const FileName = "config.yaml"

// Viztrail store backends.
const (
	ViztrailsFilesystem = "filesystem"
	ViztrailsSQLite     = "sqlite"
	ViztrailsMemory     = "memory"
)

// Dataset store backends.
const (
	DatasetsMemory     = "memory"
	DatasetsFilesystem = "filesystem"
	DatasetsS3         = "s3"
	DatasetsRPC        = "rpc"
)

// Environment variables.
const (
	EnvConfigDir       = "VIZIER_CONFIG_DIR"
	EnvDataDir         = "VIZIER_DATA_DIR"
	EnvViztrailBackend = "VIZIER_VIZTRAIL_BACKEND"
	EnvDatasetBackend  = "VIZIER_DATASET_BACKEND"
	EnvEngineURL       = "VIZIER_ENGINE_URL"
)

// Config is the process configuration.
type Config struct {
	// DataDir holds viztrails, datasets and uploaded files. Defaults to
	// the config directory.
	DataDir   string          `yaml:"data_dir"`
	EnvID     string          `yaml:"env_id"`
	Viztrails ViztrailsConfig `yaml:"viztrails"`
	Datasets  DatasetsConfig  `yaml:"datasets"`
	S3        S3Config        `yaml:"s3"`
	Engine    EngineConfig    `yaml:"engine"`
}

// ViztrailsConfig selects the viztrail store.
type ViztrailsConfig struct {
	Backend string `yaml:"backend"`
}

// DatasetsConfig selects the dataset store.
type DatasetsConfig struct {
	Backend   string `yaml:"backend"`
	CacheSize int    `yaml:"cache_size"`
}

// S3Config locates the bucket of the s3 dataset backend. Keys are read
// from the credential store.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// EngineConfig locates the delegated engine. It is used only with the rpc
// dataset backend, where it serves both snapshots and lenses. Every other
// backend runs lenses in process.
type EngineConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// Credential names the credential store entry holding the bearer token.
	Credential string `yaml:"credential"`
}

// Default returns the default configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		DataDir:   dir,
		EnvID:     "default",
		Viztrails: ViztrailsConfig{Backend: ViztrailsFilesystem},
		Datasets:  DatasetsConfig{Backend: DatasetsFilesystem, CacheSize: 64},
		Engine:    EngineConfig{Timeout: 30 * time.Second},
	}
}

// DefaultDir returns the config directory: VIZIER_CONFIG_DIR or ~/.vizier.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".vizier"), nil
}

// Load reads dir/config.yaml when present, applies environment overrides
// and validates the result.
func Load(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	cfg.applyEnv()
	if cfg.DataDir == "" {
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to dir/config.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvViztrailBackend)); v != "" {
		c.Viztrails.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatasetBackend)); v != "" {
		c.Datasets.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvEngineURL)); v != "" {
		c.Engine.URL = v
	}
}

// Validate checks backend names and the settings each backend requires.
func (c *Config) Validate() error {
	switch c.Viztrails.Backend {
	case ViztrailsFilesystem, ViztrailsSQLite, ViztrailsMemory:
	default:
		return fmt.Errorf("unknown viztrail backend %q", c.Viztrails.Backend)
	}

	switch c.Datasets.Backend {
	case DatasetsMemory, DatasetsFilesystem:
	case DatasetsS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 dataset backend requires a bucket")
		}
	case DatasetsRPC:
		if c.Engine.URL == "" {
			return fmt.Errorf("rpc dataset backend requires engine.url")
		}
	default:
		return fmt.Errorf("unknown dataset backend %q", c.Datasets.Backend)
	}

	if c.Datasets.CacheSize < 0 {
		return fmt.Errorf("datasets.cache_size must not be negative, got %d", c.Datasets.CacheSize)
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout must not be negative, got %s", c.Engine.Timeout)
	}
	return nil
}

// DatastoreConfig translates the dataset settings into a datastore.Config.
// The s3 access keys are left for the caller to fill from the credential
// store.
func (c *Config) DatastoreConfig() datastore.Config {
	dc := datastore.Config{
		CacheSize: c.Datasets.CacheSize,
		Timeout:   c.Engine.Timeout,
	}
	switch c.Datasets.Backend {
	case DatasetsMemory:
		dc.Driver = datastore.DriverMemory
		dc.CacheSize = 0
	case DatasetsFilesystem:
		dc.Driver = datastore.DriverFile
		dc.Dir = filepath.Join(c.DataDir, "datasets")
	case DatasetsS3:
		dc.Driver = datastore.DriverS3
		dc.S3 = datastore.S3Config{
			Bucket:    c.S3.Bucket,
			Region:    c.S3.Region,
			Endpoint:  c.S3.Endpoint,
			Prefix:    c.S3.Prefix,
			PathStyle: c.S3.PathStyle,
		}
	case DatasetsRPC:
		dc.Driver = datastore.DriverRemote
		dc.URL = c.Engine.URL
	}
	return dc
}

// ViztrailsPath returns the location of the viztrail store: a directory
// for the filesystem backend, a database file for sqlite.
func (c *Config) ViztrailsPath() string {
	if c.Viztrails.Backend == ViztrailsSQLite {
		return filepath.Join(c.DataDir, "vizier.db")
	}
	return c.DataDir
}

// FilesDir returns the directory of uploaded files.
func (c *Config) FilesDir() string {
	return c.DataDir
}
