package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/rpc"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverS3     = "s3"
	DriverRemote = "remote"
)

// Config selects and configures a dataset store backend.
type Config struct {
	Driver    string            `yaml:"driver"`
	Dir       string            `yaml:"dir"`
	S3        S3Config          `yaml:"s3"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"-"`
	Timeout   time.Duration     `yaml:"timeout"`
	CacheSize int               `yaml:"cache_size"` // 0 disables the read cache
}

// Open constructs the configured store. Persistent backends are wrapped in
// a CachedStore when CacheSize is positive.
func Open(ctx context.Context, cfg Config) (dataset.Store, error) {
	var store dataset.Store
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file datastore requires a directory")
		}
		fs, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		store = fs
	case DriverS3:
		s3, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		store = s3
	case DriverRemote:
		rs, err := NewRemoteStore(rpc.Config{BaseURL: cfg.URL, Headers: cfg.Headers, Timeout: cfg.Timeout})
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		return nil, fmt.Errorf("unknown datastore driver %q", cfg.Driver)
	}

	if cfg.CacheSize > 0 {
		return NewCachedStore(store, cfg.CacheSize)
	}
	return store, nil
}
