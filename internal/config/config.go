/*
Package config loads listing-ranker configuration.

Values are layered, later layers winning: built-in defaults, an optional YAML
file, then LISTING_RANKER_* environment variables.

Schema:

	storage:
	  backend: sqlite        # sqlite | badger | memory
	  path: ""               # default ~/.listing-ranker/state.db (or badger/)
	  scope: global          # learning state id: global, tenant or user
	  retention: 720h        # search history kept by cleanup
	learning:
	  sync_writes: true      # persist inside each feedback call
	  max_log: 1000          # interaction log capacity (1..1000)
	ranking:
	  workers: 0             # parallel scorers, 0 = GOMAXPROCS
	log:
	  level: info
	  format: console        # console | json
	metrics:
	  addr: ""               # e.g. 127.0.0.1:9464, empty disables
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/storage"
)

// Config represents the root configuration structure.
type Config struct {
	Storage  StorageConfig  `koanf:"storage"`
	Learning LearningConfig `koanf:"learning"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// StorageConfig selects where learning state lives.
type StorageConfig struct {
	Backend   string        `koanf:"backend"`
	Path      string        `koanf:"path"`
	Scope     string        `koanf:"scope"`
	Retention time.Duration `koanf:"retention"`
}

// LearningConfig tunes the feedback processor.
type LearningConfig struct {
	SyncWrites bool `koanf:"sync_writes"`
	MaxLog     int  `koanf:"max_log"`
}

// RankingConfig tunes ranking passes.
type RankingConfig struct {
	Workers int `koanf:"workers"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   storage.BackendSQLite,
			Scope:     learning.DefaultScope,
			Retention: 30 * 24 * time.Hour,
		},
		Learning: LearningConfig{
			SyncWrites: true,
			MaxLog:     learning.DefaultMaxLog,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.listing-ranker/config.yaml
func GetDefaultConfigPath() (string, error) {
	dir, err := storage.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// findConfigFile returns the first existing default config file, or "".
func findConfigFile() string {
	candidates := []string{"listing-ranker.yaml", "listing-ranker.yml"}
	if p, err := GetDefaultConfigPath(); err == nil {
		candidates = append(candidates, p)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LearningOptions maps the config onto learner options.
func (c *Config) LearningOptions() learning.Options {
	return learning.Options{
		Scope:      c.Storage.Scope,
		MaxLog:     c.Learning.MaxLog,
		SyncWrites: c.Learning.SyncWrites,
	}
}

// OpenStorage returns an uninitialized store for the configured backend.
func (c *Config) OpenStorage() (storage.Storage, error) {
	store, err := storage.New(c.Storage.Backend, c.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}
