package config

import (
	"fmt"

	"github.com/khanglvm/listing-ranker/internal/learning"
	"github.com/khanglvm/listing-ranker/internal/storage"
)

var validFormats = map[string]bool{"console": true, "json": true}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendSQLite, storage.BackendBadger, storage.BackendMemory:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q (want sqlite, badger or memory)", c.Storage.Backend)
	}

	if c.Storage.Scope == "" {
		return fmt.Errorf("storage.scope: must not be empty")
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention: must not be negative")
	}
	if c.Learning.MaxLog <= 0 || c.Learning.MaxLog > learning.DefaultMaxLog {
		return fmt.Errorf("learning.max_log: must be between 1 and %d, got %d", learning.DefaultMaxLog, c.Learning.MaxLog)
	}
	if c.Ranking.Workers < 0 {
		return fmt.Errorf("ranking.workers: must not be negative, got %d", c.Ranking.Workers)
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format: unknown format %q (want console or json)", c.Log.Format)
	}

	return nil
}
