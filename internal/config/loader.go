package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LISTING_RANKER_"

// envKeys maps environment suffixes to config paths. Keys contain
// underscores, so the mapping cannot be derived by splitting.
var envKeys = map[string]string{
	"storage_backend":      "storage.backend",
	"storage_path":         "storage.path",
	"storage_scope":        "storage.scope",
	"storage_retention":    "storage.retention",
	"learning_sync_writes": "learning.sync_writes",
	"learning_max_log":     "learning.max_log",
	"ranking_workers":      "ranking.workers",
	"log_level":            "log.level",
	"log_format":           "log.format",
	"metrics_addr":         "metrics.addr",
}

// Load reads configuration from the first default config file found,
// or defaults plus environment if there is none.
func Load() (*Config, error) {
	return load(findConfigFile(), false)
}

// LoadFrom reads configuration from path, which must exist.
func LoadFrom(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, required bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(NewConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		// A default file that vanished after lookup is not an error.
		if err := loadFile(k, path); err != nil && (required || !isNotFound(err)) {
			return nil, err
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(key string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("failed to decode configuration: %v", err),
			Hint:    "Check value types (durations like 720h, booleans true/false)",
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Hint:    "Fix the value or remove it to use the default",
		}
	}

	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'listing-ranker config init' to create configuration",
			}
		}
		return fmt.Errorf("failed to access config: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsPermission(err) {
			return &PermissionError{
				Path: path,
				Op:   "read",
				Fix:  getPermissionFix(path, "read"),
			}
		}
		return &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("YAML parse error: %v", err),
			Hint:    "Restore from .bak file if available",
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *ConfigNotFoundError
	return errors.As(err, &nf)
}
