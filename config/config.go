// Package config loads the pipeline configuration. Every setting has a
// built-in default matching the production GZM deployment, so running
// without a config file works.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/MKuranowski/GZMGTFS/calendar"
	"github.com/MKuranowski/GZMGTFS/catalog"
)

// CatalogConfig identifies the CKAN dataset the feeds come from.
type CatalogConfig struct {
	Endpoint  string `yaml:"endpoint" validate:"required,url"`
	DatasetID string `yaml:"dataset_id" validate:"required"`
}

// Config is the root configuration.
type Config struct {
	Catalog            CatalogConfig `yaml:"catalog"`
	CacheDir           string        `yaml:"cache_dir" validate:"required"`
	CalendarExceptions string        `yaml:"calendar_exceptions_url" validate:"required,url"`
	HTTPTimeoutSeconds int           `yaml:"http_timeout_seconds" validate:"gte=0"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		Catalog: CatalogConfig{
			Endpoint:  catalog.DefaultEndpoint,
			DatasetID: catalog.DefaultDatasetID,
		},
		CacheDir:           "_workspace/gzm_files",
		CalendarExceptions: calendar.DefaultURL,
		HTTPTimeoutSeconds: 60,
	}
}

// Load reads and validates a YAML config file layered over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// HTTPTimeout returns the configured HTTP timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
