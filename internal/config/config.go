// Package config loads service configuration from an optional YAML file,
// with environment variables taking precedence over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds everything the binaries need to run. Zero values mean
// "feature disabled" for the optional pieces (sync source, scheduler).
type Config struct {
	Port               string   `yaml:"port"`
	DBPath             string   `yaml:"db_path"`
	SimpleFINAccessURL string   `yaml:"simplefin_access_url"`
	SyncDaysBack       int      `yaml:"sync_days_back"`
	SyncInterval       Duration `yaml:"sync_interval"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Port:         "8080",
		DBPath:       "ledgerkeep.db",
		SyncDaysBack: 30,
	}
}

// Load reads the YAML file at path (skipped when path is empty), then
// applies environment overrides: LEDGERKEEP_PORT, LEDGERKEEP_DB and
// SIMPLEFIN_ACCESS_URL.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv("LEDGERKEEP_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LEDGERKEEP_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SIMPLEFIN_ACCESS_URL"); v != "" {
		cfg.SimpleFINAccessURL = v
	}

	if cfg.SyncDaysBack < 1 {
		cfg.SyncDaysBack = 30
	}

	return cfg, nil
}
