// Package config loads runtime configuration for cmd/pmm, grounded on the
// teacher's layered approach: viper drives the primary YAML/env-bound
// config, BurntSushi/toml reads an optional on-disk defaults file, and a
// LocalConfig escape hatch (internal/config/local_config.go in the
// teacher) reads a subset of fields directly when viper hasn't been
// initialized yet.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LocalConfigFile is the project-local config file checked by
// LoadLocalConfig, mirroring the teacher's local_config.go convention of a
// narrow, direct-read config that works without any viper setup.
const LocalConfigFile = ".pmm.yaml"

// LocalConfig is the narrow field set read directly off disk, bypassing
// viper, for early checks before a full Load (e.g. deciding which backend
// to report in a status line). Grounded on the teacher's
// internal/config/local_config.go: a direct yaml.v3 read that returns a
// zero-value struct on any error rather than surfacing it, since callers
// treat this as a best-effort convenience, not a required config source.
type LocalConfig struct {
	Backend Backend `yaml:"backend"`
	Color   *bool   `yaml:"color"`
}

// LoadLocalConfig reads dir/LocalConfigFile directly via yaml.v3. Any
// error (missing file, malformed YAML) yields a zero-value LocalConfig,
// matching LoadLocalConfig's teacher-side failure semantics.
func LoadLocalConfig(dir string) LocalConfig {
	var lc LocalConfig
	data, err := os.ReadFile(dir + string(os.PathSeparator) + LocalConfigFile)
	if err != nil {
		return lc
	}
	_ = yaml.Unmarshal(data, &lc)
	return lc
}

// Backend selects the ledger storage engine.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Config is the full set of fields cmd/pmm needs to start a server or run
// a one-shot command.
type Config struct {
	LedgerPath string  `mapstructure:"ledger_path" toml:"ledger_path"`
	Backend    Backend `mapstructure:"backend" toml:"backend"`
	NATSURL    string  `mapstructure:"nats_url" toml:"nats_url"`
	Caller     string  `mapstructure:"caller" toml:"caller"`
	Color      bool    `mapstructure:"color" toml:"color"`
}

func defaults() Config {
	return Config{
		LedgerPath: "pmm.db",
		Backend:    BackendSQLite,
		Caller:     "cli",
		Color:      true,
	}
}

// Load builds a Config by layering, lowest precedence first: built-in
// defaults, an optional TOML defaults file, an optional YAML config file,
// and PMM_-prefixed environment variables.
func Load(yamlPath, tomlDefaultsPath string) (Config, error) {
	cfg := defaults()

	if tomlDefaultsPath != "" {
		if fromTOML, err := loadTOMLDefaults(tomlDefaultsPath); err != nil {
			return cfg, fmt.Errorf("config: read toml defaults: %w", err)
		} else {
			cfg = mergeDefaults(cfg, fromTOML)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("ledger_path", cfg.LedgerPath)
	v.SetDefault("backend", string(cfg.Backend))
	v.SetDefault("nats_url", cfg.NATSURL)
	v.SetDefault("caller", cfg.Caller)
	v.SetDefault("color", cfg.Color)
	v.SetEnvPrefix("PMM")
	v.AutomaticEnv()

	if yamlPath != "" {
		v.SetConfigFile(yamlPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return cfg, fmt.Errorf("config: read yaml config: %w", err)
				}
			}
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return out, nil
}

func loadTOMLDefaults(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}

// mergeDefaults overlays non-zero fields of override onto base.
func mergeDefaults(base, override Config) Config {
	if override.LedgerPath != "" {
		base.LedgerPath = override.LedgerPath
	}
	if override.Backend != "" {
		base.Backend = override.Backend
	}
	if override.NATSURL != "" {
		base.NATSURL = override.NATSURL
	}
	if override.Caller != "" {
		base.Caller = override.Caller
	}
	base.Color = base.Color || override.Color
	return base
}
