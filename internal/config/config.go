// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

// Package config loads the processor's configuration from a TOML file
// on disk. Every key that has a default can be overridden by the
// environment variable MAGNETS_ plus the upper-cased key (for example
// MAGNETS_LOGLEVEL); databasePath, which has no default, is read from
// MAGNETS__DATABASE_PATH.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix is the prefix every environment variable override carries,
// e.g. MAGNETS__DATABASE_PATH overrides databasePath.
const envPrefix = "MAGNETS"

// defaultDatabaseFilename is the name of the SQLite file created next
// to the config file when databasePath is left unset.
const defaultDatabaseFilename = "magnets.db"

// Config holds every setting the processor needs at startup. Fields
// are flat (no nested tables) to keep the TOML file approachable for
// hand-editing, matching the teacher's own top-level config shape.
type Config struct {
	Host string `toml:"host" mapstructure:"host"`
	Port int    `toml:"port" mapstructure:"port"`

	DatabasePath string `toml:"databasePath" mapstructure:"databasePath"`

	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	AnilistUserAgent string `toml:"anilistUserAgent" mapstructure:"anilistUserAgent"`

	ShowSyncInterval     time.Duration `toml:"showSyncInterval" mapstructure:"showSyncInterval"`
	ScheduleSyncInterval time.Duration `toml:"scheduleSyncInterval" mapstructure:"scheduleSyncInterval"`
	NyaaPollInterval     time.Duration `toml:"nyaaPollInterval" mapstructure:"nyaaPollInterval"`
	NyaaPageRequestDelay time.Duration `toml:"nyaaPageRequestDelay" mapstructure:"nyaaPageRequestDelay"`

	// configDir is the directory the config file was loaded from, used
	// to resolve DatabasePath and LogPath when they are left relative.
	configDir string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 7475)
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("metricsEnabled", true)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 7476)
	v.SetDefault("anilistUserAgent", "magnets-moe-processor")
	v.SetDefault("showSyncInterval", 6*time.Hour)
	v.SetDefault("scheduleSyncInterval", 30*time.Minute)
	v.SetDefault("nyaaPollInterval", time.Minute)
	v.SetDefault("nyaaPageRequestDelay", 2*time.Second)
}

// New loads configuration from configPath, applying defaults first and
// environment variable overrides last. configPath need not exist: a
// missing file is treated as an empty one, so a deployment can be
// driven entirely by environment variables.
func New(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", configPath, err)
	}
	cfg.configDir = filepath.Dir(configPath)

	// databasePath has no default, so AutomaticEnv's key-replacer based
	// derivation (which only folds dots, not camelCase) never produces
	// MAGNETS__DATABASE_PATH on its own; bind it to that exact name.
	if err := v.BindEnv("databasePath", envPrefix+"__DATABASE_PATH"); err != nil {
		return nil, fmt.Errorf("cannot bind databasePath env var: %w", err)
	}
	if p := v.GetString("databasePath"); p != "" {
		cfg.DatabasePath = p
	}

	return &cfg, nil
}

// GetDatabasePath returns the SQLite file path: DatabasePath verbatim
// if set (absolute or relative to the working directory), otherwise
// defaultDatabaseFilename next to the config file.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.configDir, defaultDatabaseFilename)
}

// Addr returns the admin HTTP listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddr returns the metrics listen address in host:port form.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}
