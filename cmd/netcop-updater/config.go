package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"netcop-updater/internal/database"
	"netcop-updater/internal/services/catalog"
	"netcop-updater/internal/services/notify"
	"netcop-updater/internal/services/tracker"
)

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Syslog bool   `yaml:"syslog"`
	Tag    string `yaml:"tag"`
}

type Config struct {
	Database database.Config `yaml:"database"`
	Catalog  catalog.Config  `yaml:"catalog"`

	Updater struct {
		VersionFile string        `yaml:"version_file"`
		RunTimeout  time.Duration `yaml:"run_timeout"`
		Migrate     bool          `yaml:"migrate"`
	} `yaml:"updater"`

	Redis notify.Config `yaml:"redis"`

	Logging LoggingConfig `yaml:"logging"`
}

func loadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverPostgres
	}
	if c.Database.Driver == database.DriverPostgres {
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
		if c.Database.MaxConnections == 0 {
			c.Database.MaxConnections = 2
		}
		if c.Database.MaxIdleConnections == 0 {
			c.Database.MaxIdleConnections = 1
		}
	}
	if c.Updater.VersionFile == "" {
		c.Updater.VersionFile = tracker.DefaultVersionFile
	}
	if c.Updater.RunTimeout == 0 {
		c.Updater.RunTimeout = 5 * time.Minute
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Tag == "" {
		c.Logging.Tag = "netcop-updater"
	}
}

func (c *Config) validate() error {
	if c.Catalog.VersionURL == "" {
		return fmt.Errorf("catalog.version_url is required")
	}
	if c.Catalog.DownloadURL == "" {
		return fmt.Errorf("catalog.download_url is required")
	}
	if c.Database.Driver == database.DriverSQLite && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when redis is enabled")
	}
	return nil
}
