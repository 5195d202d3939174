// Package config loads the glitch configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/glitch/internal/permission"
)

// EnvDatabaseURL overrides database.url.
const EnvDatabaseURL = "GLITCH_DATABASE_URL"

type Config struct {
	LogLevel string         `yaml:"log_level"`
	LogFile  string         `yaml:"log_file"`
	Scan     ScanConfig     `yaml:"scan"`
	Database DatabaseConfig `yaml:"database"`
	Glitch   GlitchConfig   `yaml:"glitch"`
}

type ScanConfig struct {
	// Duration bounds a non-interactive scan; zero scans until interrupted.
	Duration          time.Duration `yaml:"duration" default:"10s"`
	AllowDuplicates   bool          `yaml:"allow_duplicates" default:"true"`
	PowerPollInterval time.Duration `yaml:"power_poll_interval" default:"2s"`
	// Permissions is auto, granted or denied.
	Permissions string `yaml:"permissions" default:"auto"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type GlitchConfig struct {
	Target   string        `yaml:"target" default:"GLITCH"`
	Interval time.Duration `yaml:"interval" default:"50ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "glitch", "config.yaml")
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads defaults only; a missing file at
// DefaultPath is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && path == DefaultPath():
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	if c.Scan.Duration < 0 {
		errs = append(errs, fmt.Errorf("scan.duration must not be negative, got %s", c.Scan.Duration))
	}
	if c.Scan.PowerPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("scan.power_poll_interval must be positive, got %s", c.Scan.PowerPollInterval))
	}
	if _, err := permission.ParseMode(c.Scan.Permissions); err != nil {
		errs = append(errs, fmt.Errorf("scan.permissions: %w", err))
	}
	if strings.TrimSpace(c.Glitch.Target) == "" {
		errs = append(errs, errors.New("glitch.target must not be empty"))
	}
	if c.Glitch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("glitch.interval must be positive, got %s", c.Glitch.Interval))
	}

	return errors.Join(errs...)
}

// PermissionMode returns the parsed scan permission policy.
func (c *Config) PermissionMode() permission.Mode {
	mode, err := permission.ParseMode(c.Scan.Permissions)
	if err != nil {
		return permission.ModeAuto
	}
	return mode
}
