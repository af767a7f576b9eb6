// Package config loads dashboard configuration from an optional YAML file
// overlaid with environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Extraction API endpoint
	APIURL         string
	RequestTimeout time.Duration
	HealthInterval time.Duration

	// Per-scrape defaults
	DefaultModel   string
	DefaultRateLim string
	DefaultStealth string

	// Local scrape history (SQLite)
	HistoryPath string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML schema of the config file. Durations are written
// as Go duration strings ("30s", "2m").
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	RequestTimeout string `yaml:"request_timeout"`
	HealthInterval string `yaml:"health_interval"`
	DefaultModel   string `yaml:"default_model"`
	DefaultRateLim string `yaml:"default_rate_limit"`
	DefaultStealth string `yaml:"default_stealth"`
	HistoryPath    string `yaml:"history_path"`
	LogFile        string `yaml:"log_file"`
	LogLevel       string `yaml:"log_level"`
}

// Load builds the configuration: defaults, then the config file (if any),
// then environment variables. A malformed config file is an error; a
// missing one is not.
func Load() (Config, error) {
	cfg := Config{
		APIURL:         "http://localhost:8000",
		RequestTimeout: 2 * time.Minute,
		HealthInterval: 5 * time.Second,
		DefaultModel:   "qwen2.5-coder:7b",
		DefaultRateLim: "normal",
		DefaultStealth: "off",
		HistoryPath:    defaultDataPath("history.db"),
		LogFile:        defaultDataPath("scrapouille.log"),
		LogLevel:       slog.LevelInfo,
	}

	if err := cfg.applyFile(configFilePath()); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// configFilePath returns SCRAPOUILLE_CONFIG if set, otherwise the XDG
// location under the user's config directory.
func configFilePath() string {
	if p := os.Getenv("SCRAPOUILLE_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "scrapouille", "config.yaml")
}

func defaultDataPath(name string) string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", name)
	}
	return filepath.Join(dir, ".local", "share", "scrapouille", name)
}

func (c *Config) applyFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.APIURL, fc.APIURL)
	setString(&c.DefaultModel, fc.DefaultModel)
	setString(&c.DefaultRateLim, fc.DefaultRateLim)
	setString(&c.DefaultStealth, fc.DefaultStealth)
	setString(&c.HistoryPath, fc.HistoryPath)
	setString(&c.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		c.LogLevel = ParseLogLevel(fc.LogLevel)
	}
	if err := setDuration(&c.RequestTimeout, fc.RequestTimeout); err != nil {
		return fmt.Errorf("config file %s: request_timeout: %w", path, err)
	}
	if err := setDuration(&c.HealthInterval, fc.HealthInterval); err != nil {
		return fmt.Errorf("config file %s: health_interval: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.APIURL, os.Getenv("SCRAPOUILLE_API_URL"))
	setString(&c.DefaultModel, os.Getenv("SCRAPOUILLE_MODEL"))
	setString(&c.HistoryPath, os.Getenv("SCRAPOUILLE_HISTORY"))
	setString(&c.LogFile, os.Getenv("SCRAPOUILLE_LOG_FILE"))
	if lvl := os.Getenv("SCRAPOUILLE_LOG_LEVEL"); lvl != "" {
		c.LogLevel = ParseLogLevel(lvl)
	}
	if t := os.Getenv("SCRAPOUILLE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			c.RequestTimeout = d
		}
	}
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, val string) error {
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// ParseLogLevel maps a level name to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
