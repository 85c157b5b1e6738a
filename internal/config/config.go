// Package config loads the statecraft runtime configuration: a YAML file
// layered over built-in defaults, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/statecraft/internal/action"
	"github.com/talgya/statecraft/internal/lut"
	"github.com/talgya/statecraft/internal/scenario"
)

// Config holds every tunable of a statecraft run.
type Config struct {
	DBPath     string `yaml:"db_path"`
	ArchiveDir string `yaml:"archive_dir"` // empty disables the telemetry archive
	Port       int    `yaml:"port"`        // 0 disables the HTTP API
	AdminKey   string `yaml:"-"`           // env only
	RelayKey   string `yaml:"-"`           // env only
	LogLevel   string `yaml:"log_level"`

	TickIntervalMs     int    `yaml:"tick_interval_ms"`
	MaxTicks           uint64 `yaml:"max_ticks"` // 0 runs until interrupted
	SnapshotEveryTicks uint64 `yaml:"snapshot_every_ticks"`
	LogLimit           int    `yaml:"log_limit"`
	Workers            int    `yaml:"workers"`

	Tables   lut.Params           `yaml:"tables"`
	Pruning  action.PruningConfig `yaml:"pruning"`
	Scenario scenario.Config      `yaml:"scenario"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DBPath:             "data/statecraft.db",
		ArchiveDir:         "data/archive",
		Port:               8080,
		LogLevel:           "info",
		TickIntervalMs:     1000,
		SnapshotEveryTicks: 50,
		LogLimit:           10000,
		Workers:            1,
		Tables:             lut.DefaultParams(),
		Pruning:            action.DefaultPruning(),
		Scenario:           scenario.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DBPath = envOrDefault("STATECRAFT_DB", c.DBPath)
	c.AdminKey = envOrDefault("STATECRAFT_ADMIN_KEY", c.AdminKey)
	c.RelayKey = envOrDefault("STATECRAFT_RELAY_KEY", c.RelayKey)
	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("STATECRAFT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STATECRAFT_PORT: %w", err)
		}
		c.Port = port
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate reports every configuration error at once.
func (c Config) Validate() error {
	var errs []error

	p := c.Pruning
	if p.Attack < 0 || p.Fortify < 0 || p.Invest < 0 || p.Research < 0 || p.Diplomacy < 0 {
		errs = append(errs, fmt.Errorf("pruning K must not be negative: %+v", p))
	}

	t := c.Tables
	if t.SigmoidSteps < 2 || t.LogRatioSteps < 2 {
		errs = append(errs, errors.New("tables need at least 2 samples"))
	}
	if t.SigmoidMin >= t.SigmoidMax {
		errs = append(errs, fmt.Errorf("sigmoid domain [%v, %v] is empty", t.SigmoidMin, t.SigmoidMax))
	}
	if t.LogRatioMin <= 0 || t.LogRatioMin >= t.LogRatioMax {
		errs = append(errs, fmt.Errorf("log-ratio domain [%v, %v] must be positive and non-empty", t.LogRatioMin, t.LogRatioMax))
	}
	if t.DiscountRate <= 0 || t.DiscountRate > 1 {
		errs = append(errs, fmt.Errorf("discount rate %v outside (0, 1]", t.DiscountRate))
	}
	if t.DiscountHorizon < 1 {
		errs = append(errs, fmt.Errorf("discount horizon %d must be positive", t.DiscountHorizon))
	}
	if t.KernelMaxDistance < 0 || t.KernelDecay < 0 {
		errs = append(errs, errors.New("distance kernel parameters must not be negative"))
	}

	if c.TickIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("tick_interval_ms %d is negative", c.TickIntervalMs))
	}
	if c.LogLimit < 0 || c.Workers < 1 {
		errs = append(errs, fmt.Errorf("log_limit %d and workers %d out of range", c.LogLimit, c.Workers))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scenario.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scenario: %w", err))
	}
	return errors.Join(errs...)
}

// TickInterval returns the wall-clock time between ticks at speed 1.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// SlogLevel returns the configured log level, falling back to Info.
func (c Config) SlogLevel() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel maps a level name such as "debug" or "WARN" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// YAML renders the configuration, as recorded alongside each run.
func (c Config) YAML() (string, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}
