package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/rover-telemetry-service/internal/validation"
)

// Config holds service configuration loaded from .env, YAML and env.
// Every field has a usable default; no configuration file is required.
type Config struct {
	ServerPort   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	RequestTimeout      time.Duration
	CommandMaxBodyBytes int64

	RateLimitRPS   int // 0 disables the limiter
	RateLimitBurst int

	CORSAllowedOrigins []string

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	ReadyDelay           time.Duration
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	TrackedCommands []string

	Log LogSettings
}

// LogSettings configures the logger. File is optional.
type LogSettings struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type fileConfig struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Request struct {
		Timeout             string `yaml:"timeout"`
		CommandMaxBodyBytes int64  `yaml:"command_max_body_bytes"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		ReadyDelay           string `yaml:"ready_delay"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Metrics struct {
		TrackedCommands []string `yaml:"tracked_commands"`
	} `yaml:"metrics"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
}

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom loads {dir}/.env (existing env wins), then {dir}/config/{ENV_NAME}.yaml
// (default dev), then applies PORT, LOG_LEVEL and LOG_FILE overrides.
// Missing files are not errors.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.ReadTimeout = parseDuration(fc.Server.ReadTimeout, 10*time.Second)
	cfg.WriteTimeout = parseDuration(fc.Server.WriteTimeout, 10*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.CommandMaxBodyBytes = fc.Request.CommandMaxBodyBytes
	if cfg.CommandMaxBodyBytes <= 0 {
		cfg.CommandMaxBodyBytes = 1 << 20
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst

	cfg.CORSAllowedOrigins = trimAll(fc.CORS.AllowedOrigins)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.ReadyDelay = parseDurationOrZero(fc.Lifecycle.ReadyDelay, 0)
	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.TrackedCommands = trimAll(fc.Metrics.TrackedCommands)

	cfg.Log = LogSettings{
		Level:      fc.Log.Level,
		File:       strings.TrimSpace(fc.Log.File),
		MaxSizeMB:  fc.Log.MaxSizeMB,
		MaxBackups: fc.Log.MaxBackups,
		MaxAgeDays: fc.Log.MaxAgeDays,
		Compress:   fc.Log.Compress,
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate performs post-load validation of configuration values.
// Rejects negative rate limits, an invalid port and unusable tracked command names.
// Raises burst to rps when smaller.
func validate(cfg *Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("reliability.rate_limit_rps must not be negative, got %d", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("reliability.rate_limit_burst must not be negative, got %d", cfg.RateLimitBurst)
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < cfg.RateLimitRPS {
		cfg.RateLimitBurst = cfg.RateLimitRPS
	}
	port, err := strconv.Atoi(cfg.ServerPort)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server.port must be a TCP port, got %q", cfg.ServerPort)
	}
	if cfg.ReadyDelay < 0 {
		cfg.ReadyDelay = 0
	}
	for i, name := range cfg.TrackedCommands {
		normalized, err := validation.ValidateCommandName(name)
		if err != nil {
			return fmt.Errorf("metrics.tracked_commands[%d] %q: %w", i, name, err)
		}
		cfg.TrackedCommands[i] = normalized
	}
	return nil
}
