package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr          = "127.0.0.1:8080"
	DefaultLogDir        = "logs"
	DefaultTickSeconds   = 60
	DefaultMaxConcurrent = 10
	DefaultRatePerMin    = 120
	DefaultRateBurst     = 60
)

type Config struct {
	Addr                string `yaml:"addr"`                  // API bind address
	LogDir              string `yaml:"log_dir"`               // logs directory
	DatabasePath        string `yaml:"database_path"`         // sqlite file; empty means in-memory store
	GlobalpingURL       string `yaml:"globalping_url"`        // measurement provider base URL; empty means the public API
	TickSeconds         int    `yaml:"tick_seconds"`          // scheduler tick period
	MaxConcurrentChecks int    `yaml:"max_concurrent_checks"` // global concurrency ceiling
	RateLimitPerMin     int    `yaml:"rate_limit_per_min"`    // API rate limit; 0 disables
	RateLimitBurst      int    `yaml:"rate_limit_burst"`
}

func (c Config) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// Load reads an optional YAML config file, applies environment overrides on
// top and fills in defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	fromEnv(&cfg)
	ApplyDefaults(&cfg)
	return cfg, nil
}

func fromEnv(cfg *Config) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("GLOBALPING_URL"); v != "" {
		cfg.GlobalpingURL = v
	}
	if n, ok := envInt("TICK_SECONDS"); ok {
		cfg.TickSeconds = n
	}
	if n, ok := envInt("MAX_CONCURRENT_CHECKS"); ok {
		cfg.MaxConcurrentChecks = n
	}
	if n, ok := envInt("RATE_LIMIT_PER_MIN"); ok {
		cfg.RateLimitPerMin = n
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func ApplyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	if cfg.TickSeconds <= 0 {
		cfg.TickSeconds = DefaultTickSeconds
	}
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = DefaultMaxConcurrent
	}
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = DefaultRatePerMin
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = DefaultRateBurst
	}
}
