package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds engine and server settings. Zero values are filled in from
// Default, then the YAML file, then environment overrides.
type Config struct {
	DBPath         string  `yaml:"db_path"`
	Port           int     `yaml:"port"`
	MinSampleSize  int     `yaml:"min_sample_size"`
	Confidence     float64 `yaml:"confidence"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	AuthToken      string  `yaml:"auth_token"` // empty means generate on startup
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DBPath:         "./splitpick.db",
		Port:           8080,
		MinSampleSize:  30,
		Confidence:     0.95,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns defaults with environment overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SP_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("SP_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
}

func (c Config) validate() error {
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("confidence must be in (0, 1), got %v", c.Confidence)
	}
	if c.MinSampleSize < 1 {
		return fmt.Errorf("min_sample_size must be positive, got %d", c.MinSampleSize)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	return nil
}
