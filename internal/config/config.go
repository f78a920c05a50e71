package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// UnmarshalText parses values such as "30/min".
func (r *RateLimitConfig) UnmarshalText(text []byte) error {
	parsed, err := parseRateLimit(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// LogConfig controls the global zap logger.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL    string          `env:"DATABASE_URL"`
	JWTSecret      string          `env:"JWT_SECRET" envDefault:"dev-secret"`
	JWTAudience    string          `env:"JWT_AUDIENCE"`
	Port           string          `env:"PORT" envDefault:"8080"`
	WorkerBaseURL  string          `env:"WORKER_BASE_URL" envDefault:"http://worker:9000"`
	RateLimitMerge RateLimitConfig `env:"RATE_LIMIT_MERGE" envDefault:"30/min"`
	// Separate bucket for worker-backed extraction.
	RateLimitExtract RateLimitConfig `env:"RATE_LIMIT_EXTRACT" envDefault:"10/min"`
	PhoneRegion      string          `env:"PHONE_REGION" envDefault:"ES"`
	NameMatchLimit   int             `env:"NAME_MATCH_LIMIT" envDefault:"50"`
	Log              LogConfig       `envPrefix:"LOG_"`
}

// Load reads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, eris.Wrap(err, "config: parse env")
	}

	cfg.PhoneRegion = strings.ToUpper(strings.TrimSpace(cfg.PhoneRegion))
	if cfg.NameMatchLimit <= 0 {
		return nil, eris.Errorf("config: NAME_MATCH_LIMIT must be positive, got %d", cfg.NameMatchLimit)
	}

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}
