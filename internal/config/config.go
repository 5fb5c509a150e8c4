package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// Cache backends supported by the gateway.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                      string `yaml:"port"`
	LogLevel                  string `yaml:"logLevel"`
	BackendBaseURL            string `yaml:"backendBaseURL"`
	TokenFile                 string `yaml:"tokenFile"`
	CacheBackend              string `yaml:"cacheBackend"`
	CacheTTL                  string `yaml:"cacheTTL"`
	RedisAddr                 string `yaml:"redisAddr"`
	RedisPassword             string `yaml:"redisPassword"`
	LoginRateLimitPerMinute   int    `yaml:"loginRateLimitPerMinute"`
	SignupRateLimitPerMinute  int    `yaml:"signupRateLimitPerMinute"`
	BookingRateLimitPerMinute int    `yaml:"bookingRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("STAYFINDER_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("STAYFINDER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("STAYFINDER_BACKEND_URL"); v != "" {
		cfg.BackendBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("STAYFINDER_TOKEN_FILE"); v != "" {
		cfg.TokenFile = strings.TrimSpace(v)
	}
	if v := os.Getenv("STAYFINDER_CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = strings.TrimSpace(v)
	}
	if v := os.Getenv("STAYFINDER_CACHE_TTL"); v != "" {
		cfg.CacheTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = strings.TrimSpace(v)
	}
	if v := os.Getenv("STAYFINDER_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("STAYFINDER_SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("STAYFINDER_BOOKING_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BookingRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.BackendBaseURL == "" {
		return errors.New("config: backendBaseURL is required (set in config.yaml or STAYFINDER_BACKEND_URL)")
	}
	switch cfg.CacheBackend {
	case "", CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required when cacheBackend is redis")
		}
	default:
		return fmt.Errorf("config: unknown cacheBackend %q", cfg.CacheBackend)
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.SignupRateLimitPerMinute < 0 || cfg.BookingRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// ParseCacheTTL parses the optional cache TTL duration string.
func ParseCacheTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid cacheTTL duration: %w", err)
	}
	return dur, nil
}
