package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the SoundWatch server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Upload   UploadConfig
	Analysis AnalysisConfig
	LogLevel slog.Level
}

type ServerConfig struct {
	Port      int
	Env       string
	ClientURL string
}

// DatabaseConfig points at Postgres. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig points at Redis. An empty URL selects the in-process cache.
type RedisConfig struct {
	URL string
}

type UploadConfig struct {
	Dir             string
	MaxBytes        int64
	RateLimitPerMin int
}

type AnalysisConfig struct {
	Analyzer  string
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

var validAnalyzers = map[string]bool{
	"synthetic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is read first; it never overrides variables
// that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      envInt("PORT", 5000),
			Env:       envString("APP_ENV", "development"),
			ClientURL: os.Getenv("CLIENT_URL"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Name:            os.Getenv("DATABASE_NAME"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Upload: UploadConfig{
			Dir:             envString("UPLOAD_DIR", "uploads"),
			MaxBytes:        int64(envInt("MAX_UPLOAD_MB", 50)) << 20,
			RateLimitPerMin: envInt("UPLOAD_RATE_LIMIT_PER_MIN", 30),
		},
		Analysis: AnalysisConfig{
			Analyzer:  envString("ANALYZER", "synthetic"),
			Workers:   envInt("ANALYSIS_WORKERS", 2),
			QueueSize: envInt("ANALYSIS_QUEUE_SIZE", 100),
			Timeout:   envDurationSecs("ANALYSIS_TIMEOUT_SECS", 30*time.Second),
		},
	}

	level, err := parseLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UsesPostgres reports whether a database URL was configured.
func (c *Config) UsesPostgres() bool { return c.Database.URL != "" }

// UsesRedis reports whether a Redis URL was configured.
func (c *Config) UsesRedis() bool { return c.Redis.URL != "" }

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.URL != "" &&
		!strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://, got %q", c.Database.URL)
	}

	if c.Redis.URL != "" &&
		!strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.Server.ClientURL != "" &&
		!strings.HasPrefix(c.Server.ClientURL, "http://") && !strings.HasPrefix(c.Server.ClientURL, "https://") {
		return fmt.Errorf("CLIENT_URL must start with http:// or https://, got %q", c.Server.ClientURL)
	}

	if c.Upload.Dir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	if !validAnalyzers[c.Analysis.Analyzer] {
		return fmt.Errorf("ANALYZER must be one of synthetic; got %q", c.Analysis.Analyzer)
	}
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("ANALYSIS_WORKERS must be positive, got %d", c.Analysis.Workers)
	}
	if c.Analysis.QueueSize <= 0 {
		return fmt.Errorf("ANALYSIS_QUEUE_SIZE must be positive, got %d", c.Analysis.QueueSize)
	}

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", s)
	}
	return level, nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
