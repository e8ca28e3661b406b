package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// browser origins allowed by CORS, native clients send no Origin
	AllowedOrigins []string `toml:"allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	RedisHost      string `toml:"redis_host"`
	RedisPort      string `toml:"redis_port"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// catalog: file path takes precedence over url
	CatalogPath string `toml:"catalog_path"`
	CatalogURL  string `toml:"catalog_url"`

	// calendar days are evaluated in this timezone
	Timezone string `toml:"timezone"`

	DefaultCalorieTarget float64 `toml:"default_calorie_target"`
	DefaultWaterTarget   float64 `toml:"default_water_target"`
	DefaultMealsPerDay   int     `toml:"default_meals_per_day"`

	CompletionRateLimitPerMin int `toml:"completion_rate_limit_per_min"`
	IdempotencyCacheMB        int `toml:"idempotency_cache_mb"`
	IdempotencyTTLSeconds     int `toml:"idempotency_ttl_seconds"`

	S3 S3Config `toml:"s3"`
}

type S3Config struct {
	Endpoint      string `toml:"endpoint"`
	Region        string `toml:"region"`
	BucketName    string `toml:"bucket_name"`
	UsePathStyle  bool   `toml:"use_path_style"`
	PresignExpiry string `toml:"presign_expiry"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env,
// with defaults applied to unset values.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.DefaultCalorieTarget == 0 {
		c.DefaultCalorieTarget = 2000
	}
	if c.DefaultWaterTarget == 0 {
		c.DefaultWaterTarget = 2.5
	}
	if c.DefaultMealsPerDay == 0 {
		c.DefaultMealsPerDay = 3
	}
	if c.CompletionRateLimitPerMin == 0 {
		c.CompletionRateLimitPerMin = 120
	}
	if c.IdempotencyCacheMB == 0 {
		c.IdempotencyCacheMB = 16
	}
	if c.IdempotencyTTLSeconds == 0 {
		c.IdempotencyTTLSeconds = 600
	}
}

func (c *Config) Validate() error {
	if c.CatalogPath == "" && c.CatalogURL == "" {
		return errors.New("one of catalog_path or catalog_url must be set")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone [%s]: %w", c.Timezone, err)
	}
	if c.DefaultCalorieTarget < 0 || c.DefaultWaterTarget < 0 {
		return errors.New("default targets must not be negative")
	}
	return nil
}

// Location is the timezone calendar days are cut in. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

func (c *Config) PresignExpiry() time.Duration {
	d, err := time.ParseDuration(c.S3.PresignExpiry)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}
