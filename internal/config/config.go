// Package config loads runtime startup configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort     = 8080
	defaultEnv      = "development"
	defaultDSN      = "root:password@tcp(127.0.0.1:3306)/ratepoint?charset=utf8mb4&parseTime=True&loc=Local"
	defaultRedisURL = "redis://localhost:6379/0"
)

// Duration is a time.Duration that YAML configs can spell as a string
// like "30s". A bare number is taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if parsed, err := time.ParseDuration(value.Value); err == nil {
		*d = Duration(parsed)
		return nil
	}
	ns, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(ns)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// AppConfig holds runtime startup configuration.
type AppConfig struct {
	Port           int             `yaml:"port"`
	DSN            string          `yaml:"dsn"`
	RedisURL       string          `yaml:"redis_url"`
	Env            string          `yaml:"env"` // "development" | "production"
	JWTSecret      string          `yaml:"jwt_secret"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	StaticDir      string          `yaml:"static_dir"`
	Upstream       UpstreamOptions `yaml:"upstream"`
	S3             S3Options       `yaml:"s3"`
}

// UpstreamOptions configures the /proxy/api re-proxy.
type UpstreamOptions struct {
	BaseURL string `yaml:"base_url"` // e.g. http://52.207.234.21/admin-api/api
	// RewriteFrom/RewriteTo patch redirect Locations when the upstream
	// strips its path prefix, e.g. from http://host/api/ to
	// http://host/admin-api/api/.
	RewriteFrom string   `yaml:"rewrite_from"`
	RewriteTo   string   `yaml:"rewrite_to"`
	Timeout     Duration `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
}

// Enabled reports whether the re-proxy has an upstream configured.
func (u UpstreamOptions) Enabled() bool { return strings.TrimSpace(u.BaseURL) != "" }

// S3Options configures object storage for uploaded files.
type S3Options struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	CustomDomain    string `yaml:"custom_domain"`
}

// Enabled reports whether the S3 backend is fully configured.
func (s S3Options) Enabled() bool {
	return s.Bucket != "" && s.Region != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// Load reads the YAML file at path (missing file is fine; defaults apply)
// and applies environment overrides.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:     defaultPort,
		DSN:      defaultDSN,
		RedisURL: defaultRedisURL,
		Env:      defaultEnv,
		Upstream: UpstreamOptions{Timeout: Duration(30 * time.Second), Retries: 2},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Upstream.Timeout <= 0 {
		cfg.Upstream.Timeout = Duration(30 * time.Second)
	}
	if cfg.Upstream.Retries < 0 {
		cfg.Upstream.Retries = 0
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}
	return cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return !strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
}
