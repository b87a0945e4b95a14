// Package config loads service configuration from defaults, an optional YAML file,
// an optional .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend modes.
const (
	ModeMemory   = "memory"
	ModePostgres = "postgres"
	ModeSupabase = "supabase"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type BackendConfig struct {
	Mode string `yaml:"mode" env:"BACKEND_MODE"`
}

type SupabaseConfig struct {
	URL        string        `yaml:"url" env:"SUPABASE_URL"`
	AnonKey    string        `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	ServiceKey string        `yaml:"service_key" env:"SUPABASE_SERVICE_KEY"`
	JWTSecret  string        `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	Schema     string        `yaml:"schema" env:"SUPABASE_SCHEMA"`
	Timeout    time.Duration `yaml:"timeout" env:"SUPABASE_TIMEOUT"`
	Realtime   bool          `yaml:"realtime" env:"SUPABASE_REALTIME"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"` // seconds
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Channel  string `yaml:"channel" env:"REDIS_CHANNEL"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL"`
	Issuer    string        `yaml:"issuer" env:"AUTH_ISSUER"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Output string `yaml:"output" env:"LOG_OUTPUT"`
}

type RateLimitConfig struct {
	RequestsPerSecond int    `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int    `yaml:"burst" env:"RATE_LIMIT_BURST"`
	CleanupSpec       string `yaml:"cleanup_spec" env:"RATE_LIMIT_CLEANUP_SPEC"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

type StorageConfig struct {
	AvatarBucket      string `yaml:"avatar_bucket" env:"STORAGE_AVATAR_BUCKET"`
	InsightBucket     string `yaml:"insight_bucket" env:"STORAGE_INSIGHT_BUCKET"`
	MarketplaceBucket string `yaml:"marketplace_bucket" env:"STORAGE_MARKETPLACE_BUCKET"`
	TestimonialBucket string `yaml:"testimonial_bucket" env:"STORAGE_TESTIMONIAL_BUCKET"`
	PublicBaseURL     string `yaml:"public_base_url" env:"STORAGE_PUBLIC_BASE_URL"`
	Dir               string `yaml:"dir" env:"STORAGE_DIR"`
}

// Default returns the built-in defaults: an in-memory backend on :8080.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Backend:  BackendConfig{Mode: ModeMemory},
		Supabase: SupabaseConfig{Schema: "public", Timeout: 30 * time.Second, Realtime: true},
		Database: DatabaseConfig{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 300},
		Redis:    RedisConfig{Channel: "marketplace:changes"},
		Auth:     AuthConfig{TokenTTL: time.Hour, Issuer: "marketplace"},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			CleanupSpec:       "@every 10m",
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
		Storage: StorageConfig{
			AvatarBucket:      "avatars",
			InsightBucket:     "insights",
			MarketplaceBucket: "marketplace",
			TestimonialBucket: "testimonials",
			Dir:               "data/media",
		},
	}
}

// Load builds and validates the configuration. path may be empty; CONFIG_FILE
// is consulted when it is.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers the file, .env and environment over the defaults without
// validating the result.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")
	// Supabase issues tokens signed with the project JWT secret; accept it for both.
	if c.Auth.JWTSecret == "" && c.Supabase.JWTSecret != "" {
		c.Auth.JWTSecret = c.Supabase.JWTSecret
	}
	origins := c.CORS.AllowedOrigins[:0]
	for _, o := range c.CORS.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORS.AllowedOrigins = origins
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case ModeMemory:
	case ModePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case ModeSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		if c.Supabase.ServiceKey == "" && c.Supabase.AnonKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY or SUPABASE_ANON_KEY is required for the supabase backend")
		}
	default:
		return fmt.Errorf("unsupported backend mode %q", c.Backend.Mode)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET (or SUPABASE_JWT_SECRET) is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	return nil
}

// SupabaseKey returns the key used for server-side requests.
func (c *Config) SupabaseKey() string {
	if c.Supabase.ServiceKey != "" {
		return c.Supabase.ServiceKey
	}
	return c.Supabase.AnonKey
}
