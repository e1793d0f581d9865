package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Database      DatabaseConfig
	App           AppConfig
	Auth          AuthConfig
	Blob          BlobConfig
	Links         LinksConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    string `envconfig:"SERVER_PORT" default:"8080"`
	Host    string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	BaseURL string `envconfig:"SERVER_BASE_URL" required:"true"`
	// BasePath is an optional path segment the whole app is also served
	// under, e.g. "Shorten-URLs". It is never a valid short code.
	BasePath        string        `envconfig:"SERVER_BASE_PATH"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL: %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.BasePath = strings.Trim(c.BasePath, "/")
	if strings.Contains(c.BasePath, "/") {
		return fmt.Errorf("base path must be a single segment: %q", c.BasePath)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// StoreConfig selects the persistence backend for links, users and blobs.
type StoreConfig struct {
	Driver   string `envconfig:"STORE_DRIVER" default:"memory"`
	BoltPath string `envconfig:"BOLT_PATH" default:"linksnap.db"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case DriverMemory, DriverPostgres:
	case DriverBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("bolt path cannot be empty when STORE_DRIVER=bolt")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be one of: memory, postgres, bolt)", c.Driver)
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
// Only consulted when STORE_DRIVER=postgres.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"1"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL keyword/value connection string
// used by pgxpool.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"` // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// AuthConfig controls session tokens issued on login.
type AuthConfig struct {
	// JWTSecret signs session tokens. Empty disables token issuance.
	JWTSecret string        `envconfig:"AUTH_JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
	// RequireToken makes a bearer token mandatory on owner-scoped actions.
	RequireToken bool `envconfig:"AUTH_REQUIRE_TOKEN" default:"false"`
}

// MinSecretLength is the shortest accepted JWT signing secret.
const MinSecretLength = 16

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.RequireToken && c.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_REQUIRE_TOKEN is set")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", MinSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// BlobConfig holds uploaded file settings.
type BlobConfig struct {
	// PublicURL prefixes blob URLs. Defaults to SERVER_BASE_URL.
	PublicURL string `envconfig:"BLOB_PUBLIC_URL"`
	MaxBytes  int64  `envconfig:"BLOB_MAX_BYTES" default:"10485760"`
}

// Validate validates the blob configuration.
func (c *BlobConfig) Validate() error {
	if c.MaxBytes <= 0 {
		return fmt.Errorf("blob max bytes must be positive")
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	return nil
}

// Slug generators.
const (
	SlugGeneratorHex    = "hex"
	SlugGeneratorBase62 = "base62"
)

// LinksConfig controls generated short codes.
type LinksConfig struct {
	SlugGenerator string `envconfig:"SLUG_GENERATOR" default:"hex"`
	SlugLength    int    `envconfig:"SLUG_LENGTH" default:"8"`
}

// Validate validates the links configuration. Generated codes must be valid
// slugs and fit in a dashless hex UUID.
func (c *LinksConfig) Validate() error {
	c.SlugGenerator = strings.ToLower(c.SlugGenerator)
	switch c.SlugGenerator {
	case SlugGeneratorHex, SlugGeneratorBase62:
	default:
		return fmt.Errorf("invalid slug generator: %s (must be one of: hex, base62)", c.SlugGenerator)
	}
	if c.SlugLength < 3 || c.SlugLength > 32 {
		return fmt.Errorf("slug length must be between 3 and 32, got %d", c.SlugLength)
	}
	return nil
}

// ObservabilityConfig holds configuration for metrics.
type ObservabilityConfig struct {
	ServiceName    string `envconfig:"SERVICE_NAME" default:"linksnap"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.MetricsEnabled && c.ServiceName == "" {
		return fmt.Errorf("service name is required when metrics are enabled")
	}
	return nil
}

type section struct {
	name     string
	target   any
	validate func() error
}

// Load loads configuration from environment variables only.
// (Do .env loading in cmd/server/main.go for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []section{
		{"Server", &cfg.Server, cfg.Server.Validate},
		{"Store", &cfg.Store, cfg.Store.Validate},
		{"Database", &cfg.Database, func() error {
			if cfg.Store.Driver != DriverPostgres {
				return nil
			}
			return cfg.Database.Validate()
		}},
		{"App", &cfg.App, cfg.App.Validate},
		{"Auth", &cfg.Auth, cfg.Auth.Validate},
		{"Blob", &cfg.Blob, cfg.Blob.Validate},
		{"Links", &cfg.Links, cfg.Links.Validate},
		{"Observability", &cfg.Observability, cfg.Observability.Validate},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	if cfg.Blob.PublicURL == "" {
		cfg.Blob.PublicURL = cfg.Server.BaseURL
	}

	return cfg, nil
}
