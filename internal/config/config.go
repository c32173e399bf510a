// Package config loads runtime configuration for the buildermatch server.
//
// LAYERED CONFIGURATION WITH VIPER:
// Values are resolved in this order (later wins):
//  1. defaults set in ApplyDefaults
//  2. an optional config file (--config)
//  3. BUILDERMATCH_* environment variables (server.port -> BUILDERMATCH_SERVER_PORT)
//  4. command-line flags bound by cmd/server
//
// Every key gets a default, even an empty one. Viper only consults the
// environment during Unmarshal for keys it already knows about, so a missing
// default would silently hide the env var.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BUILDERMATCH"

// Environments recognised by Config.Server.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// TrustProxy makes the server take the client IP from X-Forwarded-For /
	// X-Real-IP. Only enable it behind a proxy that overwrites those headers,
	// otherwise any client can pick its own rate-limit key.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// Addr returns the listen address for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds session and cookie secrets.
type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieSecret  string        `mapstructure:"cookie_secret"`
}

// GitHubConfig holds the OAuth application credentials.
type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether GitHub OAuth is configured.
func (c GitHubConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// RedisConfig configures the shared rate-limit store. An empty URL selects
// the in-process limiter.
type RedisConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CORSConfig lists browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction reports whether the server runs in production mode, which
// switches cookies to Secure and logs to JSON.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.path", "data/buildermatch.db")

	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", "168h") // 7 days
	v.SetDefault("auth.cookie_secret", "")

	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.token", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

// Load unmarshals and validates configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		return fmt.Errorf("config: server.environment must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("config: auth.session_secret must be at least 32 characters")
	}
	if len(c.Auth.CookieSecret) < 32 {
		return fmt.Errorf("config: auth.cookie_secret must be at least 32 characters")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config: auth.session_ttl must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name onto slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("config: invalid log.level %q", level)
	}
	return l, nil
}
