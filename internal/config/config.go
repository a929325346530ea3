// Package config provides configuration management for the Envoy playground.
//
// This package handles loading configuration from multiple sources:
//   - YAML configuration files
//   - Environment variables (with PG_ prefix)
//   - .env files
//   - Default values
//
// # Configuration Sources Priority
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ./configs/config.yaml, ~/.playground/config.yaml, /etc/playground/config.yaml)
//  3. .env files
//  4. Environment variables (PG_ prefix)
//
// # Usage Example
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
//
// # Environment Variables
//
// Environment variables override all other configuration sources.
// Use PG_ prefix and underscores for nested keys:
//   - PG_SERVER_PORT=8095
//   - PG_PLAYGROUND_MAX_NAME_LENGTH=48
//   - PG_NATS_URL=nats://localhost:4222
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"evalgo.org/playground/internal/validation"
)

// Config is the root configuration structure for the playground.
type Config struct {
	// Server contains HTTP server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Docker contains container engine connection settings
	Docker DockerConfig `mapstructure:"docker" yaml:"docker"`

	// Playground contains resource limits and images
	Playground PlaygroundConfig `mapstructure:"playground" yaml:"playground"`

	// Publisher contains per-session delivery settings
	Publisher PublisherConfig `mapstructure:"publisher" yaml:"publisher"`

	// NATS contains the optional event mirror settings
	NATS NATSConfig `mapstructure:"nats" yaml:"nats"`

	// Logging contains logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Security contains security and rate limiting settings
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port" yaml:"port"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Debug enables debug logging and additional endpoints
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// TLSEnabled enables HTTPS
	TLSEnabled bool `mapstructure:"tls_enabled" yaml:"tls_enabled"`

	// TLSCert is the path to the TLS certificate file
	TLSCert string `mapstructure:"tls_cert" yaml:"tls_cert"`

	// TLSKey is the path to the TLS private key file
	TLSKey string `mapstructure:"tls_key" yaml:"tls_key"`
}

// DockerConfig contains container engine settings.
type DockerConfig struct {
	// Host is the engine address; empty uses DOCKER_HOST or the local socket
	Host string `mapstructure:"host" yaml:"host"`

	// WatchEvents runs the engine event watcher alongside the server
	WatchEvents bool `mapstructure:"watch_events" yaml:"watch_events"`
}

// PlaygroundConfig contains the limits advertised to clients.
type PlaygroundConfig struct {
	EnvoyImage            string `mapstructure:"envoy_image" yaml:"envoy_image"`
	MinNameLength         int    `mapstructure:"min_name_length" yaml:"min_name_length"`
	MaxNameLength         int    `mapstructure:"max_name_length" yaml:"max_name_length"`
	MinConfigLength       int    `mapstructure:"min_config_length" yaml:"min_config_length"`
	MaxConfigLength       int    `mapstructure:"max_config_length" yaml:"max_config_length"`
	MaxNetworkConnections int    `mapstructure:"max_network_connections" yaml:"max_network_connections"`

	// ServiceTypesFile replaces the built-in service type registry
	ServiceTypesFile string `mapstructure:"service_types_file" yaml:"service_types_file"`
}

// Bounds returns the validation limits.
func (p PlaygroundConfig) Bounds() validation.Bounds {
	return validation.Bounds{
		MinNameLength:         p.MinNameLength,
		MaxNameLength:         p.MaxNameLength,
		MinConfigLength:       p.MinConfigLength,
		MaxConfigLength:       p.MaxConfigLength,
		MaxNetworkConnections: p.MaxNetworkConnections,
	}
}

// PublisherConfig contains per-session delivery settings.
type PublisherConfig struct {
	// QueueSize is the number of frames buffered per session
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// SendTimeout is how long a publish waits on a full session queue
	SendTimeout time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
}

// NATSConfig contains the optional event mirror.
type NATSConfig struct {
	// URL enables the mirror when set (e.g. nats://localhost:4222)
	URL string `mapstructure:"url" yaml:"url"`

	// Subject is the prefix frames are published under
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format" yaml:"format"`

	// Output is the log output destination (stdout, stderr or a file path)
	Output string `mapstructure:"output" yaml:"output"`
}

// SecurityConfig contains security and rate limiting settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`

	// AllowedOrigins are the CORS and WebSocket allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// AuthEnabled guards mutating routes with JWT authentication
	AuthEnabled bool `mapstructure:"auth_enabled" yaml:"auth_enabled"`

	// JWTSecret is the secret key for signing JWT tokens
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTExpiration is the JWT token expiration duration (default: 24h)
	JWTExpiration time.Duration `mapstructure:"jwt_expiration" yaml:"jwt_expiration"`
}

var cfg *Config

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for config.yaml in standard locations.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PG_ prefix)
//  2. .env file
//  3. Configuration file
//  4. Default values
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.playground")
		v.AddConfigPath("/etc/playground")
	}

	if err := v.ReadInConfig(); err != nil {
		// An explicit file that does not exist falls back to defaults
		if cfgFile != "" {
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("PG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Defaults returns the configuration used when no file or environment
// overrides are present.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	_ = v.Unmarshal(c)
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tls_enabled", false)

	v.SetDefault("docker.host", "")
	v.SetDefault("docker.watch_events", true)

	v.SetDefault("playground.envoy_image", "envoyproxy/envoy-dev:latest")
	v.SetDefault("playground.min_name_length", 2)
	v.SetDefault("playground.max_name_length", 32)
	v.SetDefault("playground.min_config_length", 7)
	v.SetDefault("playground.max_config_length", 20000)
	v.SetDefault("playground.max_network_connections", 5)
	v.SetDefault("playground.service_types_file", "")

	v.SetDefault("publisher.queue_size", 256)
	v.SetDefault("publisher.send_timeout", "2s")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "playground.events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("security.rate_limit", 100)
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.auth_enabled", false)
	v.SetDefault("security.jwt_secret", "change-me-in-production")
	v.SetDefault("security.jwt_expiration", "24h")
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	p := cfg.Playground
	if p.EnvoyImage == "" {
		return fmt.Errorf("playground envoy_image is required")
	}
	if p.MinNameLength < 1 || p.MinNameLength > p.MaxNameLength {
		return fmt.Errorf("invalid name length bounds: %d-%d", p.MinNameLength, p.MaxNameLength)
	}
	if p.MinConfigLength < 1 || p.MinConfigLength > p.MaxConfigLength {
		return fmt.Errorf("invalid config length bounds: %d-%d", p.MinConfigLength, p.MaxConfigLength)
	}
	if p.MaxNetworkConnections < 1 {
		return fmt.Errorf("max_network_connections must be positive, got %d", p.MaxNetworkConnections)
	}

	if cfg.Publisher.QueueSize < 1 {
		return fmt.Errorf("publisher queue_size must be positive, got %d", cfg.Publisher.QueueSize)
	}
	if cfg.Publisher.SendTimeout <= 0 {
		return fmt.Errorf("publisher send_timeout must be positive, got %s", cfg.Publisher.SendTimeout)
	}

	if cfg.Security.AuthEnabled && cfg.Security.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required when auth is enabled")
	}

	return nil
}

func Get() *Config {
	return cfg
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
