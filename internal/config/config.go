// Package config provides configuration management for the credential manager.
// It loads configuration from environment variables with sensible defaults
// and validates it so the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - API_HOST: Loopback address the command API binds (default: 127.0.0.1)
//   - PORT: Command API port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path; empty logs to stdout
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite", "postgres" or "memory" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./app.sqlite)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis Token Cache:
//   - REDIS_ENABLED: Cache tokens in Redis in front of the database (default: false)
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// OAuth2 Provider:
//   - OAUTH_CALLBACK_PORT: Fixed loopback port of the callback listener (default: 1421)
//   - OAUTH_CALLBACK_TIMEOUT: How long a flow waits for the browser redirect (default: 10m)
//   - OAUTH_AUTH_URL: Provider consent endpoint (default: Google)
//   - OAUTH_TOKEN_URL: Provider token endpoint (default: Google)
//   - OAUTH_SCOPES: Comma separated scopes (default: YouTube read-only, profile)
//   - OAUTH_HTTP_TIMEOUT: Timeout of provider round trips (default: 30s)
//
// Proactive Refresh:
//   - TOKEN_REFRESH_SCHEDULE: Cron schedule of the background refresher; empty disables (default: @every 5m)
//   - TOKEN_REFRESH_LOOKAHEAD: Refresh tokens expiring within this window (default: 10m)
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

// DefaultScopes are requested when OAUTH_SCOPES is not set.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// CallbackPath is the path the provider redirects the browser to.
const CallbackPath = "/oauth/callback"

// Config holds all configuration values of the application.
type Config struct {
	// Application settings
	APIHost  string
	Port     string
	LogLevel string
	LogFile  string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis token cache
	RedisEnabled  bool
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// OAuth2 provider and loopback listener
	CallbackPort    string
	CallbackTimeout string
	AuthURL         string
	TokenURL        string
	Scopes          []string
	HTTPTimeout     string

	// Proactive refresh
	RefreshSchedule  string
	RefreshLookahead string
}

// Load creates a new Config with values from environment variables.
// Call Validate on the result before use.
func Load() *Config {
	return &Config{
		APIHost:  getEnv("API_HOST", "127.0.0.1"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./app.sqlite"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "credentials"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		CallbackPort:    getEnv("OAUTH_CALLBACK_PORT", "1421"),
		CallbackTimeout: getEnv("OAUTH_CALLBACK_TIMEOUT", "10m"),
		AuthURL:         getEnv("OAUTH_AUTH_URL", google.Endpoint.AuthURL),
		TokenURL:        getEnv("OAUTH_TOKEN_URL", google.Endpoint.TokenURL),
		Scopes:          getListEnv("OAUTH_SCOPES", DefaultScopes),
		HTTPTimeout:     getEnv("OAUTH_HTTP_TIMEOUT", "30s"),

		// An explicitly empty schedule disables the refresher, so it is read
		// with LookupEnv rather than getEnv.
		RefreshSchedule:  lookupEnv("TOKEN_REFRESH_SCHEDULE", "@every 5m"),
		RefreshLookahead: getEnv("TOKEN_REFRESH_LOOKAHEAD", "10m"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the representations understood by strconv.ParseBool and
// falls back to defaultValue for anything else.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks required fields, formats and cross-field dependencies.
func (c *Config) Validate() error {
	if !isLoopbackHost(c.APIHost) {
		return fmt.Errorf("API_HOST must be a loopback address, the command API has no authentication")
	}
	if err := validatePort("PORT", c.Port); err != nil {
		return err
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when using SQLite")
		}
	case "postgres", "postgresql":
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if err := validatePort("POSTGRES_PORT", c.PostgresPort); err != nil {
			return err
		}
	case "memory":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite', 'postgres' or 'memory'")
	}

	if c.RedisEnabled {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when REDIS_ENABLED is set")
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if err := validatePort("OAUTH_CALLBACK_PORT", c.CallbackPort); err != nil {
		return err
	}
	if c.CallbackPort == c.Port {
		return fmt.Errorf("OAUTH_CALLBACK_PORT must differ from PORT")
	}
	if err := validateDuration("OAUTH_CALLBACK_TIMEOUT", c.CallbackTimeout); err != nil {
		return err
	}
	if err := validateDuration("OAUTH_HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.AuthURL == "" || c.TokenURL == "" {
		return fmt.Errorf("OAUTH_AUTH_URL and OAUTH_TOKEN_URL are required")
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("OAUTH_SCOPES must list at least one scope")
	}

	if c.RefreshSchedule != "" {
		if err := validateDuration("TOKEN_REFRESH_LOOKAHEAD", c.RefreshLookahead); err != nil {
			return err
		}
	}

	return nil
}

// APIAddr returns the address the command API binds.
func (c *Config) APIAddr() string {
	return net.JoinHostPort(c.APIHost, c.Port)
}

// RedirectURL returns the loopback redirect URL registered with the provider.
func (c *Config) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%s%s", c.CallbackPort, CallbackPath)
}

// CallbackAddr returns the address the callback listener binds.
func (c *Config) CallbackAddr() string {
	return "127.0.0.1:" + c.CallbackPort
}

// CallbackTimeoutDuration returns the parsed callback timeout. Validate must have passed.
func (c *Config) CallbackTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallbackTimeout)
	return d
}

// HTTPTimeoutDuration returns the parsed provider HTTP timeout. Validate must have passed.
func (c *Config) HTTPTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.HTTPTimeout)
	return d
}

// RefreshLookaheadDuration returns the parsed refresh lookahead. Validate must have passed.
func (c *Config) RefreshLookaheadDuration() time.Duration {
	d, _ := time.ParseDuration(c.RefreshLookahead)
	return d
}

// RedisDBNumber returns the parsed Redis database number.
func (c *Config) RedisDBNumber() int {
	n, _ := strconv.Atoi(c.RedisDB)
	return n
}

// RedisPoolSizeNumber returns the parsed Redis pool size.
func (c *Config) RedisPoolSizeNumber() int {
	n, _ := strconv.Atoi(c.RedisPoolSize)
	return n
}

// PostgresPortNumber returns the parsed PostgreSQL port.
func (c *Config) PostgresPortNumber() int {
	n, _ := strconv.Atoi(c.PostgresPort)
	return n
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func validatePort(name, value string) error {
	if port, err := strconv.Atoi(value); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%s must be a valid port number between 1 and 65535", name)
	}
	return nil
}

func validateDuration(name, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s must be a positive duration (e.g., '30s', '10m')", name)
	}
	return nil
}
