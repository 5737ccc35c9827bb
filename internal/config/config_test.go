package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = []string{
	"API_HOST", "PORT", "LOG_LEVEL", "LOG_FILE",
	"DATABASE_TYPE", "DATABASE_PATH", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
	"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_SSL_MODE",
	"REDIS_ENABLED", "REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"OAUTH_CALLBACK_PORT", "OAUTH_CALLBACK_TIMEOUT", "OAUTH_AUTH_URL", "OAUTH_TOKEN_URL",
	"OAUTH_SCOPES", "OAUTH_HTTP_TIMEOUT",
	"TOKEN_REFRESH_SCHEDULE", "TOKEN_REFRESH_LOOKAHEAD",
}

// clearTestEnvVars unsets every key Load reads and restores them after the test.
func clearTestEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range testKeys {
		if value, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, value) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	clearTestEnvVars(t)

	config := Load()

	assert.Equal(t, "8080", config.Port)
	assert.Equal(t, "127.0.0.1:8080", config.APIAddr())
	assert.Equal(t, "info", config.LogLevel)
	assert.Empty(t, config.LogFile)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, "./app.sqlite", config.DatabasePath)
	assert.False(t, config.RedisEnabled)
	assert.Equal(t, "localhost:6379", config.RedisAddress)
	assert.Equal(t, "1421", config.CallbackPort)
	assert.Equal(t, "http://localhost:1421/oauth/callback", config.RedirectURL())
	assert.Equal(t, "127.0.0.1:1421", config.CallbackAddr())
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth", config.AuthURL)
	assert.Equal(t, "https://oauth2.googleapis.com/token", config.TokenURL)
	assert.Equal(t, DefaultScopes, config.Scopes)
	assert.Equal(t, "@every 5m", config.RefreshSchedule)

	require.NoError(t, config.Validate())
	assert.Equal(t, 10*time.Minute, config.CallbackTimeoutDuration())
	assert.Equal(t, 30*time.Second, config.HTTPTimeoutDuration())
	assert.Equal(t, 10*time.Minute, config.RefreshLookaheadDuration())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearTestEnvVars(t)

	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("OAUTH_CALLBACK_PORT", "5005")
	t.Setenv("OAUTH_CALLBACK_TIMEOUT", "2m")
	t.Setenv("OAUTH_SCOPES", " openid, email ,,profile ")
	t.Setenv("TOKEN_REFRESH_SCHEDULE", "")

	config := Load()

	assert.Equal(t, "9000", config.Port)
	assert.Equal(t, "postgres", config.DatabaseType)
	assert.Equal(t, 6543, config.PostgresPortNumber())
	assert.True(t, config.RedisEnabled)
	assert.Equal(t, 3, config.RedisDBNumber())
	assert.Equal(t, 10, config.RedisPoolSizeNumber())
	assert.Equal(t, "http://localhost:5005/oauth/callback", config.RedirectURL())
	assert.Equal(t, []string{"openid", "email", "profile"}, config.Scopes)
	assert.Empty(t, config.RefreshSchedule, "an explicitly empty schedule disables the refresher")

	require.NoError(t, config.Validate())
	assert.Equal(t, 2*time.Minute, config.CallbackTimeoutDuration())
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		setEnv       bool
		want         string
	}{
		{"env var exists", "TEST_KEY_EXISTS", "default", "from-env", true, "from-env"},
		{"env var missing", "TEST_KEY_MISSING", "default", "", false, "default"},
		{"env var empty", "TEST_KEY_EMPTY", "default", "", true, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"invalid falls back", "maybe", true, true},
		{"empty falls back", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.want, getBoolEnv("TEST_BOOL", tt.defaultValue))
		})
	}
}

func validConfig() *Config {
	return &Config{
		APIHost:          "127.0.0.1",
		Port:             "8080",
		DatabaseType:     "sqlite",
		DatabasePath:     "./app.sqlite",
		RedisDB:          "0",
		RedisPoolSize:    "10",
		CallbackPort:     "1421",
		CallbackTimeout:  "10m",
		AuthURL:          "https://provider.example/auth",
		TokenURL:         "https://provider.example/token",
		Scopes:           []string{"openid"},
		HTTPTimeout:      "30s",
		RefreshSchedule:  "@every 5m",
		RefreshLookahead: "10m",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorContains string
	}{
		{name: "valid sqlite config", mutate: func(c *Config) {}},
		{name: "valid memory config", mutate: func(c *Config) { c.DatabaseType = "memory" }},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.DatabaseType = "postgresql"
				c.PostgresHost = "db"
				c.PostgresPort = "5432"
				c.PostgresDB = "credentials"
				c.PostgresUser = "app"
			},
		},
		{name: "ipv6 loopback api host", mutate: func(c *Config) { c.APIHost = "::1" }},
		{name: "localhost api host", mutate: func(c *Config) { c.APIHost = "localhost" }},
		{
			name:          "api host on all interfaces",
			mutate:        func(c *Config) { c.APIHost = "0.0.0.0" },
			errorContains: "API_HOST must be a loopback address",
		},
		{
			name:          "empty api host",
			mutate:        func(c *Config) { c.APIHost = "" },
			errorContains: "API_HOST must be a loopback address",
		},
		{
			name:          "api host on a lan address",
			mutate:        func(c *Config) { c.APIHost = "192.168.1.10" },
			errorContains: "API_HOST must be a loopback address",
		},
		{
			name:          "invalid port",
			mutate:        func(c *Config) { c.Port = "invalid" },
			errorContains: "PORT must be a valid port number",
		},
		{
			name:          "unknown database type",
			mutate:        func(c *Config) { c.DatabaseType = "mysql" },
			errorContains: "DATABASE_TYPE must be",
		},
		{
			name:          "sqlite without path",
			mutate:        func(c *Config) { c.DatabasePath = "" },
			errorContains: "DATABASE_PATH is required",
		},
		{
			name: "postgres without user",
			mutate: func(c *Config) {
				c.DatabaseType = "postgres"
				c.PostgresHost = "db"
				c.PostgresDB = "credentials"
				c.PostgresPort = "5432"
			},
			errorContains: "POSTGRES_USER is required",
		},
		{
			name: "redis db out of range",
			mutate: func(c *Config) {
				c.RedisEnabled = true
				c.RedisAddress = "localhost:6379"
				c.RedisDB = "16"
			},
			errorContains: "REDIS_DB must be a number between 0 and 15",
		},
		{
			name:          "redis settings ignored when disabled",
			mutate:        func(c *Config) { c.RedisDB = "99" },
			errorContains: "",
		},
		{
			name:          "callback port collides with api port",
			mutate:        func(c *Config) { c.CallbackPort = "8080" },
			errorContains: "OAUTH_CALLBACK_PORT must differ from PORT",
		},
		{
			name:          "callback port out of range",
			mutate:        func(c *Config) { c.CallbackPort = "0" },
			errorContains: "OAUTH_CALLBACK_PORT must be a valid port number",
		},
		{
			name:          "bad callback timeout",
			mutate:        func(c *Config) { c.CallbackTimeout = "soon" },
			errorContains: "OAUTH_CALLBACK_TIMEOUT must be a positive duration",
		},
		{
			name:          "negative http timeout",
			mutate:        func(c *Config) { c.HTTPTimeout = "-1s" },
			errorContains: "OAUTH_HTTP_TIMEOUT must be a positive duration",
		},
		{
			name:          "no scopes",
			mutate:        func(c *Config) { c.Scopes = nil },
			errorContains: "OAUTH_SCOPES must list at least one scope",
		},
		{
			name:          "bad lookahead with refresher enabled",
			mutate:        func(c *Config) { c.RefreshLookahead = "x" },
			errorContains: "TOKEN_REFRESH_LOOKAHEAD",
		},
		{
			name: "bad lookahead ignored when refresher disabled",
			mutate: func(c *Config) {
				c.RefreshSchedule = ""
				c.RefreshLookahead = "x"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.errorContains),
				"error %q should contain %q", err.Error(), tt.errorContains)
		})
	}
}

func BenchmarkLoad(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Load()
	}
}
