package sqlite

import (
	"fmt"
	"strings"
)

type Config struct {
	DatabasePath string
	// BusyTimeoutMS is how long a writer waits on a locked database.
	BusyTimeoutMS int
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy timeout must not be negative")
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqlite"
}

// GetConnectionString returns the go-sqlite3 DSN with foreign keys enabled.
func (c *Config) GetConnectionString() string {
	timeout := c.BusyTimeoutMS
	if timeout == 0 {
		timeout = 5000
	}

	sep := "?"
	if strings.Contains(c.DatabasePath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d&_foreign_keys=on", c.DatabasePath, sep, timeout)
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath:  "./app.sqlite",
		BusyTimeoutMS: 5000,
	}
}
