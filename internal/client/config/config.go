package config

import (
	"os"
	"time"
)

const (
	DefaultAPIURL         = "https://blog-api-1-r23t.onrender.com"
	DefaultRequestTimeout = 10 * time.Second
	DefaultStateDB        = "blog.db"
)

// Config holds runtime settings for the blog client.
//
// StateDB set to ":memory:" keeps session and theme for the current run
// only.
type Config struct {
	APIURL         string
	RequestTimeout time.Duration
	StateDB        string
	LogLevel       string
	LogBackend     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIURL = DefaultAPIURL
	c.RequestTimeout = DefaultRequestTimeout
	c.StateDB = DefaultStateDB
	c.LogLevel = "info"
	c.LogBackend = "slog"
}

// LoadConfig builds a Config from all sources using the process arguments
// and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.LookupEnv)
}

// Load applies defaults, .env and environment, the config file and flags,
// in that order.
func Load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
