package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvAPIURL         = "BLOG_API_URL"
	EnvRequestTimeout = "BLOG_REQUEST_TIMEOUT"
	EnvStateDB        = "BLOG_STATE_DB"
	EnvLogLevel       = "BLOG_LOG_LEVEL"
	EnvLogBackend     = "BLOG_LOG_BACKEND"
)

// loadDotEnv exports the variables of path into the process environment.
// Variables that are already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// applyEnv overlays cfg with BLOG_* variables. The timeout accepts a Go
// duration ("15s") or a number of seconds.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		cfg.APIURL = v
	}
	if v, ok := lookup(EnvRequestTimeout); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if v, ok := lookup(EnvStateDB); ok && v != "" {
		cfg.StateDB = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvLogBackend); ok && v != "" {
		cfg.LogBackend = v
	}
	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}
