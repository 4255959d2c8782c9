// Package config loads runtime configuration for the blog client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory, then BLOG_* environment
//     variables (see applyEnv).
//  3. Optional config file selected with -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   base URL of the blog API
//	-t int      request timeout (seconds)
//	-d string   path of the local state database
//	-l string   log level (debug, info, warn, error)
//
// # File schema
//
// Durations are strings like "10s" or integer nanoseconds:
//
//	{
//	  "api_url": "https://blog.example.com",
//	  "request_timeout": "10s",
//	  "state_db": "blog.db",
//	  "log_level": "info",
//	  "log_backend": "zerolog"
//	}
package config
