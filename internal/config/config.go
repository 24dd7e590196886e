// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultRoot is used when neither EXPLORER_DATA_ROOT nor MOCK_ROOT is set.
const DefaultRoot = "./sandbox"

// Remote drivers.
const (
	DriverNone    = ""
	DriverCommand = "command"
	DriverHTTP    = "http"
	DriverS3      = "s3"
)

// Config holds all server configuration.
type Config struct {
	// Server
	Port            string        `envconfig:"PORT" default:"8080"`
	ListenAddr      string        `envconfig:"LISTEN_ADDR"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR" default:":9090"`
	BasePath        string        `envconfig:"BASE_PATH" default:"/file-explorer"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Sandbox
	DataRoot   string `envconfig:"EXPLORER_DATA_ROOT"`
	MockRoot   string `envconfig:"MOCK_ROOT"`
	CreateRoot bool   `envconfig:"CREATE_ROOT" default:"true"`
	ExposeRoot bool   `envconfig:"EXPOSE_ROOT" default:"false"`
	WatchRoot  bool   `envconfig:"WATCH_ROOT" default:"true"`

	// Rate limiting (0 disables)
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"100"`

	// Stars: Postgres when DATABASE_URL is set, else a JSON file, else memory.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	StarsFile   string `envconfig:"STARS_FILE"`

	// Remote backend
	RemoteDriver      string        `envconfig:"REMOTE_DRIVER"`
	RemoteListCommand string        `envconfig:"REMOTE_LIST_COMMAND"`
	RemoteReadCommand string        `envconfig:"REMOTE_READ_COMMAND"`
	RemoteURL         string        `envconfig:"REMOTE_URL"`
	RemoteTimeout     time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`

	// S3 remote driver
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.BasePath = normalizeBasePath(cfg.BasePath)
	cfg.RemoteDriver = strings.ToLower(strings.TrimSpace(cfg.RemoteDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}

	switch c.RemoteDriver {
	case DriverNone:
	case DriverCommand:
		if len(c.ListCommand()) == 0 {
			return fmt.Errorf("REMOTE_LIST_COMMAND is required for the command driver")
		}
	case DriverHTTP:
		if c.RemoteURL == "" {
			return fmt.Errorf("REMOTE_URL is required for the http driver")
		}
	case DriverS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown REMOTE_DRIVER %q", c.RemoteDriver)
	}
	return nil
}

// Addr is the API listen address. LISTEN_ADDR wins over PORT.
func (c *Config) Addr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return ":" + c.Port
}

// Root is the sandbox directory: EXPLORER_DATA_ROOT, then MOCK_ROOT, then
// DefaultRoot.
func (c *Config) Root() string {
	switch {
	case c.DataRoot != "":
		return c.DataRoot
	case c.MockRoot != "":
		return c.MockRoot
	default:
		return DefaultRoot
	}
}

// ListCommand splits REMOTE_LIST_COMMAND into an argv.
func (c *Config) ListCommand() []string { return strings.Fields(c.RemoteListCommand) }

// ReadCommand splits REMOTE_READ_COMMAND into an argv.
func (c *Config) ReadCommand() []string { return strings.Fields(c.RemoteReadCommand) }

// normalizeBasePath returns "" or a path with a leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
