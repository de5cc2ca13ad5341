// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Export      ExportConfig
	Correlation CorrelationConfig
	Catalog     CatalogConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0, exports can be slow)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// RecordHistory writes every workflow and batch to export_history (default: true)
	RecordHistory bool `env:"DB_RECORD_HISTORY" default:"true"`
}

// ExportConfig holds export pipeline settings.
type ExportConfig struct {
	// BatchSize is the row interval for fetch progress and cancellation checks (default: 50000)
	BatchSize int `env:"EXPORT_BATCH_SIZE" default:"50000"`

	// OutputDir receives files written in EX mode and ad-hoc downloads (default: ./exports)
	OutputDir string `env:"EXPORT_OUTPUT_DIR" default:"./exports"`

	// ImportDir receives files written in IM mode (default: ./imports)
	ImportDir string `env:"EXPORT_IMPORT_DIR" default:"./imports"`

	// DefaultFormat is used when a request names no format (default: xlsx)
	DefaultFormat string `env:"EXPORT_DEFAULT_FORMAT" default:"xlsx"`

	// Timeout bounds a single workflow or batch (default: 30m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"30m"`

	// MaxConcurrent is the number of workflows and batches the server runs at once (default: 2)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"2"`

	// MaxWait is how long a request waits for a free export slot (default: 30s)
	MaxWait time.Duration `env:"EXPORT_MAX_WAIT" default:"30s"`
}

// CorrelationConfig holds correlation tracker maintenance settings.
type CorrelationConfig struct {
	// SweepSchedule is a cron expression or descriptor (default: @every 10m)
	SweepSchedule string `env:"CORRELATION_SWEEP_SCHEDULE" default:"@every 10m"`

	// MaxAge is how long finished contexts are kept (default: 1h)
	MaxAge time.Duration `env:"CORRELATION_MAX_AGE" default:"1h"`
}

// CatalogConfig locates the table and procedure catalog.
type CatalogConfig struct {
	// Path is the YAML catalog file (default: ./catalog.yaml)
	Path string `env:"CATALOG_PATH" default:"./catalog.yaml"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DirFor returns the output directory for a naming mode.
func (c *ExportConfig) DirFor(mode string) string {
	if mode == "IM" {
		return c.ImportDir
	}
	return c.OutputDir
}
