// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Convert   ConvertConfig
	Validator ValidatorConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings. The database is
// optional: without a URL the converter runs without history or audit.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (empty disables persistence)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ConvertConfig holds conversion run settings.
type ConvertConfig struct {
	// MaxFileSize is the maximum allowed source file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"CONVERT_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel conversion runs (default: 4)
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single conversion run (default: 10m)
	Timeout time.Duration `env:"CONVERT_TIMEOUT" default:"10m"`

	// ExportDir is where produced documents are written (empty disables export)
	ExportDir string `env:"CONVERT_EXPORT_DIR"`

	// RawCopyPolicy selects how the original row is embedded in each entity:
	// "verbatim" for a nested object, "encoded" for a compact JSON string
	RawCopyPolicy string `env:"CONVERT_RAW_COPY_POLICY" default:"verbatim"`
}

// ValidatorConfig holds schema checker settings. Verification is optional:
// without a URL the verify endpoints report the checker as unconfigured.
type ValidatorConfig struct {
	// URL is the schema checker endpoint documents are POSTed to
	URL string `env:"VALIDATOR_URL"`

	// APIKey is sent as a bearer token when set
	APIKey string `env:"VALIDATOR_API_KEY"`

	// Timeout is the per-request limit for checker calls (default: 30s)
	Timeout time.Duration `env:"VALIDATOR_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ConvertLimit is requests per minute for conversion endpoints (default: 10)
	ConvertLimit int `env:"RATE_LIMIT_CONVERT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey gates the API behind X-API-Key auth (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RetentionConfig holds history retention settings.
type RetentionConfig struct {
	// RunRetentionDays is days to keep finished conversion runs (default: 30)
	RunRetentionDays int `env:"RETENTION_RUN_DAYS" default:"30"`

	// AuditRetentionDays is days to keep audit entries (default: 90)
	AuditRetentionDays int `env:"RETENTION_AUDIT_DAYS" default:"90"`

	// CheckInterval is how often to run the purge job (default: 24h)
	CheckInterval time.Duration `env:"RETENTION_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
