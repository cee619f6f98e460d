// Package config loads server configuration from a YAML file, GQL2SQL_*
// environment variables and command line flags, and validates it.
package config

import (
	"time"

	"gql2sql/internal/naming"
)

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Server        ServerConfig        `mapstructure:"server"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	Naming        naming.Config       `mapstructure:"naming"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DatabaseConfig holds connection parameters for the MySQL/TiDB backend.
type DatabaseConfig struct {
	// DSN is a complete go-sql-driver/mysql data source name. When set it
	// replaces the discrete fields below.
	DSN            string `mapstructure:"dsn"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"` // "@-" reads stdin
	PasswordPrompt bool   `mapstructure:"password_prompt"`
	Database       string `mapstructure:"database"`

	TLS  DatabaseTLSConfig `mapstructure:"tls"`
	Pool PoolConfig        `mapstructure:"pool"`

	// ConnectionTimeout bounds how long startup waits for the database.
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

// DatabaseTLSConfig selects how the driver secures connections.
//
// Modes: off, skip-verify, verify-ca, verify-full. The last two register a
// custom tls.Config with the driver built from the files below.
type DatabaseTLSConfig struct {
	Mode       string `mapstructure:"mode"`
	CAFile     string `mapstructure:"ca_file"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	ServerName string `mapstructure:"server_name"`
}

// PoolConfig holds connection pool parameters.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port     int  `mapstructure:"port"`
	GraphiQL bool `mapstructure:"graphiql"`
	// MaxConcurrentStatements caps how many root field statements of one
	// request run at once. Zero runs them all concurrently.
	MaxConcurrentStatements int `mapstructure:"max_concurrent_statements"`

	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`

	CORS CORSConfig `mapstructure:"cors"`
	Auth AuthConfig `mapstructure:"auth"`
}

// CORSConfig mirrors middleware.CORSConfig.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// AuthConfig groups request authentication settings.
type AuthConfig struct {
	OIDC OIDCConfig `mapstructure:"oidc"`
}

// OIDCConfig configures bearer token validation against an OIDC issuer.
type OIDCConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	IssuerURL     string        `mapstructure:"issuer_url"`
	Audience      string        `mapstructure:"audience"`
	ClockSkew     time.Duration `mapstructure:"clock_skew"`
	CAFile        string        `mapstructure:"ca_file"`
	SkipTLSVerify bool          `mapstructure:"skip_tls_verify"`
}

// SchemaConfig names the inputs the compiler is built from.
type SchemaConfig struct {
	// SDLFile is the GraphQL schema document. Required.
	SDLFile string `mapstructure:"sdl_file"`
	// CatalogFile, when set, replaces database introspection.
	CatalogFile         string `mapstructure:"catalog_file"`
	RelationshipsFile   string `mapstructure:"relationships_file"`
	DeriveRelationships bool   `mapstructure:"derive_relationships"`
	// TypeTables maps GraphQL type names to table names. Keys are matched
	// case-insensitively because configuration keys are folded to lower case.
	TypeTables map[string]string `mapstructure:"type_tables"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ObservabilityConfig holds telemetry parameters.
type ObservabilityConfig struct {
	ServiceName         string  `mapstructure:"service_name"`
	ServiceVersion      string  `mapstructure:"service_version"`
	Environment         string  `mapstructure:"environment"`
	MetricsEnabled      bool    `mapstructure:"metrics_enabled"`
	TracingEnabled      bool    `mapstructure:"tracing_enabled"`
	LogsEnabled         bool    `mapstructure:"logs_enabled"`
	TraceSampleRatio    float64 `mapstructure:"trace_sample_ratio"`
	SQLCommenterEnabled bool    `mapstructure:"sqlcommenter_enabled"`

	OTLP OTLPConfig `mapstructure:"otlp"`
	// Traces and Logs override OTLP for a single signal.
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter settings.
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // grpc, http/protobuf
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // none, gzip
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// TracesOTLP returns the OTLP settings effective for traces.
func (o *ObservabilityConfig) TracesOTLP() OTLPConfig {
	return o.OTLP.overlay(o.Traces)
}

// LogsOTLP returns the OTLP settings effective for logs.
func (o *ObservabilityConfig) LogsOTLP() OTLPConfig {
	return o.OTLP.overlay(o.Logs)
}

// overlay returns base with every set field of override applied. Insecure
// is always taken from override since false cannot be told from unset.
func (base OTLPConfig) overlay(override *OTLPConfig) OTLPConfig {
	if override == nil {
		return base
	}
	out := base
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.Endpoint, override.Endpoint)
	pick(&out.Protocol, override.Protocol)
	pick(&out.TLSCertFile, override.TLSCertFile)
	pick(&out.TLSClientCertFile, override.TLSClientCertFile)
	pick(&out.TLSClientKeyFile, override.TLSClientKeyFile)
	pick(&out.Compression, override.Compression)
	out.Insecure = override.Insecure
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.RetryMaxAttempts != 0 {
		out.RetryEnabled = override.RetryEnabled
		out.RetryMaxAttempts = override.RetryMaxAttempts
	}
	if override.Headers != nil {
		out.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			out.Headers[k] = v
		}
		for k, v := range override.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
