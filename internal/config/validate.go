package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// ValidationError is a fatal configuration problem.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning is a configuration issue the server can run with.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult collects errors and warnings from Validate.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors reports whether any fatal problem was found.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error joins every error message.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the whole configuration.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result, c.Schema.CatalogFile != "")
	c.Server.validate(result)
	c.Schema.validate(result)
	c.Logging.validate(result)
	c.Observability.validate(result)
	return result
}

// validate skips connection checks the offline catalog makes irrelevant,
// except that a configured DSN must still parse.
func (d *DatabaseConfig) validate(result *ValidationResult, offline bool) {
	if d.DSN != "" {
		if _, err := d.DriverConfig(); err != nil {
			result.fail("database.dsn", err.Error(), "use user:pass@tcp(host:port)/db")
		}
	} else if d.Port < 1 || d.Port > 65535 {
		result.fail("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}
	if !offline {
		if _, err := d.DatabaseName(); err != nil {
			result.fail("database.database", err.Error(), "")
		}
	}

	switch d.TLS.Mode {
	case "", "off", "skip-verify", "verify-full":
	case "verify-ca":
		if d.TLS.CAFile == "" {
			result.fail("database.tls.ca_file", "verify-ca requires a CA file", "")
		}
	default:
		result.fail("database.tls.mode", fmt.Sprintf("invalid TLS mode %q", d.TLS.Mode),
			"valid values are: off, skip-verify, verify-ca, verify-full")
	}
	if (d.TLS.CertFile == "") != (d.TLS.KeyFile == "") {
		result.fail("database.tls.cert_file", "cert_file and key_file must be set together", "")
	}

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.warn("database.pool.max_idle", "max_idle is greater than max_open",
			"idle connections will be limited to max_open")
	}
	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.MaxConcurrentStatements < 0 {
		result.fail("server.max_concurrent_statements", "max_concurrent_statements cannot be negative",
			"use 0 to run every root field at once")
	}
	if s.GraphiQL {
		result.warn("server.graphiql", "GraphiQL is enabled", "disable it outside development")
	}

	if s.CORS.Enabled {
		if len(s.CORS.AllowedOrigins) == 0 {
			result.fail("server.cors.allowed_origins", "CORS enabled but no allowed origins configured",
				"set allowed_origins or disable CORS")
		}
		for _, origin := range s.CORS.AllowedOrigins {
			if strings.TrimSpace(origin) != "*" {
				continue
			}
			if s.CORS.AllowCredentials {
				result.fail("server.cors.allowed_origins", "wildcard origin (*) cannot be used with credentials",
					"list origins explicitly when allowing credentials")
			} else {
				result.warn("server.cors.allowed_origins", "CORS wildcard origin enabled",
					"use specific origins in production")
			}
			break
		}
	}

	oidc := s.Auth.OIDC
	if oidc.Enabled {
		if oidc.IssuerURL == "" {
			result.fail("server.auth.oidc.issuer_url", "issuer URL is required when OIDC is enabled", "")
		} else if u, err := url.Parse(oidc.IssuerURL); err != nil || u.Scheme != "https" {
			result.fail("server.auth.oidc.issuer_url", "issuer URL must be an https URL", "")
		}
		if oidc.Audience == "" {
			result.fail("server.auth.oidc.audience", "audience is required when OIDC is enabled", "")
		}
		if oidc.SkipTLSVerify {
			result.warn("server.auth.oidc.skip_tls_verify", "TLS verification of the issuer is disabled",
				"set ca_file instead")
		}
	}
}

func (s *SchemaConfig) validate(result *ValidationResult) {
	if s.SDLFile == "" {
		result.fail("schema.sdl_file", "a GraphQL SDL file is required", "")
	}
	for field, path := range map[string]string{
		"schema.sdl_file":           s.SDLFile,
		"schema.catalog_file":       s.CatalogFile,
		"schema.relationships_file": s.RelationshipsFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			result.fail(field, fmt.Sprintf("cannot read %s", path), "")
		}
	}
	if !s.DeriveRelationships && s.RelationshipsFile == "" {
		result.warn("schema.relationships_file", "no relationships configured",
			"nested relation fields will fail to resolve")
	}
}

func (l *LoggingConfig) validate(result *ValidationResult) {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		result.fail("logging.level", fmt.Sprintf("invalid log level %q", l.Level),
			"valid values are: debug, info, warn, error")
	}
	if l.Format != "json" && l.Format != "text" {
		result.fail("logging.format", fmt.Sprintf("invalid log format %q", l.Format),
			"valid values are: json, text")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "trace_sample_ratio must be between 0 and 1", "")
	}
	if o.TracingEnabled {
		o.TracesOTLP().validate("observability.traces", result)
	}
	if o.LogsEnabled {
		o.LogsOTLP().validate("observability.logs", result)
	}
}

func (o OTLPConfig) validate(prefix string, result *ValidationResult) {
	switch o.Protocol {
	case "", "grpc":
	case "http/protobuf":
		if !validOTLPEndpoint(o.Endpoint) {
			result.fail(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				"use host:port or a full URL")
		}
	default:
		result.fail(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}
	if o.Compression != "" && o.Compression != "none" && o.Compression != "gzip" {
		result.fail(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		return err == nil && u.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
