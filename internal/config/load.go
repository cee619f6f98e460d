package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable, e.g.
// GQL2SQL_SERVER_MAX_CONCURRENT_STATEMENTS.
const EnvPrefix = "GQL2SQL"

var defineFlagsOnce sync.Once

// Load reads configuration using the process command line. Precedence, from
// highest: explicitly set flags, environment, config file, defaults.
func Load() (*Config, error) {
	defineFlagsOnce.Do(func() { DefineFlags(pflag.CommandLine) })
	if !pflag.Parsed() {
		pflag.Parse()
	}
	return LoadFrom(pflag.CommandLine)
}

// LoadFrom reads configuration using flags already parsed into fs. fs must
// have been prepared with DefineFlags.
func LoadFrom(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("gql2sql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/gql2sql/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlags(v, fs)

	if err := resolvePassword(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		commaSeparatedHook(),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// resolvePassword fills database.password from a file or the terminal when
// it is not set directly.
func resolvePassword(v *viper.Viper) error {
	if v.GetString("database.password") != "" {
		return nil
	}
	if path := v.GetString("database.password_file"); path != "" {
		pwd, err := readSecretFile(path)
		if err != nil {
			return fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
		return nil
	}
	if v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}
	return nil
}

// bindChangedFlags copies only flags the user set, so unset flags never
// shadow the environment or the file.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		var val any
		switch f.Value.Type() {
		case "int":
			val, _ = fs.GetInt(f.Name)
		case "bool":
			val, _ = fs.GetBool(f.Name)
		case "float64":
			val, _ = fs.GetFloat64(f.Name)
		case "duration":
			val, _ = fs.GetDuration(f.Name)
		case "stringSlice":
			val, _ = fs.GetStringSlice(f.Name)
		default:
			val = f.Value.String()
		}
		v.Set(f.Name, val)
	})
}

// DefineFlags registers the configuration flags on fs using the canonical
// dotted keys.
func DefineFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Config file path")

	fs.String("database.dsn", "", "Complete MySQL DSN (user:pass@tcp(host:port)/db)")
	fs.String("database.host", "", "Database host")
	fs.Int("database.port", 0, "Database port")
	fs.String("database.user", "", "Database user")
	fs.String("database.password", "", "Database password")
	fs.String("database.password_file", "", "File containing the database password (@- for stdin)")
	fs.Bool("database.password_prompt", false, "Prompt for the database password")
	fs.String("database.database", "", "Database name")
	fs.String("database.tls.mode", "", "TLS mode (off, skip-verify, verify-ca, verify-full)")
	fs.String("database.tls.ca_file", "", "CA certificate for server verification")
	fs.Int("database.pool.max_open", 0, "Maximum open connections")
	fs.Int("database.pool.max_idle", 0, "Maximum idle connections")
	fs.Duration("database.pool.max_lifetime", 0, "Connection max lifetime")
	fs.Duration("database.connection_timeout", 0, "How long startup waits for the database")

	fs.Int("server.port", 0, "HTTP port")
	fs.Bool("server.graphiql", false, "Serve GraphiQL on GET /graphql (dev only)")
	fs.Int("server.max_concurrent_statements", 0, "Root field statements run at once per request (0 = unlimited)")
	fs.Duration("server.shutdown_timeout", 0, "Graceful shutdown timeout")
	fs.Bool("server.cors.enabled", false, "Enable CORS")
	fs.StringSlice("server.cors.allowed_origins", nil, "Allowed CORS origins")
	fs.Bool("server.auth.oidc.enabled", false, "Require OIDC bearer tokens")
	fs.String("server.auth.oidc.issuer_url", "", "OIDC issuer URL")
	fs.String("server.auth.oidc.audience", "", "Expected token audience")

	fs.String("schema.sdl_file", "", "GraphQL SDL file")
	fs.String("schema.catalog_file", "", "Catalog YAML file (skips database introspection)")
	fs.String("schema.relationships_file", "", "Relationship registry YAML file")
	fs.Bool("schema.derive_relationships", false, "Derive relationships from foreign keys")

	fs.String("logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("logging.format", "", "Log format (json, text)")

	fs.Bool("observability.metrics_enabled", false, "Expose Prometheus metrics on /metrics")
	fs.Bool("observability.tracing_enabled", false, "Export traces over OTLP")
	fs.Bool("observability.logs_enabled", false, "Export logs over OTLP")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio (0-1)")
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint")
	fs.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Disable TLS for OTLP")
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"database.dsn":                       "",
		"database.host":                      "localhost",
		"database.port":                      4000,
		"database.user":                      "root",
		"database.password":                  "",
		"database.password_file":             "",
		"database.password_prompt":           false,
		"database.database":                  "",
		"database.tls.mode":                  "",
		"database.tls.ca_file":               "",
		"database.tls.cert_file":             "",
		"database.tls.key_file":              "",
		"database.tls.server_name":           "",
		"database.pool.max_open":             25,
		"database.pool.max_idle":             5,
		"database.pool.max_lifetime":         5 * time.Minute,
		"database.connection_timeout":        60 * time.Second,
		"database.connection_retry_interval": 2 * time.Second,

		"server.port":                      8080,
		"server.graphiql":                  false,
		"server.max_concurrent_statements": 4,
		"server.read_timeout":              15 * time.Second,
		"server.write_timeout":             30 * time.Second,
		"server.idle_timeout":              60 * time.Second,
		"server.shutdown_timeout":          30 * time.Second,
		"server.health_check_timeout":      2 * time.Second,
		"server.cors.enabled":              false,
		"server.cors.allowed_origins":      []string{},
		"server.cors.allowed_methods":      []string{"GET", "POST", "OPTIONS"},
		"server.cors.allowed_headers":      []string{"Content-Type", "Authorization"},
		"server.cors.expose_headers":       []string{"X-Request-ID"},
		"server.cors.allow_credentials":    false,
		"server.cors.max_age":              86400,
		"server.auth.oidc.enabled":         false,
		"server.auth.oidc.issuer_url":      "",
		"server.auth.oidc.audience":        "",
		"server.auth.oidc.clock_skew":      2 * time.Minute,
		"server.auth.oidc.ca_file":         "",
		"server.auth.oidc.skip_tls_verify": false,

		"schema.sdl_file":             "",
		"schema.catalog_file":         "",
		"schema.relationships_file":   "",
		"schema.derive_relationships": true,
		"schema.type_tables":          map[string]string{},

		"naming.plural_overrides":   map[string]string{},
		"naming.singular_overrides": map[string]string{},

		"logging.level":  "info",
		"logging.format": "json",

		"observability.service_name":         "gql2sql",
		"observability.service_version":      "",
		"observability.environment":          "development",
		"observability.metrics_enabled":      true,
		"observability.tracing_enabled":      false,
		"observability.logs_enabled":         false,
		"observability.trace_sample_ratio":   1.0,
		"observability.sqlcommenter_enabled": true,

		"observability.otlp.endpoint":             "localhost:4317",
		"observability.otlp.protocol":             "grpc",
		"observability.otlp.insecure":             false,
		"observability.otlp.tls_cert_file":        "",
		"observability.otlp.tls_client_cert_file": "",
		"observability.otlp.tls_client_key_file":  "",
		"observability.otlp.headers":              map[string]string{},
		"observability.otlp.timeout":              10 * time.Second,
		"observability.otlp.compression":          "gzip",
		"observability.otlp.retry_enabled":        true,
		"observability.otlp.retry_max_attempts":   3,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	pwd, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// readSecretFile reads a trimmed secret from path, or from stdin for "@-".
func readSecretFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// commaSeparatedHook splits a string such as an environment value into a
// string slice.
func commaSeparatedHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
