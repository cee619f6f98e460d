package serverapp

import (
	"log/slog"

	"gql2sql/internal/config"
	"gql2sql/internal/logging"
	"gql2sql/internal/observability"
)

// InitLogger builds the process logger. When OTLP log export is enabled the
// returned provider must be shut down by the caller or attached to the App.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.LogsEnabled {
		return logger, nil, nil
	}

	otlp := cfg.Observability.LogsOTLP()
	logger.Info("initializing OpenTelemetry log export",
		slog.String("otlp_endpoint", otlp.Endpoint),
		slog.String("otlp_protocol", otlp.Protocol),
		slog.Bool("insecure", otlp.Insecure),
	)
	provider, err := observability.InitLoggerProvider(telemetryConfig(cfg, otlp))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = provider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	return logger, provider, nil
}

func telemetryConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

type metricsBundle struct {
	provider *observability.MeterProvider
	graphql  *observability.GraphQLMetrics
	auth     *observability.AuthMetrics
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (metricsBundle, error) {
	if !cfg.Observability.MetricsEnabled {
		return metricsBundle{}, nil
	}
	provider, err := observability.InitMeterProvider(telemetryConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return metricsBundle{}, err
	}
	graphqlMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return metricsBundle{provider: provider}, err
	}
	authMetrics, err := observability.InitAuthMetrics()
	if err != nil {
		return metricsBundle{provider: provider}, err
	}
	logger.Info("OpenTelemetry metrics initialized", slog.String("exporter", "prometheus"))
	return metricsBundle{provider: provider, graphql: graphqlMetrics, auth: authMetrics}, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}
	otlp := cfg.Observability.TracesOTLP()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", otlp.Endpoint),
		slog.String("otlp_protocol", otlp.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)
	return observability.InitTracerProvider(telemetryConfig(cfg, otlp))
}
