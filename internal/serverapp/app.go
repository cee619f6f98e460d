// Package serverapp assembles the gql2sql HTTP server: telemetry, the
// database pool, the catalog and relationship registry, the transpiler
// engine and its middleware chain.
package serverapp

import (
	"database/sql"
	"errors"
	"net/http"
	"sync"

	"gql2sql/internal/config"
	"gql2sql/internal/logging"
	"gql2sql/internal/observability"
	"gql2sql/internal/transpiler"
)

// App owns the resources of one server lifetime.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	graphqlMetrics *observability.GraphQLMetrics
	authMetrics    *observability.AuthMetrics

	databaseName string
	db           *sql.DB
	engine       *transpiler.Engine

	handler    http.Handler
	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App for a validated configuration.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider hands the OTLP log provider to the app so it is shut
// down last.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the root HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
