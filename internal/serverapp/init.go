package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"gql2sql/internal/dbexec"
	"gql2sql/internal/transpiler"
)

// Init acquires every runtime resource. Resources acquired before a failure
// are released before Init returns. Init is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	metrics, err := initMetrics(a.cfg, a.logger)
	if metrics.provider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return metrics.provider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	// With an offline catalog the database name may legitimately be
	// unknown; statements then run against the DSN's default schema.
	databaseName, nameErr := a.cfg.Database.DatabaseName()
	if nameErr != nil && a.cfg.Schema.CatalogFile == "" {
		return fmt.Errorf("failed to resolve database name: %w", nameErr)
	}

	db, releaseDB, err := openDB(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	cleanup.push("database", func(context.Context) error { return releaseDB() })
	configurePool(db, a.cfg.Database.Pool)

	a.logger.Info("connecting to database",
		slog.String("database", databaseName),
		slog.Bool("dsn_present", a.cfg.Database.DSN != ""),
		slog.String("tls_mode", a.cfg.Database.TLS.Mode),
	)
	if err := waitForDatabase(ctx, a.cfg.Database, a.logger, db); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Info("connected to database",
		slog.Int("pool_max_open", a.cfg.Database.Pool.MaxOpen),
		slog.Int("pool_max_idle", a.cfg.Database.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", a.cfg.Database.Pool.MaxLifetime),
	)

	sources, err := LoadSources(ctx, a.cfg.Schema, a.cfg.Naming, a.logger, db, databaseName)
	if err != nil {
		return fmt.Errorf("failed to load compiler sources: %w", err)
	}
	engine := transpiler.New(transpiler.Config{
		Schema:                  sources.Schema,
		Catalog:                 sources.Catalog,
		Relationships:           sources.Relationships,
		Executor:                dbexec.NewScopedExecutor(db, databaseName),
		MaxConcurrentStatements: a.cfg.Server.MaxConcurrentStatements,
	})

	mux, err := buildRouter(a.cfg, a.logger, routeDeps{
		engine:         engine,
		db:             db,
		graphqlMetrics: metrics.graphql,
		authMetrics:    metrics.auth,
		metricsEnabled: metrics.provider != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize GraphQL handler: %w", err)
	}
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := ":" + strconv.Itoa(a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}
	cleanup.push("HTTP server", srv.Shutdown)

	a.stateMu.Lock()
	a.meterProvider = metrics.provider
	a.graphqlMetrics = metrics.graphql
	a.authMetrics = metrics.auth
	a.tracerProvider = tracerProvider
	a.databaseName = databaseName
	a.db = db
	a.engine = engine
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
