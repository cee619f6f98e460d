package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"gql2sql/internal/config"
	"gql2sql/internal/logging"
)

const maxRetryInterval = 30 * time.Second

// openDB opens the pool without connecting. The returned release function
// unregisters pool metrics and closes the pool.
func openDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, func() error, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, err
	}
	dsn, err := cfg.Database.FormatDSN()
	if err != nil {
		return nil, nil, err
	}

	obs := cfg.Observability
	if !obs.MetricsEnabled && !obs.TracingEnabled {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}

	opts := []otelsql.Option{otelsql.WithAttributes(semconv.DBSystemMySQL)}
	if obs.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		if obs.SQLCommenterEnabled {
			opts = append(opts, otelsql.WithSQLCommenter(true))
		}
	} else if obs.SQLCommenterEnabled {
		logger.Debug("sqlcommenter needs tracing; statements go out without trace comments")
	}

	db, err := otelsql.Open("mysql", dsn, opts...)
	if err != nil {
		return nil, nil, err
	}
	var stats interface{ Unregister() error }
	if obs.MetricsEnabled {
		stats, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemMySQL))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}
	logger.Info("database instrumentation enabled",
		slog.Bool("metrics", obs.MetricsEnabled),
		slog.Bool("tracing", obs.TracingEnabled),
		slog.Bool("sqlcommenter", obs.SQLCommenterEnabled && obs.TracingEnabled),
	)

	release := func() error {
		if stats != nil {
			if err := stats.Unregister(); err != nil {
				logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	}
	return db, release, nil
}

func configurePool(db *sql.DB, pool config.PoolConfig) {
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
}

// waitForDatabase pings until the database answers or cfg.ConnectionTimeout
// elapses. The retry interval doubles after each failure up to
// maxRetryInterval. A zero timeout pings once.
func waitForDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger, db *sql.DB) error {
	if cfg.ConnectionTimeout == 0 {
		return db.PingContext(ctx)
	}

	interval := cfg.ConnectionRetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(cfg.ConnectionTimeout)
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", cfg.ConnectionTimeout, err)
		}
		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxRetryInterval)
	}
}
