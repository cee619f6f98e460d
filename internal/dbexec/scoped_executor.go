package dbexec

import (
	"context"
	"database/sql"
	"fmt"

	"gql2sql/internal/sqlutil"
)

// ScopedExecutor runs every query on a connection acquired for that query
// alone and selects the configured database first. The connection goes back
// to the pool when the rows are closed or as soon as any step fails.
type ScopedExecutor struct {
	db           *sql.DB
	databaseName string
}

// NewScopedExecutor creates a ScopedExecutor. An empty databaseName skips USE.
func NewScopedExecutor(db *sql.DB, databaseName string) *ScopedExecutor {
	return &ScopedExecutor{db: db, databaseName: databaseName}
}

func (e *ScopedExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	cleanup := func() {
		_ = conn.Close()
	}

	if err := e.useDatabase(ctx, conn); err != nil {
		cleanup()
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &scopedRows{Rows: rows, cleanup: cleanup}, nil
}

func (e *ScopedExecutor) useDatabase(ctx context.Context, conn *sql.Conn) error {
	if e.databaseName == "" {
		return nil
	}
	useSQL := fmt.Sprintf("USE %s", sqlutil.QuoteIdentifier(e.databaseName))
	if _, err := conn.ExecContext(ctx, useSQL); err != nil {
		return fmt.Errorf("failed to select database %s: %w", e.databaseName, err)
	}
	return nil
}

type scopedRows struct {
	*sql.Rows
	cleanup func()
}

func (r *scopedRows) Close() error {
	defer r.cleanup()
	return r.Rows.Close()
}
