// Package dbexec runs compiled statements. Queries go either straight to the
// pool or through a connection scoped to the single query, and every root
// statement yields at most one JSON cell.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows is the part of *sql.Rows a fetch needs. Executors return their own
// implementation when closing the rows must release more than the cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor runs one read-only statement.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// StandardExecutor sends statements to q without any session setup.
type StandardExecutor struct {
	q Querier
}

// NewStandardExecutor wraps q, usually the pool itself.
func NewStandardExecutor(q Querier) *StandardExecutor {
	return &StandardExecutor{q: q}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.q == nil {
		return nil, sql.ErrConnDone
	}
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
