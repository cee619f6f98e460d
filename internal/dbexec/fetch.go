package dbexec

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"gql2sql/internal/planner"
)

// FetchJSON runs stmt and returns its single JSON cell. A statement that
// yields no row returns nil; one that yields several fails with
// CardinalityError.
func FetchJSON(ctx context.Context, exec QueryExecutor, stmt planner.Statement) (json.RawMessage, error) {
	rows, err := exec.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, classify(stmt.ResponseAlias, err)
	}
	defer rows.Close()

	var raw json.RawMessage
	seen := 0
	for rows.Next() {
		seen++
		if seen > 1 {
			return nil, &CardinalityError{Field: stmt.ResponseAlias}
		}
		var cell []byte
		if err := rows.Scan(&cell); err != nil {
			return nil, classify(stmt.ResponseAlias, err)
		}
		raw = cell
	}
	if err := rows.Err(); err != nil {
		return nil, classify(stmt.ResponseAlias, err)
	}
	return raw, nil
}

// Observer is told about every finished statement.
type Observer func(ctx context.Context, stmt planner.Statement, elapsed time.Duration, err error)

// FetchOptions tunes FetchAll.
type FetchOptions struct {
	// MaxConcurrent bounds the statements in flight; zero or less means unbounded.
	MaxConcurrent int
	Observe       Observer
}

// FetchAll runs the statements concurrently and returns their cells in
// statement order. The first failure cancels the statements still running.
func FetchAll(ctx context.Context, exec QueryExecutor, statements []planner.Statement, opts FetchOptions) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(statements))
	g, gctx := errgroup.WithContext(ctx)
	if opts.MaxConcurrent > 0 {
		g.SetLimit(opts.MaxConcurrent)
	}
	for i, stmt := range statements {
		g.Go(func() error {
			start := time.Now()
			raw, err := FetchJSON(gctx, exec, stmt)
			if opts.Observe != nil {
				opts.Observe(gctx, stmt, time.Since(start), err)
			}
			if err != nil {
				return err
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
