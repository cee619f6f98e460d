package dbexec

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// erSubqueryNo1Row is raised when a nested singleton subquery matches more than one row.
const erSubqueryNo1Row = 1242

// CardinalityError reports a singleton relation that matched more than one row.
type CardinalityError struct {
	Field string
	Err   error
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("field %s expects at most one row but the query returned more", e.Field)
}

func (e *CardinalityError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure raised by the database while running a statement.
type StoreError struct {
	Field string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("query for %s failed: %v", e.Field, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// classify maps a driver error raised for field onto CardinalityError or StoreError.
func classify(field string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == erSubqueryNo1Row {
		return &CardinalityError{Field: field, Err: err}
	}
	return &StoreError{Field: field, Err: err}
}
