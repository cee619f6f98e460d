// Package cursor implements keyset pagination cursors. A cursor is the JSON
// text of an object holding a row's effective order field values; the
// database renders it, and Decode plus Boundary turn it back into a
// predicate selecting the rows that follow.
package cursor

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"gql2sql/internal/literal"
	"gql2sql/internal/sqlutil"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderField is one column of an effective ordering.
type OrderField struct {
	Column    string
	Direction Direction
}

// Pair is one decoded cursor entry.
type Pair struct {
	Field string
	Value any
}

// Decode parses an after argument into its field/value pairs in the order
// they appear in the text.
func Decode(after string) ([]Pair, error) {
	parsed, err := literal.DecodeJSON([]byte(after))
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	obj, ok := parsed.(literal.Object)
	if !ok {
		return nil, fmt.Errorf("invalid cursor: expected a JSON object")
	}
	pairs := make([]Pair, 0, len(obj))
	seen := make(map[string]struct{}, len(obj))
	for _, f := range obj {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("invalid cursor: duplicate field %s", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Value != nil && !literal.IsScalar(f.Value) {
			return nil, fmt.Errorf("invalid cursor: field %s must hold a scalar value", f.Name)
		}
		pairs = append(pairs, Pair{Field: f.Name, Value: f.Value})
	}
	return pairs, nil
}

// Expression renders the SQL that builds a row's cursor: a JSON object of
// the order fields cast to text.
func Expression(fields []OrderField, alias string) string {
	parts := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		parts = append(parts, sqlutil.QuoteString(f.Column), sqlutil.Qualify(alias, f.Column))
	}
	return "CAST(JSON_OBJECT(" + strings.Join(parts, ", ") + ") AS CHAR)"
}

// Boundary builds the keyset predicate matching rows strictly after the
// cursor row under fields. The cursor must carry exactly the order fields;
// the database may have reordered its keys, so values are matched by name.
//
// NULL sorts first ascending and last descending, so a field f with value v
// contributes:
//
//	ASC,  v set:  f > v OR (f = v AND rest)
//	ASC,  v null: f IS NOT NULL OR (f IS NULL AND rest)
//	DESC, v set:  f < v OR f IS NULL OR (f = v AND rest)
//	DESC, v null: f IS NULL AND rest
func Boundary(fields []OrderField, pairs []Pair, alias string) (sq.Sqlizer, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("cursor requires at least one order field")
	}
	byName := make(map[string]any, len(pairs))
	for _, p := range pairs {
		byName[p.Field] = p.Value
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		v, ok := byName[f.Column]
		if !ok {
			return nil, fmt.Errorf("cursor is missing order field %s", f.Column)
		}
		values[i] = literal.SQLValue(v)
		delete(byName, f.Column)
	}
	if len(byName) > 0 {
		extra := make([]string, 0, len(byName))
		for name := range byName {
			extra = append(extra, name)
		}
		sort.Strings(extra)
		return nil, fmt.Errorf("cursor fields not part of the ordering: %s", strings.Join(extra, ", "))
	}
	return boundary(fields, values, alias, 0), nil
}

func boundary(fields []OrderField, values []any, alias string, i int) sq.Sqlizer {
	col := sqlutil.Qualify(alias, fields[i].Column)
	v := values[i]
	last := i == len(fields)-1

	if fields[i].Direction == Desc {
		if v == nil {
			if last {
				return sq.Or{}
			}
			return sq.And{sq.Expr(col + " IS NULL"), boundary(fields, values, alias, i+1)}
		}
		if last {
			return sq.Or{sq.Expr(col+" < ?", v), sq.Expr(col + " IS NULL")}
		}
		return sq.Or{
			sq.Expr(col+" < ?", v),
			sq.Expr(col + " IS NULL"),
			sq.And{sq.Expr(col+" = ?", v), boundary(fields, values, alias, i+1)},
		}
	}

	if v == nil {
		if last {
			return sq.Expr(col + " IS NOT NULL")
		}
		return sq.Or{
			sq.Expr(col + " IS NOT NULL"),
			sq.And{sq.Expr(col + " IS NULL"), boundary(fields, values, alias, i+1)},
		}
	}
	if last {
		return sq.Expr(col+" > ?", v)
	}
	return sq.Or{
		sq.Expr(col+" > ?", v),
		sq.And{sq.Expr(col+" = ?", v), boundary(fields, values, alias, i+1)},
	}
}
