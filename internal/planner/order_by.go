package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"gql2sql/internal/cursor"
	"gql2sql/internal/introspection"
	"gql2sql/internal/literal"
	"gql2sql/internal/querytree"
	"gql2sql/internal/schema"
	"gql2sql/internal/sqlutil"
)

// parseOrderBy reads an orderBy object such as {title: DESC, id: ASC}.
// Keys keep the order they were written in; null directions are ignored.
func parseOrderBy(table *introspection.Table, value any) ([]cursor.OrderField, error) {
	if value == nil {
		return nil, nil
	}
	obj, ok := value.(literal.Object)
	if !ok {
		return nil, fmt.Errorf("expected an input object, got %s", literal.Describe(value))
	}
	fields := make([]cursor.OrderField, 0, len(obj))
	seen := make(map[string]bool, len(obj))
	for _, f := range obj {
		if f.Value == nil {
			continue
		}
		col, ok := table.Column(f.Name)
		if !ok {
			return nil, fmt.Errorf("unknown field %s on table %s", f.Name, table.Name)
		}
		dir, err := parseDirection(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if seen[col.Name] {
			continue
		}
		seen[col.Name] = true
		fields = append(fields, cursor.OrderField{Column: col.Name, Direction: dir})
	}
	return fields, nil
}

func parseDirection(value any) (cursor.Direction, error) {
	var raw string
	switch v := value.(type) {
	case literal.Enum:
		raw = string(v)
	case string:
		raw = v
	default:
		return "", fmt.Errorf("direction must be ASC or DESC, got %s", literal.Describe(value))
	}
	switch {
	case strings.EqualFold(raw, string(cursor.Asc)):
		return cursor.Asc, nil
	case strings.EqualFold(raw, string(cursor.Desc)):
		return cursor.Desc, nil
	default:
		return "", fmt.Errorf("direction must be ASC or DESC, got %s", raw)
	}
}

// effectiveOrder appends the primary key columns missing from explicit, in
// key order, so the ordering is total. Tables without a primary key fall
// back to all of their columns.
func effectiveOrder(table *introspection.Table, explicit []cursor.OrderField) []cursor.OrderField {
	keys := table.PrimaryKey
	if len(keys) == 0 {
		keys = table.ColumnNames()
	}
	order := make([]cursor.OrderField, 0, len(explicit)+len(keys))
	seen := make(map[string]bool, len(explicit)+len(keys))
	for _, f := range explicit {
		seen[f.Column] = true
		order = append(order, f)
	}
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		order = append(order, cursor.OrderField{Column: k, Direction: cursor.Asc})
	}
	return order
}

func orderClause(order []cursor.OrderField, alias string) string {
	parts := make([]string, len(order))
	for i, f := range order {
		parts[i] = sqlutil.Qualify(alias, f.Column) + " " + string(f.Direction)
	}
	return strings.Join(parts, ", ")
}

func cursorBoundary(rel *querytree.Relation, order []cursor.OrderField, pairs []cursor.Pair, alias string) (sq.Sqlizer, error) {
	boundary, err := cursor.Boundary(order, pairs, alias)
	if err != nil {
		return nil, schema.Errorf("after on %s: %v", rel.FieldName, err)
	}
	return boundary, nil
}
