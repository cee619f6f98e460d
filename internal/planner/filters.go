package planner

import (
	sq "github.com/Masterminds/squirrel"

	"gql2sql/internal/introspection"
	"gql2sql/internal/literal"
	"gql2sql/internal/querytree"
	"gql2sql/internal/schema"
	"gql2sql/internal/sqlutil"
)

// filterPredicates turns non-reserved arguments into column predicates:
//
//	null            col IS NULL
//	scalar          col = ?
//	[a, b]          col IN (?,?)
//	[a, null]       (col IN (?) OR col IS NULL)
//	[]              (1=0)
func filterPredicates(table *introspection.Table, alias string, filters []querytree.Argument) ([]sq.Sqlizer, error) {
	predicates := make([]sq.Sqlizer, 0, len(filters))
	for _, f := range filters {
		col, ok := table.Column(f.Name)
		if !ok {
			return nil, schema.Errorf("argument %s does not match a column of table %s", f.Name, table.Name)
		}
		pred, err := filterPredicate(sqlutil.Qualify(alias, col.Name), f.Name, f.Value)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, pred)
	}
	return predicates, nil
}

func filterPredicate(column, name string, value any) (sq.Sqlizer, error) {
	switch v := value.(type) {
	case nil:
		return sq.Eq{column: nil}, nil
	case []any:
		values := make([]any, 0, len(v))
		hasNull := false
		for _, item := range v {
			if item == nil {
				hasNull = true
				continue
			}
			if !literal.IsScalar(item) {
				return nil, schema.Errorf("argument %s: unsupported list element %s", name, literal.Describe(item))
			}
			values = append(values, literal.SQLValue(item))
		}
		switch {
		case hasNull && len(values) == 0:
			return sq.Eq{column: nil}, nil
		case hasNull:
			return sq.Or{sq.Eq{column: values}, sq.Eq{column: nil}}, nil
		default:
			return sq.Eq{column: values}, nil
		}
	default:
		if !literal.IsScalar(v) {
			return nil, schema.Errorf("argument %s: unsupported value %s", name, literal.Describe(v))
		}
		return sq.Eq{column: literal.SQLValue(v)}, nil
	}
}
