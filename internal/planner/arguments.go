package planner

import (
	"gql2sql/internal/cursor"
	"gql2sql/internal/introspection"
	"gql2sql/internal/literal"
	"gql2sql/internal/querytree"
	"gql2sql/internal/schema"
)

// Reserved argument names. Every other argument filters a column.
const (
	argFirst   = "first"
	argOrderBy = "orderBy"
	argAfter   = "after"
)

type relationArgs struct {
	limit   *uint64
	after   []cursor.Pair
	orderBy []cursor.OrderField
	filters []querytree.Argument
}

func parseArguments(rel *querytree.Relation, table *introspection.Table) (relationArgs, error) {
	var args relationArgs
	for _, arg := range rel.Arguments {
		switch arg.Name {
		case argFirst:
			limit, err := parseFirst(rel.FieldName, arg.Value)
			if err != nil {
				return relationArgs{}, err
			}
			args.limit = limit
		case argAfter:
			if arg.Value == nil {
				continue
			}
			after, ok := arg.Value.(string)
			if !ok {
				return relationArgs{}, schema.Errorf("after on %s must be a string, got %s", rel.FieldName, literal.Describe(arg.Value))
			}
			pairs, err := cursor.Decode(after)
			if err != nil {
				return relationArgs{}, schema.Errorf("after on %s: %v", rel.FieldName, err)
			}
			args.after = pairs
		case argOrderBy:
			fields, err := parseOrderBy(table, arg.Value)
			if err != nil {
				return relationArgs{}, schema.Errorf("orderBy on %s: %v", rel.FieldName, err)
			}
			args.orderBy = fields
		default:
			args.filters = append(args.filters, arg)
		}
	}
	return args, nil
}

func parseFirst(field string, value any) (*uint64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int64:
		if v < 0 {
			return nil, schema.Errorf("first on %s must be non-negative, got %d", field, v)
		}
		limit := uint64(v)
		return &limit, nil
	case uint64:
		return &v, nil
	default:
		return nil, schema.Errorf("first on %s must be an integer, got %s", field, literal.Describe(value))
	}
}
