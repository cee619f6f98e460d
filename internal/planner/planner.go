// Package planner compiles query trees into SQL. Every root relation becomes
// one statement whose single JSON column already holds the response value of
// that root field; nested relations compile into correlated subqueries.
package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"gql2sql/internal/cursor"
	"gql2sql/internal/introspection"
	"gql2sql/internal/querytree"
	"gql2sql/internal/relationship"
	"gql2sql/internal/schema"
	"gql2sql/internal/sqlutil"
)

// Catalog maps GraphQL object types to tables.
type Catalog interface {
	TableForType(typeName string) (*introspection.Table, error)
}

// Resolver produces join predicates between an outer and an inner table.
type Resolver interface {
	Resolve(name string, left, right relationship.TableRef) (sq.Sqlizer, error)
}

// SQLQuery holds a SQL statement and its arguments.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// Statement is the compiled form of one root relation.
type Statement struct {
	SQLQuery
	ResponseAlias string
	SQLAlias      string
	// Singleton statements yield zero or one row. List and connection
	// statements always yield exactly one.
	Singleton bool
}

// Compiler turns relations into statements. It is stateless and safe for
// concurrent use.
type Compiler struct {
	catalog       Catalog
	relationships Resolver
}

// New returns a Compiler reading tables from catalog and joins from relationships.
func New(catalog Catalog, relationships Resolver) *Compiler {
	return &Compiler{catalog: catalog, relationships: relationships}
}

// CompileRoot compiles a root relation.
func (c *Compiler) CompileRoot(rel *querytree.Relation) (Statement, error) {
	compiled, err := c.compile(rel, nil)
	if err != nil {
		return Statement{}, err
	}
	query, args, err := compiled.statement().
		Column(sq.Alias(compiled.value, sqlutil.QuoteIdentifier(rel.ResponseAlias))).
		ToSql()
	if err != nil {
		return Statement{}, fmt.Errorf("failed to render %s: %w", rel.ResponseAlias, err)
	}
	return Statement{
		SQLQuery:      SQLQuery{SQL: query, Args: args},
		ResponseAlias: rel.ResponseAlias,
		SQLAlias:      rel.SQLAlias,
		Singleton:     !rel.Target.IsList,
	}, nil
}

// compiledRelation is a relation rendered as a CTE body plus the JSON
// expression that reads the CTE.
type compiledRelation struct {
	rows  string
	body  sq.SelectBuilder
	value sq.Sqlizer
}

func (r compiledRelation) statement() sq.SelectBuilder {
	return sq.Select().Prefix("WITH "+r.rows+" AS (?)", r.body).From(r.rows)
}

// member is one key of the per-row JSON object.
type member struct {
	key   string
	value string
}

const (
	cursorColumn    = "__cursor"
	remainingColumn = "__remaining"
	rowColumn       = "__row"
)

func (c *Compiler) compile(rel *querytree.Relation, parent *relationship.TableRef) (compiledRelation, error) {
	table, err := c.catalog.TableForType(rel.Target.TypeName)
	if err != nil {
		return compiledRelation{}, schema.Errorf("%s: %v", rel.FieldName, err)
	}
	self := relationship.TableRef{Table: table.Name, Alias: rel.SQLAlias}

	args, err := parseArguments(rel, table)
	if err != nil {
		return compiledRelation{}, err
	}
	order := effectiveOrder(table, args.orderBy)

	predicates, err := filterPredicates(table, self.Alias, args.filters)
	if err != nil {
		return compiledRelation{}, err
	}
	if parent != nil {
		join, err := c.relationships.Resolve(rel.FieldName, *parent, self)
		if err != nil {
			return compiledRelation{}, err
		}
		predicates = append(predicates, join)
	}

	var boundary sq.Sqlizer
	if args.after != nil {
		boundary, err = cursorBoundary(rel, order, args.after, self.Alias)
		if err != nil {
			return compiledRelation{}, err
		}
	}

	rows := sqlutil.QuoteIdentifier(rel.SQLAlias + "_rows")
	source := sqlutil.QuoteIdentifier(table.Name) + " AS " + sqlutil.QuoteIdentifier(self.Alias)
	body := sq.Select().From(source)

	members, body, width, err := c.columns(rel, table, self, rows, body)
	if err != nil {
		return compiledRelation{}, err
	}

	conn := rel.Connection
	if conn != nil && conn.WantsCursor() {
		body = body.Column(cursor.Expression(order, self.Alias) + " AS " + sqlutil.QuoteIdentifier(cursorColumn))
		width++
	}
	if conn != nil && conn.WantsHasNextPage() && args.limit != nil && *args.limit > 0 {
		body = body.Column("COUNT(*) OVER () AS " + sqlutil.QuoteIdentifier(remainingColumn))
		width++
	}
	if conn != nil && conn.WantsEndCursor() {
		body = body.Column("ROW_NUMBER() OVER (ORDER BY " + orderClause(order, self.Alias) + ") AS " + sqlutil.QuoteIdentifier(rowColumn))
		width++
	}
	if width == 0 {
		body = body.Column("1")
	}

	for _, p := range predicates {
		body = body.Where(p)
	}
	if boundary != nil {
		body = body.Where(boundary)
	}
	if rel.Target.IsList {
		body = body.OrderBy(orderClause(order, self.Alias))
	}
	if args.limit != nil {
		body = body.Limit(*args.limit)
	}

	object := rowObject(members)
	var value sq.Sqlizer
	switch {
	case conn != nil:
		value = connectionValue(connectionParts{
			info:       conn,
			rows:       rows,
			row:        object,
			source:     source,
			predicates: predicates,
			boundary:   boundary,
			limit:      args.limit,
		})
	case rel.Target.IsList:
		value = sq.Expr("COALESCE(JSON_ARRAYAGG(" + object + "), JSON_ARRAY())")
	default:
		value = sq.Expr(object)
	}

	return compiledRelation{rows: rows, body: body, value: value}, nil
}

// columns adds one CTE column per distinct attribute or sub-relation alias
// and returns the JSON members reading them back along with the number of
// columns added. Later duplicates of an alias are dropped.
func (c *Compiler) columns(rel *querytree.Relation, table *introspection.Table, self relationship.TableRef, rows string, body sq.SelectBuilder) ([]member, sq.SelectBuilder, int, error) {
	members := make([]member, 0, len(rel.Children))
	seen := make(map[string]bool, len(rel.Children))
	next := 0
	column := func() string {
		name := fmt.Sprintf("f%d", next)
		next++
		return name
	}

	for _, child := range rel.Children {
		if seen[child.Alias()] {
			continue
		}
		seen[child.Alias()] = true

		switch child := child.(type) {
		case *querytree.Attribute:
			if child.FieldName == "__typename" {
				members = append(members, member{key: child.ResponseAlias, value: sqlutil.QuoteString(rel.Target.TypeName)})
				continue
			}
			col, ok := table.Column(child.FieldName)
			if !ok {
				return nil, body, 0, schema.Errorf("field %s has no column on table %s", child.FieldName, table.Name)
			}
			name := column()
			body = body.Column(sqlutil.Qualify(self.Alias, col.Name) + " AS " + sqlutil.QuoteIdentifier(name))
			members = append(members, member{key: child.ResponseAlias, value: rows + "." + sqlutil.QuoteIdentifier(name)})
		case *querytree.Relation:
			nested, err := c.compile(child, &self)
			if err != nil {
				return nil, body, 0, err
			}
			name := column()
			body = body.Column(sq.Alias(nested.statement().Column(nested.value), sqlutil.QuoteIdentifier(name)))
			members = append(members, member{key: child.ResponseAlias, value: rows + "." + sqlutil.QuoteIdentifier(name)})
		}
	}
	return members, body, next, nil
}

func rowObject(members []member) string {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, sqlutil.QuoteString(m.key)+", "+m.value)
	}
	return "JSON_OBJECT(" + strings.Join(parts, ", ") + ")"
}
