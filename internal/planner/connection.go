package planner

import (
	sq "github.com/Masterminds/squirrel"

	"gql2sql/internal/querytree"
	"gql2sql/internal/sqlutil"
)

// connectionParts is what a connection's outer expression needs from the
// compiled relation.
type connectionParts struct {
	info       *querytree.ConnectionInfo
	rows       string
	row        string
	source     string
	predicates []sq.Sqlizer
	boundary   sq.Sqlizer
	limit      *uint64
}

type jsonEntry struct {
	key   string
	value interface{}
}

func jsonObject(entries []jsonEntry) sq.Sqlizer {
	parts := make([]interface{}, 0, len(entries)*3+2)
	parts = append(parts, "JSON_OBJECT(")
	for i, e := range entries {
		if i > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, sqlutil.QuoteString(e.key)+", ", e.value)
	}
	parts = append(parts, ")")
	return sq.ConcatExpr(parts...)
}

// connectionValue renders
//
//	{edges: [{node: {...}, cursor: "..."}], totalCount: n, pageInfo: {hasNextPage, endCursor}}
//
// totalCount ignores the limit and the cursor boundary. hasNextPage is false
// without a limit, an existence check for a zero limit, and otherwise
// compares the unlimited row count against the limit.
func connectionValue(p connectionParts) sq.Sqlizer {
	edge := []jsonEntry{{key: p.info.NodeAlias, value: p.row}}
	for _, alias := range p.info.CursorAliases {
		edge = append(edge, jsonEntry{key: alias, value: p.rows + "." + sqlutil.QuoteIdentifier(cursorColumn)})
	}
	edge = appendTypeName(edge, p.info.EdgeTypeNameAliases, p.info.EdgeTypeName)
	entries := []jsonEntry{{
		key:   p.info.EdgesAlias,
		value: sq.ConcatExpr("COALESCE(JSON_ARRAYAGG(", jsonObject(edge), "), JSON_ARRAY())"),
	}}

	if len(p.info.TotalCountAliases) > 0 {
		count := sq.Select("COUNT(*)").From(p.source)
		for _, pred := range p.predicates {
			count = count.Where(pred)
		}
		total := sq.ConcatExpr("(", count, ")")
		for _, alias := range p.info.TotalCountAliases {
			entries = append(entries, jsonEntry{key: alias, value: total})
		}
	}

	if len(p.info.PageInfos) > 0 {
		hasNext := hasNextPage(p)
		endCursor := "(SELECT " + sqlutil.QuoteIdentifier(cursorColumn) +
			" FROM " + p.rows +
			" ORDER BY " + sqlutil.QuoteIdentifier(rowColumn) + " DESC LIMIT 1)"
		for _, page := range p.info.PageInfos {
			fields := make([]jsonEntry, 0, len(page.HasNextPageAliases)+len(page.EndCursorAliases))
			for _, alias := range page.HasNextPageAliases {
				fields = append(fields, jsonEntry{key: alias, value: hasNext})
			}
			for _, alias := range page.EndCursorAliases {
				fields = append(fields, jsonEntry{key: alias, value: endCursor})
			}
			fields = appendTypeName(fields, page.TypeNameAliases, page.TypeName)
			entries = append(entries, jsonEntry{key: page.ResponseAlias, value: jsonObject(fields)})
		}
	}

	entries = appendTypeName(entries, p.info.TypeNameAliases, p.info.TypeName)
	return jsonObject(entries)
}

func appendTypeName(entries []jsonEntry, aliases []string, typeName string) []jsonEntry {
	for _, alias := range aliases {
		entries = append(entries, jsonEntry{key: alias, value: sqlutil.QuoteString(typeName)})
	}
	return entries
}

func hasNextPage(p connectionParts) sq.Sqlizer {
	switch {
	case p.limit == nil:
		return sq.Expr("CAST('false' AS JSON)")
	case *p.limit == 0:
		probe := sq.Select("1").From(p.source)
		for _, pred := range p.predicates {
			probe = probe.Where(pred)
		}
		if p.boundary != nil {
			probe = probe.Where(p.boundary)
		}
		return sq.ConcatExpr("CAST(IF(EXISTS(", probe, "), 'true', 'false') AS JSON)")
	default:
		remaining := p.rows + "." + sqlutil.QuoteIdentifier(remainingColumn)
		return sq.Expr("CAST(IF(MAX("+remaining+") > ?, 'true', 'false') AS JSON)", *p.limit)
	}
}
