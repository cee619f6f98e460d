// Package querytree turns a validated GraphQL operation into the tree the
// SQL compiler consumes: scalar Attributes and table-backed Relations,
// with connection selections recognized and flattened.
package querytree

import "gql2sql/internal/schema"

// Node is either an *Attribute or a *Relation.
type Node interface {
	// Alias returns the response key of the node.
	Alias() string
	sealed()
}

// Attribute is a scalar column selection.
type Attribute struct {
	FieldName     string
	ResponseAlias string
}

// Alias implements Node.
func (a *Attribute) Alias() string { return a.ResponseAlias }
func (a *Attribute) sealed()       {}

// Argument is a field argument after variable substitution.
type Argument struct {
	Name  string
	Value any
}

// Relation is a nested, table-backed selection.
type Relation struct {
	FieldName     string
	ResponseAlias string
	// SQLAlias is unique within one request.
	SQLAlias string
	// Target is the type the rows are read as. For connections it is the
	// node type, always list-valued.
	Target     schema.FieldType
	Children   []Node
	Arguments  []Argument
	Connection *ConnectionInfo
}

// Alias implements Node.
func (r *Relation) Alias() string { return r.ResponseAlias }
func (r *Relation) sealed()       {}

// Argument returns the value of the named argument.
func (r *Relation) Argument(name string) (any, bool) {
	for _, a := range r.Arguments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// ConnectionInfo records the response keys of a Relay connection selection.
// __typename on the connection or its edges is answered with TypeName and
// EdgeTypeName.
type ConnectionInfo struct {
	EdgesAlias          string
	NodeAlias           string
	CursorAliases       []string
	TotalCountAliases   []string
	PageInfos           []PageInfo
	TypeName            string
	TypeNameAliases     []string
	EdgeTypeName        string
	EdgeTypeNameAliases []string
}

// PageInfo records one pageInfo selection.
type PageInfo struct {
	ResponseAlias      string
	HasNextPageAliases []string
	EndCursorAliases   []string
	TypeName           string
	TypeNameAliases    []string
}

// WantsCursor reports whether any row cursor is selected, per edge or as endCursor.
func (c *ConnectionInfo) WantsCursor() bool {
	if len(c.CursorAliases) > 0 {
		return true
	}
	for _, p := range c.PageInfos {
		if len(p.EndCursorAliases) > 0 {
			return true
		}
	}
	return false
}

// WantsEndCursor reports whether any pageInfo selects endCursor.
func (c *ConnectionInfo) WantsEndCursor() bool {
	for _, p := range c.PageInfos {
		if len(p.EndCursorAliases) > 0 {
			return true
		}
	}
	return false
}

// WantsHasNextPage reports whether any pageInfo selects hasNextPage.
func (c *ConnectionInfo) WantsHasNextPage() bool {
	for _, p := range c.PageInfos {
		if len(p.HasNextPageAliases) > 0 {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
