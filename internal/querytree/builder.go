package querytree

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"

	"gql2sql/internal/literal"
	"gql2sql/internal/schema"
)

// TypeResolver answers field type questions against the schema.
type TypeResolver interface {
	FieldType(parent, field string) (schema.FieldType, error)
	ArgumentDefaults(parent, field string) literal.Object
}

// Options carries the request context a build needs.
type Options struct {
	// Variables holds coerced variable values, see Variables.
	Variables map[string]any
	Fragments map[string]*ast.FragmentDefinition
}

// Builder builds query trees. It holds no per-request state and may be shared.
type Builder struct {
	types TypeResolver
}

// NewBuilder returns a Builder resolving types with types.
func NewBuilder(types TypeResolver) *Builder {
	return &Builder{types: types}
}

// maxAliasPrefix keeps generated SQL aliases well under MySQL's 64 character limit.
const maxAliasPrefix = 40

type buildState struct {
	types   TypeResolver
	opts    Options
	counter int
}

// Build returns one Relation per selected root field, in selection order.
func (b *Builder) Build(rootType string, selections *ast.SelectionSet, opts Options) ([]*Relation, error) {
	s := &buildState{types: b.types, opts: opts}
	fields, err := s.collect(selections, map[string]bool{})
	if err != nil {
		return nil, err
	}
	roots := make([]*Relation, 0, len(fields))
	for _, f := range fields {
		if f.SelectionSet == nil || len(f.SelectionSet.Selections) == 0 {
			return nil, schema.Errorf("root field %s must select subfields", f.Name.Value)
		}
		node, err := s.field(rootType, f)
		if err != nil {
			return nil, err
		}
		rel, ok := node.(*Relation)
		if !ok {
			return nil, schema.Errorf("root field %s is not a relation", f.Name.Value)
		}
		roots = append(roots, rel)
	}
	return roots, nil
}

func (s *buildState) nextAlias(fieldName string) string {
	s.counter++
	if len(fieldName) > maxAliasPrefix {
		fieldName = fieldName[:maxAliasPrefix]
	}
	return fmt.Sprintf("%s-%d", fieldName, s.counter)
}

func responseKey(f *ast.Field) string {
	if f.Alias != nil && f.Alias.Value != "" {
		return f.Alias.Value
	}
	return f.Name.Value
}

func (s *buildState) field(parent string, f *ast.Field) (Node, error) {
	name := f.Name.Value
	alias := responseKey(f)
	if name == "__typename" || f.SelectionSet == nil || len(f.SelectionSet.Selections) == 0 {
		return &Attribute{FieldName: name, ResponseAlias: alias}, nil
	}

	ft, err := s.types.FieldType(parent, name)
	if err != nil {
		return nil, err
	}
	args, err := s.arguments(parent, name, f.Arguments)
	if err != nil {
		return nil, err
	}
	rel := &Relation{
		FieldName:     name,
		ResponseAlias: alias,
		SQLAlias:      s.nextAlias(name),
		Arguments:     args,
	}

	children, err := s.collect(f.SelectionSet, map[string]bool{})
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Name.Value == "edges" {
			return rel, s.connection(rel, ft.TypeName, children)
		}
	}

	rel.Target = ft
	rel.Children, err = s.nodes(ft.TypeName, children)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (s *buildState) nodes(parent string, fields []*ast.Field) ([]Node, error) {
	nodes := make([]Node, 0, len(fields))
	for _, f := range fields {
		n, err := s.field(parent, f)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// connection fills rel from an edges/node selection on connType.
func (s *buildState) connection(rel *Relation, connType string, fields []*ast.Field) error {
	info := &ConnectionInfo{}
	var node *ast.Field
	var nodeType schema.FieldType
	edgesSeen := false

	for _, f := range fields {
		alias := responseKey(f)
		switch f.Name.Value {
		case "edges":
			if edgesSeen {
				return schema.Errorf("connection %s selects edges more than once", rel.FieldName)
			}
			edgesSeen = true
			info.EdgesAlias = alias
			edgeType, err := s.types.FieldType(connType, "edges")
			if err != nil {
				return err
			}
			edgeFields, err := s.collect(f.SelectionSet, map[string]bool{})
			if err != nil {
				return err
			}
			for _, ef := range edgeFields {
				switch ef.Name.Value {
				case "node":
					if node != nil {
						return schema.Errorf("connection %s selects node more than once", rel.FieldName)
					}
					node = ef
					info.NodeAlias = responseKey(ef)
					nodeType, err = s.types.FieldType(edgeType.TypeName, "node")
					if err != nil {
						return err
					}
				case "cursor":
					info.CursorAliases = appendUnique(info.CursorAliases, responseKey(ef))
				case "__typename":
					info.EdgeTypeName = edgeType.TypeName
					info.EdgeTypeNameAliases = appendUnique(info.EdgeTypeNameAliases, responseKey(ef))
				default:
					return schema.Errorf("unsupported field %s in edges of %s", ef.Name.Value, rel.FieldName)
				}
			}
		case "totalCount":
			info.TotalCountAliases = appendUnique(info.TotalCountAliases, alias)
		case "__typename":
			info.TypeName = connType
			info.TypeNameAliases = appendUnique(info.TypeNameAliases, alias)
		case "pageInfo":
			pageFields, err := s.collect(f.SelectionSet, map[string]bool{})
			if err != nil {
				return err
			}
			page := PageInfo{ResponseAlias: alias}
			for _, pf := range pageFields {
				switch pf.Name.Value {
				case "hasNextPage":
					page.HasNextPageAliases = appendUnique(page.HasNextPageAliases, responseKey(pf))
				case "endCursor":
					page.EndCursorAliases = appendUnique(page.EndCursorAliases, responseKey(pf))
				case "__typename":
					pageType, err := s.types.FieldType(connType, "pageInfo")
					if err != nil {
						return err
					}
					page.TypeName = pageType.TypeName
					page.TypeNameAliases = appendUnique(page.TypeNameAliases, responseKey(pf))
				default:
					return schema.Errorf("unsupported field %s in pageInfo of %s", pf.Name.Value, rel.FieldName)
				}
			}
			info.PageInfos = append(info.PageInfos, page)
		default:
			return schema.Errorf("unsupported field %s on connection %s", f.Name.Value, rel.FieldName)
		}
	}
	if node == nil {
		return schema.Errorf("edges of connection %s must select node", rel.FieldName)
	}

	rel.Connection = info
	rel.Target = schema.FieldType{TypeName: nodeType.TypeName, IsList: true}
	children, err := s.collect(node.SelectionSet, map[string]bool{})
	if err != nil {
		return err
	}
	rel.Children, err = s.nodes(nodeType.TypeName, children)
	return err
}

func (s *buildState) arguments(parent, field string, args []*ast.Argument) ([]Argument, error) {
	out := make([]Argument, 0, len(args))
	given := make(map[string]bool, len(args))
	for _, arg := range args {
		v, ok, err := literal.FromAST(arg.Value, s.opts.Variables)
		if err != nil {
			return nil, schema.Errorf("argument %s of %s: %v", arg.Name.Value, field, err)
		}
		if !ok {
			continue
		}
		given[arg.Name.Value] = true
		out = append(out, Argument{Name: arg.Name.Value, Value: v})
	}
	for _, d := range s.types.ArgumentDefaults(parent, field) {
		if !given[d.Name] {
			out = append(out, Argument{Name: d.Name, Value: d.Value})
		}
	}
	return out, nil
}
