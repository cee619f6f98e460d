package schema

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"gql2sql/internal/literal"
)

type builder struct {
	doc       *ast.Document
	queryType string
	defs      map[string]ast.Node
	order     []string
	types     map[string]graphql.Type
	defaults  map[string]map[string]literal.Object
}

func newBuilder(doc *ast.Document) (*builder, error) {
	b := &builder{
		doc:       doc,
		queryType: "Query",
		defs:      make(map[string]ast.Node),
		types:     make(map[string]graphql.Type),
		defaults:  make(map[string]map[string]literal.Object),
	}
	for _, def := range doc.Definitions {
		var name string
		switch d := def.(type) {
		case *ast.SchemaDefinition:
			for _, op := range d.OperationTypes {
				if op.Operation == ast.OperationTypeQuery {
					b.queryType = op.Type.Name.Value
				}
			}
			continue
		case *ast.ScalarDefinition:
			name = d.Name.Value
		case *ast.ObjectDefinition:
			if len(d.Interfaces) > 0 {
				return nil, fmt.Errorf("type %s: interfaces are not supported", d.Name.Value)
			}
			name = d.Name.Value
		case *ast.EnumDefinition:
			name = d.Name.Value
		case *ast.InputObjectDefinition:
			name = d.Name.Value
		case *ast.InterfaceDefinition:
			return nil, fmt.Errorf("interface %s: interfaces are not supported", d.Name.Value)
		case *ast.UnionDefinition:
			return nil, fmt.Errorf("union %s: unions are not supported", d.Name.Value)
		default:
			return nil, fmt.Errorf("unsupported schema definition %s", def.GetKind())
		}
		if _, dup := b.defs[name]; dup {
			return nil, fmt.Errorf("type %s is defined more than once", name)
		}
		b.defs[name] = def
		b.order = append(b.order, name)
	}
	if _, ok := b.defs[b.queryType].(*ast.ObjectDefinition); !ok {
		return nil, fmt.Errorf("query type %s is not defined as an object type", b.queryType)
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	return b, nil
}

// check verifies every type reference before any graphql-go type is built,
// since field thunks cannot report errors.
func (b *builder) check() error {
	for _, name := range b.order {
		switch d := b.defs[name].(type) {
		case *ast.ObjectDefinition:
			for _, f := range d.Fields {
				if err := b.checkRef(f.Type, false); err != nil {
					return fmt.Errorf("%s.%s: %w", name, f.Name.Value, err)
				}
				for _, arg := range f.Arguments {
					if err := b.checkRef(arg.Type, true); err != nil {
						return fmt.Errorf("%s.%s(%s): %w", name, f.Name.Value, arg.Name.Value, err)
					}
				}
			}
		case *ast.InputObjectDefinition:
			for _, f := range d.Fields {
				if err := b.checkRef(f.Type, true); err != nil {
					return fmt.Errorf("%s.%s: %w", name, f.Name.Value, err)
				}
			}
		}
	}
	return nil
}

func (b *builder) checkRef(t ast.Type, input bool) error {
	switch tt := t.(type) {
	case *ast.NonNull:
		return b.checkRef(tt.Type, input)
	case *ast.List:
		return b.checkRef(tt.Type, input)
	case *ast.Named:
		name := tt.Name.Value
		if isBuiltinScalar(name) {
			return nil
		}
		def, ok := b.defs[name]
		if !ok {
			return fmt.Errorf("unknown type %s", name)
		}
		switch def.(type) {
		case *ast.ObjectDefinition:
			if input {
				return fmt.Errorf("object type %s used as an input", name)
			}
		case *ast.InputObjectDefinition:
			if !input {
				return fmt.Errorf("input type %s used as an output", name)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported type reference %T", t)
	}
}

func isBuiltinScalar(name string) bool {
	switch name {
	case "Int", "Float", "String", "Boolean", "ID":
		return true
	}
	return false
}

func (b *builder) build() (*Schema, error) {
	all := make([]graphql.Type, 0, len(b.order))
	for _, name := range b.order {
		all = append(all, b.named(name))
	}
	for _, name := range b.order {
		obj, ok := b.defs[name].(*ast.ObjectDefinition)
		if !ok {
			continue
		}
		for _, f := range obj.Fields {
			var defaults literal.Object
			for _, arg := range f.Arguments {
				if arg.DefaultValue == nil {
					continue
				}
				v, _, err := literal.FromAST(arg.DefaultValue, nil)
				if err != nil {
					return nil, fmt.Errorf("%s.%s(%s): %w", name, f.Name.Value, arg.Name.Value, err)
				}
				defaults = append(defaults, literal.Field{Name: arg.Name.Value, Value: v})
			}
			if len(defaults) > 0 {
				if b.defaults[name] == nil {
					b.defaults[name] = make(map[string]literal.Object)
				}
				b.defaults[name][f.Name.Value] = defaults
			}
		}
	}

	gql, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: b.named(b.queryType).(*graphql.Object),
		Types: all,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	return &Schema{gql: gql, queryType: b.queryType, defaults: b.defaults}, nil
}

func (b *builder) named(name string) graphql.Type {
	switch name {
	case "Int":
		return graphql.Int
	case "Float":
		return graphql.Float
	case "String":
		return graphql.String
	case "Boolean":
		return graphql.Boolean
	case "ID":
		return graphql.ID
	}
	if t, ok := b.types[name]; ok {
		return t
	}

	var t graphql.Type
	switch d := b.defs[name].(type) {
	case *ast.ScalarDefinition:
		t = graphql.NewScalar(graphql.ScalarConfig{
			Name:       name,
			Serialize:  func(v any) any { return v },
			ParseValue: func(v any) any { return v },
			ParseLiteral: func(v ast.Value) any {
				val, _, _ := literal.FromAST(v, nil)
				return val
			},
		})
	case *ast.EnumDefinition:
		values := make(graphql.EnumValueConfigMap, len(d.Values))
		for _, v := range d.Values {
			values[v.Name.Value] = &graphql.EnumValueConfig{Value: v.Name.Value}
		}
		t = graphql.NewEnum(graphql.EnumConfig{Name: name, Values: values})
	case *ast.InputObjectDefinition:
		t = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: name,
			Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
				fields := make(graphql.InputObjectConfigFieldMap, len(d.Fields))
				for _, f := range d.Fields {
					fields[f.Name.Value] = &graphql.InputObjectFieldConfig{Type: b.ref(f.Type).(graphql.Input)}
				}
				return fields
			}),
		})
	case *ast.ObjectDefinition:
		t = graphql.NewObject(graphql.ObjectConfig{
			Name: name,
			Fields: graphql.FieldsThunk(func() graphql.Fields {
				fields := make(graphql.Fields, len(d.Fields))
				for _, f := range d.Fields {
					args := make(graphql.FieldConfigArgument, len(f.Arguments))
					for _, arg := range f.Arguments {
						cfg := &graphql.ArgumentConfig{Type: b.ref(arg.Type).(graphql.Input)}
						if arg.DefaultValue != nil {
							v, _, _ := literal.FromAST(arg.DefaultValue, nil)
							cfg.DefaultValue = introspectionDefault(v)
						}
						args[arg.Name.Value] = cfg
					}
					fields[f.Name.Value] = &graphql.Field{Type: b.ref(f.Type).(graphql.Output), Args: args}
				}
				return fields
			}),
		})
	}
	b.types[name] = t
	return t
}

func (b *builder) ref(t ast.Type) graphql.Type {
	switch tt := t.(type) {
	case *ast.NonNull:
		return graphql.NewNonNull(b.ref(tt.Type))
	case *ast.List:
		return graphql.NewList(b.ref(tt.Type))
	default:
		return b.named(t.(*ast.Named).Name.Value)
	}
}

// introspectionDefault converts a scalar default into the Go type graphql-go
// prints for introspection. Composite defaults are not reported there.
func introspectionDefault(v any) any {
	switch val := v.(type) {
	case int64:
		return int(val)
	case literal.Enum:
		return string(val)
	case float64, bool, string:
		return val
	default:
		return nil
	}
}
