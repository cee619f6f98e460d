// Package schema parses the GraphQL SDL once at startup and answers type
// questions for the query tree builder. A Schema is immutable and shared
// by all requests.
package schema

import (
	"fmt"
	"os"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"gql2sql/internal/literal"
)

// ResolutionError reports an unknown type or field, an unsupported field
// shape, or an unusable argument. It aborts compilation of the request.
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string {
	return e.Message
}

// Errorf builds a ResolutionError.
func Errorf(format string, args ...any) error {
	return &ResolutionError{Message: fmt.Sprintf(format, args...)}
}

// FieldType is the resolved target of a field: the named type with non-null
// and list wrappers removed, and whether a list wrapper was present.
type FieldType struct {
	TypeName string
	IsList   bool
}

// Schema wraps the executable graphql-go schema built from SDL.
type Schema struct {
	gql       graphql.Schema
	queryType string
	defaults  map[string]map[string]literal.Object
}

// LoadFile parses the SDL file at path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(string(data))
}

// Parse builds a Schema from SDL text.
func Parse(sdl string) (*Schema, error) {
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(sdl), Name: "schema"}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	b, err := newBuilder(doc)
	if err != nil {
		return nil, err
	}
	return b.build()
}

// GraphQL returns the executable schema, used for validation and introspection.
func (s *Schema) GraphQL() *graphql.Schema {
	return &s.gql
}

// QueryTypeName returns the name of the root query type.
func (s *Schema) QueryTypeName() string {
	return s.queryType
}

// Validate checks a document against the schema.
func (s *Schema) Validate(doc *ast.Document) []gqlerrors.FormattedError {
	result := graphql.ValidateDocument(&s.gql, doc, nil)
	if result.IsValid {
		return nil
	}
	return result.Errors
}

// FieldType resolves field on the object type parent.
func (s *Schema) FieldType(parent, field string) (FieldType, error) {
	obj, ok := s.gql.Type(parent).(*graphql.Object)
	if !ok {
		return FieldType{}, Errorf("unknown object type %s", parent)
	}
	def, ok := obj.Fields()[field]
	if !ok {
		return FieldType{}, Errorf("unknown field %s on type %s", field, parent)
	}

	var ft FieldType
	t := def.Type
	if nn, ok := t.(*graphql.NonNull); ok {
		t = nn.OfType
	}
	if list, ok := t.(*graphql.List); ok {
		ft.IsList = true
		t = list.OfType
		if nn, ok := t.(*graphql.NonNull); ok {
			t = nn.OfType
		}
		if _, nested := t.(*graphql.List); nested {
			return FieldType{}, Errorf("field %s.%s is a nested list, which is not supported", parent, field)
		}
	}
	ft.TypeName = t.Name()
	return ft, nil
}

// IsObject reports whether name is an object type.
func (s *Schema) IsObject(name string) bool {
	_, ok := s.gql.Type(name).(*graphql.Object)
	return ok
}

// ArgumentDefaults returns the SDL default values of field's arguments.
func (s *Schema) ArgumentDefaults(parent, field string) literal.Object {
	return s.defaults[parent][field]
}
