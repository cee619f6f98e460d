package querytree

import (
	"github.com/graphql-go/graphql/language/ast"

	"gql2sql/internal/literal"
	"gql2sql/internal/schema"
)

// Variables returns the supplied variables completed with the defaults
// declared on op. Variables neither supplied nor defaulted stay absent.
func Variables(op *ast.OperationDefinition, supplied map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(supplied))
	for k, v := range supplied {
		out[k] = v
	}
	for _, def := range op.VariableDefinitions {
		if def.Variable == nil || def.Variable.Name == nil {
			continue
		}
		name := def.Variable.Name.Value
		if _, ok := out[name]; ok || def.DefaultValue == nil {
			continue
		}
		v, ok, err := literal.FromAST(def.DefaultValue, nil)
		if err != nil {
			return nil, schema.Errorf("default of $%s: %v", name, err)
		}
		if ok {
			out[name] = v
		}
	}
	return out, nil
}

// Fragments indexes the fragment definitions of doc by name.
func Fragments(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok && frag.Name != nil {
			frags[frag.Name.Value] = frag
		}
	}
	return frags
}
