package transpiler

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

// rootFieldKinds reports whether the root selection holds introspection
// fields (__schema, __type, __typename), table fields, or both. Fragments
// are expanded; seen stops spread cycles.
func rootFieldKinds(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, seen map[string]bool) (meta, data bool) {
	if set == nil {
		return false, false
	}
	for _, selection := range set.Selections {
		var m, d bool
		switch sel := selection.(type) {
		case *ast.Field:
			if strings.HasPrefix(sel.Name.Value, "__") {
				m = true
			} else {
				d = true
			}
		case *ast.InlineFragment:
			m, d = rootFieldKinds(sel.SelectionSet, fragments, seen)
		case *ast.FragmentSpread:
			name := sel.Name.Value
			if seen[name] {
				continue
			}
			seen[name] = true
			if frag, ok := fragments[name]; ok {
				m, d = rootFieldKinds(frag.SelectionSet, fragments, seen)
			}
		}
		meta = meta || m
		data = data || d
	}
	return meta, data
}

// checkRequiredVariables rejects a request that leaves a non-null variable
// without a value.
func checkRequiredVariables(op *ast.OperationDefinition, supplied map[string]any) error {
	for _, def := range op.VariableDefinitions {
		if _, nonNull := def.Type.(*ast.NonNull); !nonNull || def.DefaultValue != nil {
			continue
		}
		name := def.Variable.Name.Value
		if v, ok := supplied[name]; !ok || v == nil {
			return badRequest(fmt.Sprintf("variable $%s of required type %v was not provided", name, printer.Print(def.Type)))
		}
	}
	return nil
}
