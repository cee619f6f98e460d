package querytree

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"

	"gql2sql/internal/literal"
	"gql2sql/internal/schema"
)

// collect flattens a selection set into its fields, expanding fragments and
// applying @skip/@include. Fields sharing a response key are merged into one
// field whose selection set concatenates theirs.
func (s *buildState) collect(set *ast.SelectionSet, visiting map[string]bool) ([]*ast.Field, error) {
	var order []string
	byKey := map[string]*ast.Field{}
	if err := s.collectInto(set, visiting, &order, byKey); err != nil {
		return nil, err
	}
	fields := make([]*ast.Field, 0, len(order))
	for _, key := range order {
		fields = append(fields, byKey[key])
	}
	return fields, nil
}

func (s *buildState) collectInto(set *ast.SelectionSet, visiting map[string]bool, order *[]string, byKey map[string]*ast.Field) error {
	if set == nil {
		return nil
	}
	for _, sel := range set.Selections {
		switch sel := sel.(type) {
		case *ast.Field:
			ok, err := s.included(sel.Directives)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			key := responseKey(sel)
			existing, seen := byKey[key]
			if !seen {
				byKey[key] = sel
				*order = append(*order, key)
				continue
			}
			byKey[key] = mergeFields(existing, sel)
		case *ast.FragmentSpread:
			ok, err := s.included(sel.Directives)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			name := sel.Name.Value
			frag, found := s.opts.Fragments[name]
			if !found {
				return schema.Errorf("unknown fragment %s", name)
			}
			if visiting[name] {
				return schema.Errorf("fragment %s spreads itself", name)
			}
			visiting[name] = true
			err = s.collectInto(frag.SelectionSet, visiting, order, byKey)
			delete(visiting, name)
			if err != nil {
				return err
			}
		case *ast.InlineFragment:
			ok, err := s.included(sel.Directives)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := s.collectInto(sel.SelectionSet, visiting, order, byKey); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected selection %T", sel)
		}
	}
	return nil
}

// mergeFields never mutates its inputs; fragments are shared across the document.
func mergeFields(a, b *ast.Field) *ast.Field {
	merged := *a
	var selections []ast.Selection
	if a.SelectionSet != nil {
		selections = append(selections, a.SelectionSet.Selections...)
	}
	if b.SelectionSet != nil {
		selections = append(selections, b.SelectionSet.Selections...)
	}
	if selections != nil {
		merged.SelectionSet = ast.NewSelectionSet(&ast.SelectionSet{Selections: selections})
	}
	return &merged
}

// included evaluates @skip and @include.
func (s *buildState) included(directives []*ast.Directive) (bool, error) {
	for _, d := range directives {
		var skipWhen bool
		switch d.Name.Value {
		case "skip":
			skipWhen = true
		case "include":
			skipWhen = false
		default:
			continue
		}
		cond, err := s.directiveCondition(d)
		if err != nil {
			return false, err
		}
		if cond == skipWhen {
			return false, nil
		}
	}
	return true, nil
}

func (s *buildState) directiveCondition(d *ast.Directive) (bool, error) {
	for _, arg := range d.Arguments {
		if arg.Name.Value != "if" {
			continue
		}
		v, ok, err := literal.FromAST(arg.Value, s.opts.Variables)
		if err != nil {
			return false, err
		}
		b, isBool := v.(bool)
		if !ok || !isBool {
			return false, schema.Errorf("@%s requires a boolean if argument", d.Name.Value)
		}
		return b, nil
	}
	return false, schema.Errorf("@%s requires an if argument", d.Name.Value)
}
