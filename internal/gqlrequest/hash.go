package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// operationHash hashes the printed operation together with the fragments it
// reaches, so whitespace, comments and unrelated operations do not change it.
func operationHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, error) {
	names := map[string]bool{}
	reachableFragments(op.SelectionSet, fragments, names)
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	definitions := []ast.Node{op}
	for _, name := range sorted {
		fragment, ok := fragments[name]
		if !ok {
			return "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", fmt.Errorf("printer returned a non-string document")
	}
	return framedSHA256(printed, effectiveOperationName(op)), nil
}

func reachableFragments(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, seen map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			reachableFragments(sel.SelectionSet, fragments, seen)
		case *ast.InlineFragment:
			reachableFragments(sel.SelectionSet, fragments, seen)
		case *ast.FragmentSpread:
			if sel.Name == nil || seen[sel.Name.Value] {
				continue
			}
			seen[sel.Name.Value] = true
			if fragment, ok := fragments[sel.Name.Value]; ok {
				reachableFragments(fragment.SelectionSet, fragments, seen)
			}
		}
	}
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 length-prefixes each part so ("ab","c") and ("a","bc") differ.
func framedSHA256(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
