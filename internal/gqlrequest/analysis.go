// Package gqlrequest decodes GraphQL HTTP requests and derives the metadata
// shared by middleware and the transpiler: parsed document, selected
// operation, decoded variables, size statistics and a stable hash.
package gqlrequest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"gql2sql/internal/querytree"
)

// Analysis is the parsed form of one request. At most one of the error
// fields is set, in the order the steps run.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition
	Variables map[string]any

	OperationName string
	OperationType string

	FieldCount     int
	SelectionDepth int
	VariableCount  int
	OperationHash  string

	DecodeError    error
	ParseError     error
	SelectionError error
	VariablesError error
}

// Empty reports whether the request carried no query text.
func (a *Analysis) Empty() bool {
	return a == nil || strings.TrimSpace(a.Envelope.Query) == ""
}

// AnalyzeRequest decodes r and analyzes its envelope.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	if err != nil {
		return &Analysis{Envelope: env, DecodeError: err}
	}
	return AnalyzeEnvelope(env)
}

// AnalyzeEnvelope parses the query, selects the operation and decodes the variables.
func AnalyzeEnvelope(env Envelope) *Analysis {
	a := &Analysis{Envelope: env, Fragments: map[string]*ast.FragmentDefinition{}}
	if a.Empty() {
		return a
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "GraphQL request"}),
	})
	if err != nil {
		a.ParseError = err
		return a
	}
	a.Document = doc
	a.Fragments = querytree.Fragments(doc)

	op, err := selectOperation(doc, env.OperationName)
	if err != nil {
		a.SelectionError = err
		return a
	}
	a.Operation = op
	a.OperationName = effectiveOperationName(op)
	a.OperationType = string(op.Operation)
	a.VariableCount = len(op.VariableDefinitions)
	a.FieldCount, a.SelectionDepth = countFieldsAndDepth(op.SelectionSet, a.Fragments, 1, map[string]bool{}, map[string]bool{})
	if hash, err := operationHash(op, a.Fragments); err == nil {
		a.OperationHash = hash
	}

	vars, err := DecodeVariables(env.VariablesRaw)
	if err != nil {
		a.VariablesError = err
		return a
	}
	a.Variables = vars
	return a
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			operations = append(operations, op)
		}
	}

	if operationName != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}
	switch len(operations) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return operations[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

// countFieldsAndDepth walks the selection tree. Fragment spreads are
// followed once; inFlight breaks spread cycles.
func countFieldsAndDepth(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, depth int, visited, inFlight map[string]bool) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		if d > maxDepth {
			maxDepth = d
		}
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(countFieldsAndDepth(sel.SelectionSet, fragments, depth+1, visited, inFlight))
			}
		case *ast.InlineFragment:
			merge(countFieldsAndDepth(sel.SelectionSet, fragments, depth, visited, inFlight))
		case *ast.FragmentSpread:
			if sel.Name == nil {
				continue
			}
			name := sel.Name.Value
			if inFlight[name] || visited[name] {
				continue
			}
			fragment, ok := fragments[name]
			if !ok {
				continue
			}
			inFlight[name] = true
			visited[name] = true
			merge(countFieldsAndDepth(fragment.SelectionSet, fragments, depth, visited, inFlight))
			delete(inFlight, name)
		}
	}
	return fields, maxDepth
}

type analysisKey struct{}

// WithAnalysis attaches a to ctx so later handlers skip re-parsing.
func WithAnalysis(ctx context.Context, a *Analysis) context.Context {
	return context.WithValue(ctx, analysisKey{}, a)
}

// AnalysisFromContext returns the analysis attached by WithAnalysis, if any.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if a, ok := ctx.Value(analysisKey{}).(*Analysis); ok {
		return a
	}
	return nil
}
