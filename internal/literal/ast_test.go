package literal

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstFieldArgs(t *testing.T, query string) []*ast.Argument {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)
	op := doc.Definitions[0].(*ast.OperationDefinition)
	return op.SelectionSet.Selections[0].(*ast.Field).Arguments
}

func TestFromAST(t *testing.T) {
	args := firstFieldArgs(t, `{ films(first: 2, ratio: 0.5, title: "Alien", active: true, rating: PG, ids: [1, $missing, $id], orderBy: {title: DESC, year: $dir, film_id: ASC}) { title } }`)
	vars := map[string]any{"id": int64(9), "dir": nil}

	got := make(map[string]any)
	for _, arg := range args {
		v, ok, err := FromAST(arg.Value, vars)
		require.NoError(t, err)
		require.True(t, ok)
		got[arg.Name.Value] = v
	}

	assert.Equal(t, int64(2), got["first"])
	assert.Equal(t, 0.5, got["ratio"])
	assert.Equal(t, "Alien", got["title"])
	assert.Equal(t, true, got["active"])
	assert.Equal(t, Enum("PG"), got["rating"])
	assert.Equal(t, []any{int64(1), nil, int64(9)}, got["ids"])
	assert.Equal(t, Object{
		{Name: "title", Value: Enum("DESC")},
		{Name: "year", Value: nil},
		{Name: "film_id", Value: Enum("ASC")},
	}, got["orderBy"])
}

func TestFromAST_MissingVariable(t *testing.T) {
	args := firstFieldArgs(t, `{ films(first: $n, orderBy: {title: $dir}) { title } }`)

	_, ok, err := FromAST(args[0].Value, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := FromAST(args[1].Value, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Object{}, v)
}
