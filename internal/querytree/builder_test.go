package querytree

import (
	"errors"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/literal"
	"gql2sql/internal/schema"
	"gql2sql/internal/testutil/sakila"
)

func build(t *testing.T, query string, variables map[string]any) ([]*Relation, error) {
	t.Helper()
	s, err := schema.Parse(sakila.SDL)
	require.NoError(t, err)
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)

	var op *ast.OperationDefinition
	for _, def := range doc.Definitions {
		if o, ok := def.(*ast.OperationDefinition); ok {
			op = o
			break
		}
	}
	require.NotNil(t, op)
	vars, err := Variables(op, variables)
	require.NoError(t, err)
	return NewBuilder(s).Build(s.QueryTypeName(), op.SelectionSet, Options{
		Variables: vars,
		Fragments: Fragments(doc),
	})
}

func TestBuildNestedRelations(t *testing.T) {
	roots, err := build(t, `{
		films(first: 2) {
			title
			lang: language { name }
			actors { first_name }
		}
	}`, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	films := roots[0]
	assert.Equal(t, "films", films.FieldName)
	assert.Equal(t, "films", films.ResponseAlias)
	assert.Equal(t, "films-1", films.SQLAlias)
	assert.Equal(t, schema.FieldType{TypeName: "Film", IsList: true}, films.Target)
	first, ok := films.Argument("first")
	require.True(t, ok)
	assert.Equal(t, int64(2), first)

	require.Len(t, films.Children, 3)
	assert.Equal(t, &Attribute{FieldName: "title", ResponseAlias: "title"}, films.Children[0])

	lang, ok := films.Children[1].(*Relation)
	require.True(t, ok)
	assert.Equal(t, "language", lang.FieldName)
	assert.Equal(t, "lang", lang.ResponseAlias)
	assert.Equal(t, "language-2", lang.SQLAlias)
	assert.Equal(t, schema.FieldType{TypeName: "Language"}, lang.Target)

	actors, ok := films.Children[2].(*Relation)
	require.True(t, ok)
	assert.Equal(t, "actors-3", actors.SQLAlias)
	assert.True(t, actors.Target.IsList)
}

func TestBuildAliasesAreUniquePerRequest(t *testing.T) {
	roots, err := build(t, `{
		a: filmById(film_id: 1) { language { name } }
		b: filmById(film_id: 2) { language { name } }
	}`, nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "filmById-1", roots[0].SQLAlias)
	assert.Equal(t, "language-2", roots[0].Children[0].(*Relation).SQLAlias)
	assert.Equal(t, "filmById-3", roots[1].SQLAlias)
	assert.Equal(t, "language-4", roots[1].Children[0].(*Relation).SQLAlias)
}

func TestBuildFragmentsAndDirectives(t *testing.T) {
	roots, err := build(t, `
	query Q($withLang: Boolean!, $skipTitle: Boolean = true) {
		filmById(film_id: 1) {
			...FilmFields
			title @skip(if: $skipTitle)
			... on Film { rating }
			language @include(if: $withLang) { name }
			__typename
		}
	}
	fragment FilmFields on Film { film_id description }
	`, map[string]any{"withLang": false})
	require.NoError(t, err)

	var aliases []string
	for _, c := range roots[0].Children {
		aliases = append(aliases, c.Alias())
	}
	assert.Equal(t, []string{"film_id", "description", "rating", "__typename"}, aliases)
}

func TestBuildSkippedFieldKeepsLaterSiblings(t *testing.T) {
	roots, err := build(t, `{
		skipped: filmById(film_id: 2) @skip(if: true) { title }
		filmById(film_id: 1) { title @skip(if: true) rating description }
		kept: filmById(film_id: 3) @include(if: true) { title }
	}`, nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "filmById", roots[0].ResponseAlias)
	assert.Equal(t, "kept", roots[1].ResponseAlias)

	var aliases []string
	for _, c := range roots[0].Children {
		aliases = append(aliases, c.Alias())
	}
	assert.Equal(t, []string{"rating", "description"}, aliases)
}

func TestBuildMergesSameResponseKey(t *testing.T) {
	roots, err := build(t, `{
		filmById(film_id: 1) {
			language { name }
			language { language_id }
			title
			title
		}
	}`, nil)
	require.NoError(t, err)
	children := roots[0].Children
	require.Len(t, children, 2)
	lang := children[0].(*Relation)
	require.Len(t, lang.Children, 2)
	assert.Equal(t, "name", lang.Children[0].Alias())
	assert.Equal(t, "language_id", lang.Children[1].Alias())
}

func TestBuildArguments(t *testing.T) {
	roots, err := build(t, `
	query($ids: [Int], $missing: String) {
		films(film_id: $ids, title: $missing, rating: PG13, orderBy: {title: DESC, film_id: ASC}) { title }
	}`, map[string]any{"ids": []any{int64(1), nil}})
	require.NoError(t, err)

	assert.Equal(t, []Argument{
		{Name: "film_id", Value: []any{int64(1), nil}},
		{Name: "rating", Value: literal.Enum("PG13")},
		{Name: "orderBy", Value: literal.Object{
			{Name: "title", Value: literal.Enum("DESC")},
			{Name: "film_id", Value: literal.Enum("ASC")},
		}},
	}, roots[0].Arguments)
}

func TestBuildConnection(t *testing.T) {
	roots, err := build(t, `{
		booksConnection(first: 2) {
			total: totalCount
			edges {
				c: cursor
				n: node { id title }
			}
			pageInfo { hasNextPage endCursor }
			more: pageInfo { hasNextPage }
		}
	}`, nil)
	require.NoError(t, err)

	conn := roots[0]
	assert.Equal(t, schema.FieldType{TypeName: "Book", IsList: true}, conn.Target)
	assert.Equal(t, &ConnectionInfo{
		EdgesAlias:        "edges",
		NodeAlias:         "n",
		CursorAliases:     []string{"c"},
		TotalCountAliases: []string{"total"},
		PageInfos: []PageInfo{
			{ResponseAlias: "pageInfo", HasNextPageAliases: []string{"hasNextPage"}, EndCursorAliases: []string{"endCursor"}},
			{ResponseAlias: "more", HasNextPageAliases: []string{"hasNextPage"}},
		},
	}, conn.Connection)
	require.Len(t, conn.Children, 2)
	assert.Equal(t, "title", conn.Children[1].Alias())
	assert.True(t, conn.Connection.WantsCursor())
	assert.True(t, conn.Connection.WantsEndCursor())
	assert.True(t, conn.Connection.WantsHasNextPage())
}

func TestBuildConnectionTypenames(t *testing.T) {
	roots, err := build(t, `{
		booksConnection {
			__typename
			edges { kind: __typename node { id } }
			pageInfo { __typename hasNextPage }
		}
	}`, nil)
	require.NoError(t, err)

	info := roots[0].Connection
	assert.Equal(t, "BookConnection", info.TypeName)
	assert.Equal(t, []string{"__typename"}, info.TypeNameAliases)
	assert.Equal(t, "BookEdge", info.EdgeTypeName)
	assert.Equal(t, []string{"kind"}, info.EdgeTypeNameAliases)
	require.Len(t, info.PageInfos, 1)
	assert.Equal(t, "PageInfo", info.PageInfos[0].TypeName)
	assert.Equal(t, []string{"__typename"}, info.PageInfos[0].TypeNameAliases)
}

func TestBuildNestedConnection(t *testing.T) {
	roots, err := build(t, `{
		actorById(actor_id: 1) {
			films_connection(first: 1) { edges { node { title } } }
		}
	}`, nil)
	require.NoError(t, err)
	conn := roots[0].Children[0].(*Relation)
	assert.Equal(t, "films_connection-2", conn.SQLAlias)
	assert.Equal(t, schema.FieldType{TypeName: "Film", IsList: true}, conn.Target)
	assert.False(t, conn.Connection.WantsCursor())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{
			name:    "unknown field",
			query:   `{ films { nope { x } } }`,
			message: "unknown field nope on type Film",
		},
		{
			name:    "edges without node",
			query:   `{ booksConnection { edges { cursor } } }`,
			message: "edges of connection booksConnection must select node",
		},
		{
			name:    "unsupported connection field",
			query:   `{ booksConnection { edges { node { id } } nope } }`,
			message: "unsupported field nope on connection booksConnection",
		},
		{
			name:    "edges selected twice",
			query:   `{ booksConnection { a: edges { node { id } } b: edges { node { title } } } }`,
			message: "connection booksConnection selects edges more than once",
		},
		{
			name:    "node selected twice",
			query:   `{ booksConnection { edges { a: node { id } b: node { title } } } }`,
			message: "connection booksConnection selects node more than once",
		},
		{
			name:    "unknown fragment",
			query:   `{ films { ...Missing } }`,
			message: "unknown fragment Missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.query, nil)
			require.Error(t, err)
			var resErr *schema.ResolutionError
			require.True(t, errors.As(err, &resErr))
			assert.Equal(t, tt.message, resErr.Message)
		})
	}
}

func TestVariablesAppliesDefaults(t *testing.T) {
	doc, err := parser.Parse(parser.ParseParams{Source: `query($a: Int = 3, $b: String = "x", $c: Int) { films { title } }`})
	require.NoError(t, err)
	op := doc.Definitions[0].(*ast.OperationDefinition)

	vars, err := Variables(op, map[string]any{"b": nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(3), "b": nil}, vars)
}
