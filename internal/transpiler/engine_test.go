package transpiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/dbexec"
	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/introspection"
	"gql2sql/internal/naming"
	"gql2sql/internal/relationship"
	"gql2sql/internal/response"
	"gql2sql/internal/schema"
	"gql2sql/internal/testutil/sakila"
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	s, err := schema.Parse(sakila.SDL)
	require.NoError(t, err)
	catalog, err := introspection.Parse(sakila.CatalogYAML)
	require.NoError(t, err)
	overlay, err := relationship.Parse(sakila.RelationshipsYAML)
	require.NoError(t, err)
	registry, err := relationship.Build(catalog, naming.Default(), true, overlay)
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(Config{
		Schema:        s,
		Catalog:       catalog,
		Relationships: registry,
		Executor:      dbexec.NewStandardExecutor(db),
	}), mock
}

func analyze(query string, variables string) *gqlrequest.Analysis {
	env := gqlrequest.Envelope{Query: query}
	if variables != "" {
		env.VariablesRaw = []byte(variables)
	}
	return gqlrequest.AnalyzeEnvelope(env)
}

func TestServe_ListRoot(t *testing.T) {
	engine, mock := newTestEngine(t)
	books := `[{"id": 1, "title": "1984", "publishedin": 1948}, {"id": 2, "title": "Animal Farm", "publishedin": 1945}, {"id": 3, "title": "O Alquimista", "publishedin": 1988}, {"id": 4, "title": "Brida", "publishedin": 1990}]`
	mock.ExpectQuery("SELECT \\(COALESCE\\(JSON_ARRAYAGG").
		WillReturnRows(sqlmock.NewRows([]string{"allBooks"}).AddRow(books))

	body, err := engine.Serve(context.Background(), analyze(`{ allBooks { id title publishedin } }`, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"allBooks": `+books+`}}`, string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServe_AliasedRootsKeepSelectionOrder(t *testing.T) {
	engine, mock := newTestEngine(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("AS `a1` FROM").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"a1"}).AddRow(`{"last_name": "GUINESS"}`))
	mock.ExpectQuery("AS `a2` FROM").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"a2"}).AddRow(`{"last_name": "WAHLBERG"}`))

	body, err := engine.Serve(context.Background(), analyze(
		`{ a1: actorById(actor_id: 1) { last_name } a2: actorById(actor_id: 2) { last_name } }`, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"a1": {"last_name": "GUINESS"}, "a2": {"last_name": "WAHLBERG"}}}`, string(body))
	assert.Less(t, strings.Index(string(body), `"a1"`), strings.Index(string(body), `"a2"`))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServe_Variables(t *testing.T) {
	engine, mock := newTestEngine(t)
	mock.ExpectQuery("WHERE `bookById-1`.`id` = \\?").WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"bookById"}).AddRow(`{"title": "O Alquimista"}`))

	body, err := engine.Serve(context.Background(), analyze(
		`query Book($id: Int!) { bookById(id: $id) { title } }`, `{"id": 3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"bookById": {"title": "O Alquimista"}}}`, string(body))
}

func TestServe_SingletonWithoutRowIsNull(t *testing.T) {
	engine, mock := newTestEngine(t)
	mock.ExpectQuery("FROM `bookById-1_rows`").WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"bookById"}))

	body, err := engine.Serve(context.Background(), analyze(`{ bookById(id: 99) { title } }`, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"bookById": null}}`, string(body))
}

func TestServe_SingletonWithSeveralRowsFails(t *testing.T) {
	engine, mock := newTestEngine(t)
	mock.ExpectQuery("FROM `bookById-1_rows`").
		WillReturnRows(sqlmock.NewRows([]string{"bookById"}).AddRow(`{"title": "a"}`).AddRow(`{"title": "b"}`))

	_, err := engine.Serve(context.Background(), analyze(`{ bookById(id: 1) { title } }`, ""))
	var cardinality *dbexec.CardinalityError
	require.True(t, errors.As(err, &cardinality))
	assert.Equal(t, response.CodeCardinalityViolation, Code(err))
}

func TestServe_NestedSingletonSubqueryError(t *testing.T) {
	engine, mock := newTestEngine(t)
	mock.ExpectQuery("FROM `filmById-1_rows`").
		WillReturnError(&mysql.MySQLError{Number: 1242, Message: "Subquery returns more than 1 row"})

	_, err := engine.Serve(context.Background(), analyze(`{ filmById(film_id: 1) { language { name } } }`, ""))
	assert.Equal(t, response.CodeCardinalityViolation, Code(err))
}

func TestServe_BackingStoreError(t *testing.T) {
	engine, mock := newTestEngine(t)
	mock.ExpectQuery("FROM `allBooks-1_rows`").
		WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'sakila.books' doesn't exist"})

	_, err := engine.Serve(context.Background(), analyze(`{ allBooks { id } }`, ""))
	require.Error(t, err)
	assert.Equal(t, response.CodeBackingStore, Code(err))
	entries := ErrorEntries(err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "query for allBooks failed")
}

func TestServe_Introspection(t *testing.T) {
	engine, _ := newTestEngine(t)
	plan, err := engine.Prepare(context.Background(), analyze(`{ __schema { queryType { name } } }`, ""))
	require.NoError(t, err)
	assert.True(t, plan.Introspection())
	assert.Empty(t, plan.Statements)

	body, err := engine.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"__schema": {"queryType": {"name": "Query"}}}}`, string(body))
}

func TestPrepare_StatementsFollowRootOrder(t *testing.T) {
	engine, _ := newTestEngine(t)
	plan, err := engine.Prepare(context.Background(), analyze(`
		query Page {
			languages { name }
			...Books
		}
		fragment Books on Query { allBooks { title } }
	`, ""))
	require.NoError(t, err)
	require.Len(t, plan.Statements, 2)
	assert.Equal(t, "languages", plan.Statements[0].ResponseAlias)
	assert.Equal(t, "allBooks", plan.Statements[1].ResponseAlias)
}

func TestPrepare_Rejections(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name     string
		analysis *gqlrequest.Analysis
		code     response.Code
		status   int
		message  string
	}{
		{
			name:     "empty query",
			analysis: analyze("", ""),
			code:     response.CodeBadRequest,
			status:   400,
			message:  "must provide query string",
		},
		{
			name:     "undecodable request",
			analysis: &gqlrequest.Analysis{DecodeError: errors.New("invalid JSON request body: unexpected EOF")},
			code:     response.CodeBadRequest,
			status:   400,
			message:  "invalid JSON request body: unexpected EOF",
		},
		{
			name:     "wrong method",
			analysis: &gqlrequest.Analysis{DecodeError: gqlrequest.ErrMethodNotAllowed},
			code:     response.CodeBadRequest,
			status:   405,
			message:  "GraphQL requests must use GET or POST",
		},
		{
			name:     "syntax error",
			analysis: analyze(`{ allBooks { id `, ""),
			code:     response.CodeParseFailed,
			status:   200,
		},
		{
			name:     "unknown field",
			analysis: analyze(`{ allBooks { nonexistent } }`, ""),
			code:     response.CodeValidationFailed,
			status:   200,
			message:  `Cannot query field "nonexistent" on type "Book".`,
		},
		{
			name:     "mutation",
			analysis: analyze(`mutation { allBooks { id } }`, ""),
			code:     response.CodeBadRequest,
			status:   200,
			message:  "mutation operations are not supported",
		},
		{
			name:     "missing required variable",
			analysis: analyze(`query ($id: Int!) { bookById(id: $id) { id } }`, ""),
			code:     response.CodeBadRequest,
			status:   200,
			message:  "variable $id of required type Int! was not provided",
		},
		{
			name:     "variables not an object",
			analysis: analyze(`query ($id: Int!) { bookById(id: $id) { id } }`, `[1]`),
			code:     response.CodeBadRequest,
			status:   200,
			message:  "variables must be a JSON object, got [1]",
		},
		{
			name:     "introspection mixed with tables",
			analysis: analyze(`{ __schema { queryType { name } } allBooks { id } }`, ""),
			code:     response.CodeBadRequest,
			status:   200,
			message:  "introspection fields cannot be selected together with table fields",
		},
		{
			name:     "negative page size",
			analysis: analyze(`{ allBooks(first: -1) { id } }`, ""),
			code:     response.CodeSchemaResolution,
			status:   200,
			message:  "first on allBooks must be non-negative, got -1",
		},
		{
			name:     "leaf root field",
			analysis: analyze(`{ languages }`, ""),
			code:     response.CodeValidationFailed,
			status:   200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Prepare(context.Background(), tt.analysis)
			require.Error(t, err)
			assert.Equal(t, tt.code, Code(err))
			assert.Equal(t, tt.status, HTTPStatus(err))
			entries := ErrorEntries(err)
			require.NotEmpty(t, entries)
			if tt.message != "" {
				assert.Equal(t, tt.message, entries[0].Message)
			}
		})
	}
}

func TestPrepare_ParseErrorKeepsLocation(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Prepare(context.Background(), analyze("{\n  allBooks { id ", ""))
	entries := ErrorEntries(err)
	require.Len(t, entries, 1)
	require.NotEmpty(t, entries[0].Locations)
	assert.Equal(t, 2, entries[0].Locations[0].Line)
}

func TestExecute_WithoutExecutor(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.exec = nil
	plan, err := engine.Prepare(context.Background(), analyze(`{ allBooks { id } }`, ""))
	require.NoError(t, err)
	_, err = engine.Execute(context.Background(), plan)
	assert.EqualError(t, err, "engine has no executor")
	assert.Equal(t, response.CodeInternalServerFailure, Code(err))
}
