package gqlrequest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_GET(t *testing.T) {
	params := url.Values{}
	params.Set("query", "query GetBooks($n: Int) { allBooks(first: $n) { id } }")
	params.Set("operationName", "GetBooks")
	params.Set("variables", `{"n": 2}`)
	req := httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil)

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "GetBooks", env.OperationName)
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)
	assert.JSONEq(t, `{"n": 2}`, string(env.VariablesRaw))
}

func TestDecodeEnvelope_GETWithoutVariables(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7BallBooks%7Bid%7D%7D", nil)
	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "{allBooks{id}}", env.Query)
	assert.Nil(t, env.VariablesRaw)
}

func TestDecodeEnvelope_PostApplicationGraphQL_RewindsBody(t *testing.T) {
	body := "{ allBooks { id } }"
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/graphql; charset=utf-8")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, body, env.Query)

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rewound))
}

func TestDecodeEnvelope_PostJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"query GetBooks { allBooks { id } }","operationName":"GetBooks","variables":{"limit":5}}`))
	req.Header.Set("Content-Type", "application/json")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "GetBooks", env.OperationName)
	assert.JSONEq(t, `{"limit":5}`, string(env.VariablesRaw))
}

func TestDecodeEnvelope_NullVariablesAreAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ allBooks { id } }","variables":null}`))
	req.Header.Set("Content-Type", "application/json")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Nil(t, env.VariablesRaw)
}

func TestDecodeEnvelope_PostMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	assert.ErrorContains(t, err, "invalid JSON request body")
}

func TestDecodeEnvelope_RejectsOtherMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/graphql", strings.NewReader(`{}`))
	_, err := DecodeEnvelope(req)
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
}

func TestDecodeVariables(t *testing.T) {
	vars, err := DecodeVariables([]byte(`{"id": 3, "ids": [1, null], "title": null}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), vars["id"])
	assert.Equal(t, []any{int64(1), nil}, vars["ids"])
	v, ok := vars["title"]
	assert.True(t, ok)
	assert.Nil(t, v)

	empty, err := DecodeVariables(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeVariables([]byte(`[1, 2]`))
	assert.ErrorContains(t, err, "variables must be a JSON object, got [1, 2]")

	_, err = DecodeVariables([]byte(`{"id": `))
	assert.ErrorContains(t, err, "invalid variables")
}
