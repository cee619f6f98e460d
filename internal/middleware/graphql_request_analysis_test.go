package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/logging"
)

func TestGraphQLRequestAnalysisMiddleware_StoresAnalysisAndRewindsBody(t *testing.T) {
	var (
		seen *gqlrequest.Analysis
		body string
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlrequest.AnalysisFromContext(r.Context())
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		logging.FromContext(r.Context()).Info("inside")
	})

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Format: "json", Output: &buf})
	payload := `{"query":"query Books($n: Int) { allBooks(first: $n) { title } }","operationName":"Books","variables":{"n":2}}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(logging.WithLogger(req.Context(), logger))

	GraphQLRequestAnalysisMiddleware()(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "query", seen.OperationType)
	assert.Equal(t, "Books", seen.OperationName)
	assert.Equal(t, 2, seen.FieldCount)
	assert.Equal(t, 1, seen.VariableCount)
	assert.Equal(t, map[string]any{"n": int64(2)}, seen.Variables)
	assert.NotEmpty(t, seen.OperationHash)
	assert.Equal(t, payload, body)

	logged := buf.String()
	assert.Contains(t, logged, `"operation_name":"Books"`)
	assert.Contains(t, logged, `"operation_type":"query"`)
}

func TestGraphQLRequestAnalysisMiddleware_KeepsDecodeError(t *testing.T) {
	var seen *gqlrequest.Analysis
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlrequest.AnalysisFromContext(r.Context())
	})
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	GraphQLRequestAnalysisMiddleware()(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Error(t, seen.DecodeError)
	assert.Nil(t, seen.Operation)
}
