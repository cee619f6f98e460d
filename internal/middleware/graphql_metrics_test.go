package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"gql2sql/internal/observability"
)

func metricsChain(t *testing.T, next http.Handler) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(previous)
	})

	metrics, err := observability.InitGraphQLMetrics()
	require.NoError(t, err)
	return GraphQLMetricsMiddleware(metrics)(next), reader
}

// requestCount sums graphql.requests.total points for an operation type and
// outcome.
func requestCount(t *testing.T, reader *sdkmetric.ManualReader, operationType string, hasErrors bool) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	want := attribute.NewSet(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "graphql.requests.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if point.Attributes.Equals(&want) {
					total += point.Value
				}
			}
		}
	}
	return total
}

func postQuery(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func respond(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestGraphQLMetricsMiddleware_CountsSuccessfulQuery(t *testing.T) {
	var hasMetrics bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasMetrics = observability.GraphQLMetricsFromContext(r.Context()) != nil
		_, _ = w.Write([]byte(`{"data":{"languages":[]}}`))
	})
	h, reader := metricsChain(t, next)
	h.ServeHTTP(httptest.NewRecorder(), postQuery(`{"query":"{ languages { name } }"}`))

	assert.True(t, hasMetrics)
	assert.Equal(t, int64(1), requestCount(t, reader, "query", false))
}

func TestGraphQLMetricsMiddleware_ErrorsInOKResponse(t *testing.T) {
	h, reader := metricsChain(t, respond(`{"errors":[{"message":"boom"}],"data":null}`))
	h.ServeHTTP(httptest.NewRecorder(), postQuery(`{"query":"{ allBooks { id } }"}`))

	assert.Equal(t, int64(1), requestCount(t, reader, "query", true))
}

func TestGraphQLMetricsMiddleware_UndecodableRequestIsUnknown(t *testing.T) {
	h, reader := metricsChain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), postQuery(`{"query":`))

	assert.Equal(t, int64(1), requestCount(t, reader, "unknown", true))
}

func TestGraphQLMetricsMiddleware_SkipsPageLoads(t *testing.T) {
	h, reader := metricsChain(t, respond(`<html></html>`))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/graphql", nil))

	assert.Zero(t, requestCount(t, reader, "unknown", false))
	assert.Zero(t, requestCount(t, reader, "query", false))
}

func TestResponseHasGraphQLErrors(t *testing.T) {
	tests := map[string]bool{
		``:                              false,
		`not json`:                      false,
		`{"data":{}}`:                   false,
		`{"errors":null}`:               false,
		`{"errors":[]}`:                 false,
		`{"errors":[{"message":"x"}]}`:  true,
		` {"errors":[{"message":"x"}]}`: true,
	}
	for body, want := range tests {
		assert.Equal(t, want, responseHasGraphQLErrors([]byte(body)), body)
	}
}
