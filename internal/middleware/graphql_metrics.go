package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/observability"
)

// GraphQLMetricsMiddleware records request count, duration and in-flight
// gauge for GraphQL requests, and makes metrics available to the handler
// through the context. Requests without a query, such as GraphiQL page
// loads, pass through unmeasured.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
				ctx = gqlrequest.WithAnalysis(ctx, analysis)
			}
			if analysis.Empty() && analysis.DecodeError == nil {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = observability.ContextWithGraphQLMetrics(ctx, metrics)
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			operationType := analysis.OperationType
			if operationType == "" {
				operationType = "unknown"
			}

			start := time.Now()
			rec := newStatusRecorder(w, true)
			next.ServeHTTP(rec, r.WithContext(ctx))

			failed := rec.status >= http.StatusBadRequest || responseHasGraphQLErrors(rec.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), failed, operationType)
		})
	}
}

// responseHasGraphQLErrors reports whether body is a GraphQL response with a
// non-empty errors array.
func responseHasGraphQLErrors(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false
	}
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return len(payload.Errors) > 0
}
