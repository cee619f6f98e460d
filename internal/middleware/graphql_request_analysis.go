package middleware

import (
	"net/http"

	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/logging"
	"gql2sql/internal/observability"
)

// GraphQLRequestAnalysisMiddleware analyzes the request once and stores the
// result in the context, so tracing, metrics and the transpiler handler share
// one parse. Operation fields are added to the request logger.
func GraphQLRequestAnalysisMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)
			if fields := observability.GraphQLLogFields(ctx, analysis); len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
