package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gql2sql/internal/config"
	"gql2sql/internal/logging"
	"gql2sql/internal/middleware"
	"gql2sql/internal/observability"
	"gql2sql/internal/transpiler"
)

// routeDeps carries what the router needs from Init.
type routeDeps struct {
	engine         *transpiler.Engine
	db             *sql.DB
	graphqlMetrics *observability.GraphQLMetrics
	authMetrics    *observability.AuthMetrics
	metricsEnabled bool
}

// buildGraphQLHandler wraps the transpiler handler. The chain is:
//
//	logging -> analysis -> tracing -> metrics -> OIDC -> transpiler
//
// OIDC runs innermost so rejected requests are still logged, traced and
// counted.
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, deps routeDeps) (http.Handler, error) {
	var handler http.Handler = transpiler.NewHandler(deps.engine, transpiler.HandlerOptions{
		GraphiQL: cfg.Server.GraphiQL,
	})
	if cfg.Server.GraphiQL {
		logger.Warn("GraphiQL enabled on GET /graphql")
	}

	if cfg.Server.Auth.OIDC.Enabled {
		oidc := cfg.Server.Auth.OIDC
		auth, err := middleware.OIDCAuthMiddleware(middleware.OIDCAuthConfig{
			Enabled:       oidc.Enabled,
			IssuerURL:     oidc.IssuerURL,
			Audience:      oidc.Audience,
			ClockSkew:     oidc.ClockSkew,
			CAFile:        oidc.CAFile,
			SkipTLSVerify: oidc.SkipTLSVerify,
		}, deps.authMetrics)
		if err != nil {
			return nil, err
		}
		handler = auth(handler)
		logger.Info("OIDC auth middleware enabled", slog.String("issuer", oidc.IssuerURL))
	}

	if deps.graphqlMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(deps.graphqlMetrics)(handler)
	}
	handler = middleware.GraphQLTracingMiddleware()(handler)
	handler = middleware.GraphQLRequestAnalysisMiddleware()(handler)
	return middleware.LoggingMiddleware(logger)(handler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, deps routeDeps) (*http.ServeMux, error) {
	graphqlHandler, err := buildGraphQLHandler(cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/health", healthHandler(deps.db, cfg.Server.HealthCheckTimeout))
	if deps.metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}
	return mux, nil
}

// wrapHTTPHandler adds the transport-level layers: OpenTelemetry HTTP
// instrumentation and CORS, outermost so preflights never reach a route.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORS.Enabled {
		cors := cfg.Server.CORS
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cors.Enabled,
			AllowedOrigins:   cors.AllowedOrigins,
			AllowedMethods:   cors.AllowedMethods,
			AllowedHeaders:   cors.AllowedHeaders,
			ExposeHeaders:    cors.ExposeHeaders,
			AllowCredentials: cors.AllowCredentials,
			MaxAge:           cors.MaxAge,
		})(handler)
	}
	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

// healthHandler reports database reachability. Failures answer with a fixed
// body so driver errors never leak.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("check", "database"),
				slog.String("error", err.Error()),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
