package transpiler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gqlhandler "github.com/graphql-go/handler"

	"gql2sql/internal/gqlrequest"
	"gql2sql/internal/logging"
	"gql2sql/internal/observability"
	"gql2sql/internal/response"
)

// HandlerOptions configures the HTTP handler.
type HandlerOptions struct {
	// GraphiQL serves the GraphiQL page to browsers requesting HTML.
	GraphiQL bool
}

// Handler serves GraphQL over HTTP. Requests that carry an analysis in their
// context reuse it; others are analyzed here.
type Handler struct {
	engine *Engine
	ui     http.Handler
}

// NewHandler returns an HTTP handler for engine.
func NewHandler(engine *Engine, opts HandlerOptions) *Handler {
	h := &Handler{engine: engine}
	if opts.GraphiQL {
		h.ui = gqlhandler.New(&gqlhandler.Config{
			Schema:   engine.schema.GraphQL(),
			Pretty:   true,
			GraphiQL: true,
		})
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ui != nil && r.Method == http.MethodGet && wantsHTML(r) {
		h.ui.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	analysis := gqlrequest.AnalysisFromContext(ctx)
	if analysis == nil {
		analysis = gqlrequest.AnalyzeRequest(r)
	}

	body, err := h.engine.Serve(ctx, analysis)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordResponseSize(ctx, len(body))
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	entries := ErrorEntries(err)
	status := HTTPStatus(err)
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		for _, entry := range entries {
			metrics.RecordError(ctx, string(entry.Extensions.Code))
		}
	}

	logger := logging.FromContext(ctx)
	code := Code(err)
	switch code {
	case response.CodeInternalServerFailure, response.CodeBackingStore:
		logger.Error("graphql request failed", slog.String("code", string(code)), slog.String("error", err.Error()))
	default:
		logger.Info("graphql request rejected", slog.String("code", string(code)), slog.String("error", err.Error()))
	}

	if status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", "GET, POST")
	}
	writeJSON(w, status, response.Errors(entries...))
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
