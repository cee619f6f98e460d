package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds the instruments recorded while serving GraphQL requests.
type GraphQLMetrics struct {
	requestDuration   metric.Float64Histogram
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	queryDepth        metric.Int64Histogram
	compileDuration   metric.Float64Histogram
	rootFields        metric.Int64Histogram
	statementDuration metric.Float64Histogram
	responseBytes     metric.Int64Histogram
}

// InitGraphQLMetrics creates the GraphQL instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("gql2sql")
	m := &GraphQLMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("GraphQL errors by extensions code"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if m.queryDepth, err = meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Selection depth of GraphQL operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}
	if m.compileDuration, err = meter.Float64Histogram(
		"graphql.compile.duration",
		metric.WithDescription("Time spent turning an operation into SQL, in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}
	if m.rootFields, err = meter.Int64Histogram(
		"graphql.compile.root_fields",
		metric.WithDescription("Number of SQL statements compiled per operation"),
	); err != nil {
		return nil, fmt.Errorf("failed to create root fields histogram: %w", err)
	}
	if m.statementDuration, err = meter.Float64Histogram(
		"graphql.statement.duration",
		metric.WithDescription("Duration of a single root field statement in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create statement duration histogram: %w", err)
	}
	if m.responseBytes, err = meter.Int64Histogram(
		"graphql.response.size",
		metric.WithDescription("Size of GraphQL response bodies"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create response size histogram: %w", err)
	}
	return m, nil
}

// RecordRequest records a finished request with its duration and outcome.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.requestCounter.Add(ctx, 1, attrs)
}

// RecordError counts one error entry by its extensions code.
func (m *GraphQLMetrics) RecordError(ctx context.Context, code string) {
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordQueryDepth records the selection depth of an operation.
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordCompile records how long compilation took and how many statements it produced.
func (m *GraphQLMetrics) RecordCompile(ctx context.Context, duration time.Duration, statements int) {
	m.compileDuration.Record(ctx, float64(duration.Microseconds())/1000)
	m.rootFields.Record(ctx, int64(statements))
}

// RecordStatement records the execution of one root field statement.
func (m *GraphQLMetrics) RecordStatement(ctx context.Context, duration time.Duration, shape string, failed bool) {
	m.statementDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.String("shape", shape),
		attribute.Bool("failed", failed),
	))
}

// RecordResponseSize records the size of a response body.
func (m *GraphQLMetrics) RecordResponseSize(ctx context.Context, size int) {
	m.responseBytes.Record(ctx, int64(size))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes the custom metrics and logs that they are ready.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}
	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
