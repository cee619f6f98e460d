package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts bearer token checks by outcome.
type AuthMetrics struct {
	attempts metric.Int64Counter
	failures metric.Int64Counter
}

// InitAuthMetrics creates the authentication instruments.
func InitAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("gql2sql/auth")

	attempts, err := meter.Int64Counter(
		"security.auth.attempts.total",
		metric.WithDescription("Bearer token checks by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth attempts counter: %w", err)
	}
	failures, err := meter.Int64Counter(
		"security.auth.failures.total",
		metric.WithDescription("Rejected bearer tokens by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth failures counter: %w", err)
	}
	return &AuthMetrics{attempts: attempts, failures: failures}, nil
}

// RecordSuccess counts an accepted token.
func (m *AuthMetrics) RecordSuccess(ctx context.Context, endpoint string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", "accepted"),
	))
}

// RecordFailure counts a rejected request and the reason it was rejected.
func (m *AuthMetrics) RecordFailure(ctx context.Context, endpoint, reason string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", "rejected"),
	))
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}
