package apiclient

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/lexislearn/admin-gateway/pkg/apiclient"

type metrics struct {
	requests  metric.Int64Counter
	refreshes metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	meter := provider.Meter(instrumentationName, metric.WithInstrumentationVersion(otel.Version()))

	requests, err := meter.Int64Counter(
		"apiclient.request_count",
		metric.WithDescription("Logical requests issued through the client"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request_count meter: %w", err)
	}

	refreshes, err := meter.Int64Counter(
		"apiclient.refresh_count",
		metric.WithDescription("Token refresh calls issued by the client"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating refresh_count meter: %w", err)
	}

	return &metrics{requests: requests, refreshes: refreshes}, nil
}

func (m *metrics) request(ctx context.Context, outcome string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) refresh(ctx context.Context, outcome string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
