package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GridMetrics holds custom metrics for grid query execution.
type GridMetrics struct {
	queryDuration metric.Float64Histogram
	pageRows      metric.Int64Histogram
	vanishedRows  metric.Int64Counter
}

// InitGridMetrics initializes grid-specific metrics.
func InitGridMetrics() (*GridMetrics, error) {
	meter := otel.Meter("fleetgrid")

	queryDuration, err := meter.Float64Histogram(
		"grid.query.duration",
		metric.WithDescription("Duration of grid query phases in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query duration histogram: %w", err)
	}

	pageRows, err := meter.Int64Histogram(
		"grid.page.rows",
		metric.WithDescription("Number of rows returned per grid page"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create page rows histogram: %w", err)
	}

	vanishedRows, err := meter.Int64Counter(
		"grid.page.vanished_rows",
		metric.WithDescription("Rows deleted between the id query and the batch fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vanished rows counter: %w", err)
	}

	return &GridMetrics{
		queryDuration: queryDuration,
		pageRows:      pageRows,
		vanishedRows:  vanishedRows,
	}, nil
}

// ObserveQueryDuration records the duration of one query phase
// (ids, hydrate, count).
func (m *GridMetrics) ObserveQueryDuration(ctx context.Context, entity, phase string, d time.Duration) {
	m.queryDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("phase", phase),
	))
}

// ObservePageRows records the size of a served page.
func (m *GridMetrics) ObservePageRows(ctx context.Context, entity string, rows int) {
	m.pageRows.Record(ctx, int64(rows), metric.WithAttributes(
		attribute.String("entity", entity),
	))
}

// AddVanishedRows counts rows that disappeared between the two fetch phases.
func (m *GridMetrics) AddVanishedRows(ctx context.Context, entity string, n int) {
	m.vanishedRows.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("entity", entity),
	))
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
