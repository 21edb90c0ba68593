package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
)

const meterName = "github.com/fyrsmithlabs/triad/internal/http"

// Metrics holds the HTTP request instruments. Instrument creation
// failures degrade to unrecorded metrics, never to request failures.
type Metrics struct {
	log            *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics creates the HTTP instruments on the global meter provider.
func NewMetrics(log *logging.Logger) *Metrics {
	m := &Metrics{log: log.Named("http.metrics")}
	m.init(otel.Meter(meterName))
	return m
}

func (m *Metrics) init(meter metric.Meter) {
	var err error

	m.requestsTotal, err = meter.Int64Counter(
		"triad.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint, and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.warn("requests counter", err)
	}

	m.requestDur, err = meter.Float64Histogram(
		"triad.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint, and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.warn("duration histogram", err)
	}

	m.responseSize, err = meter.Int64Histogram(
		"triad.http.response_size_bytes",
		metric.WithDescription("HTTP response body size in bytes, labeled by method, endpoint, and status."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000),
	)
	if err != nil {
		m.warn("response size histogram", err)
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"triad.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.warn("active requests gauge", err)
	}
}

func (m *Metrics) warn(what string, err error) {
	m.log.Warn(context.Background(), "failed to create instrument",
		zap.String("instrument", what),
		zap.Error(err))
}

// Middleware records count, duration, response size and in-flight gauge
// per request. Endpoints are labeled with the echo route template
// (":id" stays a template token), which keeps label cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "/"
			}
			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", endpoint),
				attribute.Int("status", c.Response().Status),
			)

			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			return err
		}
	}
}
