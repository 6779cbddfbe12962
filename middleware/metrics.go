package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/queuectl/job"
)

// meterName is the instrumentation scope name for queuectl metrics.
const meterName = "github.com/xraph/queuectl"

// Metrics returns middleware that records per-execution metrics using the
// global OTel MeterProvider.
//
// Instruments:
//   - queuectl.job.duration (Float64Histogram): execution time in seconds
//   - queuectl.job.executions (Int64Counter): total executions
//
// Both carry a status attribute, "ok" or "error". The command text is not
// used as an attribute to keep cardinality bounded.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the OTel API returns noop instruments.
	duration, _ := meter.Float64Histogram( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"queuectl.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"queuectl.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, _ *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(attribute.String("status", status))

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
