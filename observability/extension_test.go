package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/observability"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestJob() *job.Job {
	return job.New(id.NewJobID(), "echo hi", 3, time.Now().UTC())
}

// counterValue returns the summed value of the named counter, or -1 when
// it has not been recorded.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return -1
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Counters(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		fire   func(*observability.MetricsExtension) error
	}{
		{"enqueued", "queuectl.job.enqueued", func(e *observability.MetricsExtension) error {
			return e.OnJobEnqueued(context.Background(), newTestJob())
		}},
		{"completed", "queuectl.job.completed", func(e *observability.MetricsExtension) error {
			return e.OnJobCompleted(context.Background(), newTestJob(), 100*time.Millisecond)
		}},
		{"retried", "queuectl.job.retried", func(e *observability.MetricsExtension) error {
			return e.OnJobRetrying(context.Background(), newTestJob(), 1, time.Now().Add(2*time.Second))
		}},
		{"dead", "queuectl.job.dead", func(e *observability.MetricsExtension) error {
			return e.OnJobDead(context.Background(), newTestJob(), errors.New("exit status 1"))
		}},
		{"requeued", "queuectl.job.requeued", func(e *observability.MetricsExtension) error {
			return e.OnJobRequeued(context.Background(), newTestJob())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reader := newTestExtension()
			if err := tt.fire(e); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := counterValue(t, reader, tt.metric); got != 1 {
				t.Errorf("%s: want 1, got %d", tt.metric, got)
			}
		})
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()
	r := ext.NewRegistry(slog.Default())
	r.Register(e)

	ctx := context.Background()
	j := newTestJob()
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobDead(ctx, j, errors.New("exit status 1"))

	if got := counterValue(t, reader, "queuectl.job.enqueued"); got != 2 {
		t.Errorf("enqueued: want 2, got %d", got)
	}
	if got := counterValue(t, reader, "queuectl.job.retried"); got != 1 {
		t.Errorf("retried: want 1, got %d", got)
	}
	if got := counterValue(t, reader, "queuectl.job.dead"); got != 1 {
		t.Errorf("dead: want 1, got %d", got)
	}
	if got := counterValue(t, reader, "queuectl.job.completed"); got > 0 {
		t.Errorf("completed: want nothing recorded, got %d", got)
	}
}
