package artron

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// tracer is shared by the Manager (one span per run) and the Worker (one
// span per task attempt), mirroring the teacher's dag.execute /
// task.execute span nesting. Calling otel.Tracer before a host process
// configures a real TracerProvider (via an otelinit-style helper) is a
// safe no-op, so the scheduler never requires tracing to be configured.
var tracer = otel.Tracer("taskgraph")

// instruments holds the metric set the Manager records against, the same
// shape as the teacher's NewDAGEngine instrument set: duration
// histogram, retry counter, failure counter, in-flight gauge.
type instruments struct {
	taskDuration metric.Float64Histogram
	retries      metric.Int64Counter
	failures     metric.Int64Counter
	inFlight     metric.Int64UpDownCounter
}

func newInstruments(meter metric.Meter) *instruments {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("taskgraph")
	}
	taskDuration, _ := meter.Float64Histogram("artron_task_duration_seconds")
	retries, _ := meter.Int64Counter("artron_task_retries_total")
	failures, _ := meter.Int64Counter("artron_task_failures_total")
	inFlight, _ := meter.Int64UpDownCounter("artron_tasks_in_flight")
	return &instruments{
		taskDuration: taskDuration,
		retries:      retries,
		failures:     failures,
		inFlight:     inFlight,
	}
}

func (m *instruments) addInFlight(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.inFlight.Add(ctx, delta)
}

func (m *instruments) recordAttempt(ctx context.Context, task, fn string, seconds float64, attempt int, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("func", fn),
	)
	m.taskDuration.Record(ctx, seconds, attrs)
	if attempt > 1 {
		m.retries.Add(ctx, 1, attrs)
	}
	if failed {
		m.failures.Add(ctx, 1, attrs)
	}
}
