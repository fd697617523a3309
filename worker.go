package artron

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// worker is the long-lived loop that pulls task ids off a Queue, runs the
// named operation on the Executor with bounded retries, writes the
// result back to the Table, and cascades the outcome to dependents.
// Construction mirrors the reference Worker(builder, queue, name, tasks,
// max_retry, lock): executor, queue, a stable name, the shared table,
// and a retry policy.
type worker struct {
	name     string
	executor Executor
	queue    *Queue
	table    *Table
	retry    RetryPolicy
	metrics  *instruments
}

func newWorker(name string, executor Executor, queue *Queue, table *Table, retry RetryPolicy, m *instruments) *worker {
	return &worker{
		name:     name,
		executor: executor,
		queue:    queue,
		table:    table,
		retry:    retry,
		metrics:  m,
	}
}

// run is the worker's main loop. It returns when it pulls the sentinel
// off the queue, or when ctx is cancelled while waiting for work — the
// forceful-shutdown path a timed-out or errored run takes.
func (w *worker) run(ctx context.Context) {
	for {
		tid, ok := w.queue.GetCtx(ctx)
		if !ok {
			return
		}
		if tid == sentinel {
			w.queue.Done()
			return
		}

		w.process(ctx, tid)
		w.queue.Done()
	}
}

// process runs one task to a terminal (or aborted) outcome and writes
// the result, plus any dependency cascade, back to the table.
func (w *worker) process(ctx context.Context, tid string) {
	before, ok := w.table.BeginRun(tid)
	if !ok {
		slog.Warn("worker picked up unknown task", "worker", w.name, "tid", tid)
		return
	}

	task := before.clone()
	task.State = StateRunning

	if len(task.Require) > 0 {
		task.State = StateWrong
		task.Results = (&DependencyError{Tid: task.Tid, Require: task.Require}).Error()
		w.table.Finish(task)
		return
	}

	w.metrics.addInFlight(ctx, 1)
	task = w.runWithRetries(ctx, task)
	w.metrics.addInFlight(ctx, -1)
	w.table.Finish(task)
}

// runWithRetries invokes the task's operation up to retry.MaxAttempts
// times, recording timing per spec: date_start is set on the first
// attempt only, date_end/time_duration reflect the most recent attempt.
func (w *worker) runWithRetries(ctx context.Context, task Task) Task {
	maxAttempts := w.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt == 1 {
			task.DateStart = strdate(time.Now())
		} else if w.retry.InitialWait > 0 {
			time.Sleep(w.retry.backoff(attempt - 1))
		}

		attemptStart := time.Now()
		result, err := w.invoke(ctx, task, attempt)
		duration := time.Since(attemptStart)

		task.DateEnd = strdate(time.Now())
		task.TimeDuration = duration.Seconds()
		task.TimeDurationStr = strgmtime(duration)

		w.metrics.recordAttempt(ctx, task.Tid, task.Func, duration.Seconds(), attempt, err != nil)

		if err == nil {
			task.State = StateSuccess
			task.Results = result
			return task
		}

		task.State = StateError
		task.Results = err.Error()
	}

	return task
}

// invoke runs a single attempt of the task's operation inside its own
// tracing span, mirroring the teacher's task.execute span.
func (w *worker) invoke(ctx context.Context, task Task, attempt int) (any, error) {
	ctx, span := tracer.Start(ctx, "task.execute",
		trace.WithAttributes(
			attribute.String("task_id", task.Tid),
			attribute.String("func", task.Func),
			attribute.Int("attempt", attempt),
		),
	)
	defer span.End()

	args := make(map[string]any, len(task.Inputs)+1)
	for k, v := range task.Inputs {
		args[k] = v
	}
	args["retry"] = attempt

	return w.executor.Invoke(ctx, task.Func, args)
}
