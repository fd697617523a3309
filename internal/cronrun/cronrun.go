// Package cronrun triggers repeated executions of a task graph on a cron
// schedule. Each firing builds a fresh Manager from a caller-supplied
// factory, so every run gets its own task table, queue, and worker pool
// — no state survives between firings except whatever the caller's
// Factory closes over (e.g. a shared executor or store).
package cronrun

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"

	artron "github.com/ahmet2mir/go-artron"
)

func defaultMeter() metric.Meter {
	return noopmetric.MeterProvider{}.Meter("artron-cronrun")
}

// Factory builds the Manager and the tasks to run for one firing.
type Factory func() (*artron.Manager, error)

// ResultHandler is called with the outcome of every firing that is not
// skipped for concurrency, including ones whose Factory failed (in which
// case summary is the zero Summary and err is set).
type ResultHandler func(scheduleName string, firedAt time.Time, summary artron.Summary, err error)

// Runner drives one or more named graph schedules on a shared cron
// instance.
type Runner struct {
	cron *cron.Cron

	mu        sync.Mutex
	running   map[string]int
	onResult  ResultHandler
	runTotal  metric.Int64Counter
	failTotal metric.Int64Counter
}

// NewRunner builds a Runner. onResult may be nil. meter may be nil, in
// which case metrics are recorded against a no-op meter and discarded.
func NewRunner(meter metric.Meter, onResult ResultHandler) *Runner {
	if meter == nil {
		meter = defaultMeter()
	}
	runTotal, _ := meter.Int64Counter("artron_cron_runs_total")
	failTotal, _ := meter.Int64Counter("artron_cron_run_failures_total")

	return &Runner{
		cron:      cron.New(cron.WithSeconds()),
		running:   make(map[string]int),
		onResult:  onResult,
		runTotal:  runTotal,
		failTotal: failTotal,
	}
}

// Schedule registers factory to fire on the standard six-field cron
// expression expr under name. maxConcurrent bounds how many firings of
// this schedule may run at once; 0 means unlimited. It returns the
// opaque cron entry id, usable with Remove.
func (r *Runner) Schedule(name, expr string, maxConcurrent int, factory Factory) (cron.EntryID, error) {
	return r.cron.AddFunc(expr, func() {
		r.fire(name, maxConcurrent, factory)
	})
}

// Remove cancels a previously registered schedule.
func (r *Runner) Remove(id cron.EntryID) {
	r.cron.Remove(id)
}

// Start begins dispatching scheduled firings in the background.
func (r *Runner) Start() { r.cron.Start() }

// Stop blocks until every in-flight cron dispatch, including the graph
// run it started synchronously, has returned, or ctx is done first.
func (r *Runner) Stop(ctx context.Context) error {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) fire(name string, maxConcurrent int, factory Factory) {
	firedAt := time.Now()

	r.mu.Lock()
	if maxConcurrent > 0 && r.running[name] >= maxConcurrent {
		r.mu.Unlock()
		slog.Warn("cronrun: skipping firing, already at max concurrency", "schedule", name)
		return
	}
	r.running[name]++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running[name]--
		r.mu.Unlock()
	}()

	mgr, err := factory()
	if err != nil {
		r.failTotal.Add(context.Background(), 1)
		slog.Error("cronrun: factory failed", "schedule", name, "error", err)
		if r.onResult != nil {
			r.onResult(name, firedAt, artron.Summary{}, err)
		}
		return
	}

	summary := mgr.Start(context.Background())
	r.runTotal.Add(context.Background(), 1)
	if summary.ExitCode != 0 {
		r.failTotal.Add(context.Background(), 1)
	}
	if r.onResult != nil {
		r.onResult(name, firedAt, summary, nil)
	}
}
