package artron

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDeadline      = time.Hour
	defaultPollInterval  = time.Second
	defaultShutdownGrace = 5 * time.Second
)

// Manager owns a run: it spawns Workers, iteratively recomputes the
// readiness frontier, enforces the deadline, drains the queue, and
// produces the result Summary. It is the direct analogue of the
// reference scheduler's Manager class.
type Manager struct {
	executor Executor
	table    *Table
	queue    *Queue

	numWorkers    int
	deadline      time.Duration
	pollInterval  time.Duration
	shutdownGrace time.Duration
	retry         RetryPolicy
	progress      ProgressSink
	metrics       *instruments

	mu    sync.Mutex
	order []string
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithWorkerCount overrides the worker pool size. The default is
// runtime.NumCPU(), mirroring multiprocessing.cpu_count() in the
// reference implementation.
func WithWorkerCount(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.numWorkers = n
		}
	}
}

// WithQueue supplies a pre-built Queue instead of the default unbuffered
// one, e.g. to observe or instrument it externally.
func WithQueue(q *Queue) Option {
	return func(m *Manager) {
		if q != nil {
			m.queue = q
		}
	}
}

// WithDeadline sets the run's wall-clock budget. Default is one hour,
// mirroring the reference's run_timeout=3600.
func WithDeadline(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.deadline = d
		}
	}
}

// WithPollInterval sets how often the dispatcher recomputes readiness.
// Default one second, mirroring the reference's sleep=1.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithShutdownGrace bounds how long Start waits, after a normal drain,
// for worker goroutines to actually return. The queue's join barrier
// already guarantees every dispatched task has been processed by the
// time Join returns, so this is a defensive bound rather than a
// semantic timeout — see SPEC_FULL.md §5.
func WithShutdownGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownGrace = d
		}
	}
}

// WithMaxRetry sets RetryPolicy.MaxAttempts, keeping any previously
// configured backoff. Default is 3, mirroring max_retry=3.
func WithMaxRetry(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retry.MaxAttempts = n
		}
	}
}

// WithRetryPolicy overrides the full retry/backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Manager) { m.retry = p }
}

// WithProgress attaches a ProgressSink.
func WithProgress(sink ProgressSink) Option {
	return func(m *Manager) { m.progress = sink }
}

// WithMeter attaches an OpenTelemetry meter to source the Manager and
// Worker instruments from. Without this option metrics are recorded
// against the global (possibly no-op) meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(m *Manager) { m.metrics = newInstruments(meter) }
}

// WithTasks seeds the Manager with an ordered list of tasks, equivalent
// to calling Add for each in order.
func WithTasks(tasks []Task) Option {
	return func(m *Manager) {
		for _, t := range tasks {
			m.Add(t)
		}
	}
}

// NewManager builds a Manager around executor. Workers default to
// runtime.NumCPU(), deadline to one hour, poll interval to one second,
// and max retry to 3 — the same defaults as the reference scheduler.
func NewManager(executor Executor, opts ...Option) *Manager {
	m := &Manager{
		executor:      executor,
		table:         NewTable(nil),
		queue:         NewQueue(0),
		numWorkers:    runtime.NumCPU(),
		deadline:      defaultDeadline,
		pollInterval:  defaultPollInterval,
		shutdownGrace: defaultShutdownGrace,
		retry:         DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = newInstruments(nil)
	}
	return m
}

// Add inserts task into the shared table, keyed by its Tid. Adding a tid
// already present overwrites the existing task but preserves its
// position in summary ordering.
func (m *Manager) Add(task Task) {
	m.table.Add(task)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !contains(m.order, task.Tid) {
		m.order = append(m.order, task.Tid)
	}
}

// Start runs the graph to completion or until the deadline elapses,
// whichever comes first, and returns the result Summary. Start never
// panics to its caller — any unexpected dispatcher failure is recovered
// and folded into a failed run, mirroring the reference scheduler's
// top-level catch-all.
func (m *Manager) Start(ctx context.Context) (summary Summary) {
	tStart := time.Now()

	runCtx, span := tracer.Start(ctx, "manager.run")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatcher panic, exiting", "error", r)
			summary = m.finalize(tStart, true)
		}
	}()

	workCtx, cancel := context.WithCancel(runCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(workCtx)
	for i := 0; i < m.numWorkers; i++ {
		wk := newWorker(fmt.Sprintf("worker-%d", i), m.executor, m.queue, m.table, m.retry, m.metrics)
		g.Go(func() error {
			wk.run(gctx)
			return nil
		})
	}

	timedOut := m.dispatchLoop(ctx, tStart)

	if timedOut {
		// No drain: the deadline (or ctx) fired while some task was still
		// in INIT, and waiting on the queue's join barrier would mean
		// waiting on in-flight work past the deadline. Whatever workers
		// are mid-flight are left to finish or idle out on their own; cancel only wakes idle ones
		// waiting on the queue. This does not preempt a running task —
		// it simply stops the run from waiting on it any longer.
		span.SetAttributes(attribute.Bool("timed_out", true))
		return m.finalize(tStart, true)
	}

	for i := 0; i < m.numWorkers; i++ {
		m.queue.Put(sentinel)
	}
	m.queue.Join()
	if m.progress != nil {
		m.progress.Close()
	}

	m.awaitWorkers(g)

	return m.finalize(tStart, false)
}

// dispatchLoop is the Manager's core loop: while edges remain and the
// deadline hasn't elapsed, enqueue every runnable isolated vertex,
// rebuild the graph, report progress, and sleep for the poll interval.
// It returns true if the loop exited because the deadline (or an
// external context cancellation) fired with edges still remaining.
func (m *Manager) dispatchLoop(ctx context.Context, tStart time.Time) bool {
	deadlineAt := tStart.Add(m.deadline)

	snapshot := m.table.Snapshot()
	graph := BuildGraph(snapshot)
	edges := graph.Edges()

	for len(edges) > 0 {
		if !time.Now().Before(deadlineAt) || ctx.Err() != nil {
			return true
		}

		for _, tid := range graph.IsolatedVertices() {
			if m.table.MarkReady(tid) {
				m.queue.Put(tid)
			}
		}

		snapshot = m.table.Snapshot()
		graph = BuildGraph(snapshot)
		edges = graph.Edges()

		reportProgress(m.progress, snapshot)

		select {
		case <-time.After(m.pollInterval):
		case <-ctx.Done():
			return true
		}
	}

	reportProgress(m.progress, m.table.Snapshot())
	return false
}

// awaitWorkers waits for every worker goroutine to return after a normal
// drain, bounded by shutdownGrace as a defensive backstop — by this
// point the queue's join barrier already guarantees each worker has
// finished its last task and is on its way out.
func (m *Manager) awaitWorkers(g *errgroup.Group) {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(m.shutdownGrace):
		slog.Warn("worker shutdown grace period elapsed, abandoning stragglers")
	}
}

func (m *Manager) finalize(tStart time.Time, timedOut bool) Summary {
	finalSnapshot := m.table.Snapshot()
	ordered := m.orderedTasks(finalSnapshot)

	dateEnd := time.Now()
	s := buildSummary(strdate(tStart), strdate(dateEnd), strgmtime(dateEnd.Sub(tStart)), ordered)
	if timedOut {
		s.ExitCode = 1
	}
	return s
}

func (m *Manager) orderedTasks(snapshot map[string]Task) []Task {
	m.mu.Lock()
	order := append([]string(nil), m.order...)
	m.mu.Unlock()

	out := make([]Task, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, tid := range order {
		if task, ok := snapshot[tid]; ok {
			out = append(out, task)
			seen[tid] = struct{}{}
		}
	}
	// Defensive: include any task present in the snapshot but missing
	// from the recorded order (can only happen if a caller mutated the
	// table through means other than Add).
	for tid, task := range snapshot {
		if _, ok := seen[tid]; !ok {
			out = append(out, task)
		}
	}
	return out
}
