package artron

// ProgressSink is the optional collaborator the Manager reports progress
// to. N reports how many finished-task events the sink has already been
// told about; Update is called with the positive delta of newly finished
// tasks since the last report; Close is called once, at normal
// completion of the run (never on a timed-out run).
//
// "Finished" here deliberately includes StateRunning, so a sink backing
// a progress bar visibly advances the moment a task starts, not only
// when it completes.
type ProgressSink interface {
	N() int
	Update(delta int)
	Close()
}

// CounterSink is a minimal in-memory ProgressSink, useful for tests and
// for embedding behind something richer (a CLI progress bar, a metrics
// counter, the NATS-backed sink in internal/natsprogress).
type CounterSink struct {
	n       int
	closed  bool
	history []int
}

// NewCounterSink returns a CounterSink starting from zero.
func NewCounterSink() *CounterSink {
	return &CounterSink{}
}

func (c *CounterSink) N() int { return c.n }

func (c *CounterSink) Update(delta int) {
	if delta <= 0 {
		return
	}
	c.n += delta
	c.history = append(c.history, delta)
}

func (c *CounterSink) Close() { c.closed = true }

// Closed reports whether Close has been called, for tests to assert on.
func (c *CounterSink) Closed() bool { return c.closed }

// reportProgress computes and forwards the positive delta of
// newly-finished tasks to sink, per spec.md §6's delta computation.
func reportProgress(sink ProgressSink, tasks map[string]Task) {
	if sink == nil {
		return
	}
	finished := 0
	for _, task := range tasks {
		if task.IsFinished() {
			finished++
		}
	}
	delta := finished - sink.N()
	if delta > 0 {
		sink.Update(delta)
	}
}
