package artron

import "sync"

// Table is the single shared mutable structure in a run: a concurrency-
// safe mapping from task id to Task, guarded by one mutex. Every public
// method copies Tasks in and out — no long-lived Task pointer ever
// crosses the mutex boundary, so a caller mutating its own copy can never
// corrupt another goroutine's view.
type Table struct {
	mu    sync.Mutex
	tasks map[string]Task
}

// NewTable builds a Table, optionally seeded with an initial set of
// tasks keyed by tid.
func NewTable(initial map[string]Task) *Table {
	t := &Table{tasks: make(map[string]Task, len(initial))}
	for tid, task := range initial {
		t.tasks[tid] = task.clone()
	}
	return t
}

// Add inserts task into the table, overwriting any existing task with
// the same tid.
func (t *Table) Add(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[task.Tid] = task.clone()
}

// Get returns a copy of the task with the given id.
func (t *Table) Get(tid string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[tid]
	if !ok {
		return Task{}, false
	}
	return task.clone(), true
}

// Len returns the number of tasks currently in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Snapshot returns a deep-enough copy of every task in the table, safe
// for a caller to inspect or build a Graph from without holding the
// table's lock.
func (t *Table) Snapshot() map[string]Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Task, len(t.tasks))
	for tid, task := range t.tasks {
		out[tid] = task.clone()
	}
	return out
}

// MarkReady atomically transitions tid from StateInit (with an empty
// Require) to StateReady and returns true, or returns false if the task
// was no longer runnable (already enqueued, finished, or poisoned by a
// concurrent propagation). This is the dedupe mechanism: once a task
// leaves StateInit it will never be enqueued again.
func (t *Table) MarkReady(tid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[tid]
	if !ok || !task.IsRunnable() {
		return false
	}
	task.State = StateReady
	t.tasks[tid] = task
	return true
}

// BeginRun transitions tid to StateRunning and returns the task as it
// stood the instant before (so the worker can inspect Require to detect
// a dependency-contract violation before invoking the operation).
func (t *Table) BeginRun(tid string) (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[tid]
	if !ok {
		return Task{}, false
	}
	before := task.clone()
	task.State = StateRunning
	t.tasks[tid] = task
	return before, true
}

// Finish writes back the terminal (or aborted) state of task and, if
// task reached a terminal state, propagates that outcome to its
// dependents in one atomic step. It returns every task the propagation
// touched, in no particular order.
func (t *Table) Finish(task Task) []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[task.Tid] = task.clone()

	if !task.State.IsTerminal() {
		return nil
	}

	var updated []Task
	if task.State == StateSuccess {
		updated = t.removeRequireEverywhere(task.Tid)
	} else {
		updated = t.propagateFailure(task.Tid)
	}
	return updated
}

// removeRequireEverywhere implements the SUCCESS branch of update_childs:
// drop tid from every still-INIT dependent's require list. It does not
// recurse further — a dependent whose require list is now empty simply
// becomes runnable on the dispatcher's next pass, it is not itself
// terminal, so there is nothing further to propagate.
func (t *Table) removeRequireEverywhere(tid string) []Task {
	var updated []Task
	for cid, child := range t.tasks {
		if child.State != StateInit {
			continue
		}
		if !contains(child.Require, tid) {
			continue
		}
		child.removeRequire(tid)
		t.tasks[cid] = child
		updated = append(updated, child.clone())
	}
	return updated
}

// propagateFailure implements the terminal-failure branch of
// update_childs: every still-INIT dependent of tid is poisoned to
// StateDependency, and the poisoning recurses through the chain of
// transitive dependents in one depth-first pass. Callers must already
// hold t.mu.
func (t *Table) propagateFailure(tid string) []Task {
	var updated []Task
	for cid, child := range t.tasks {
		if child.State != StateInit {
			continue
		}
		if !contains(child.Require, tid) {
			continue
		}
		child.State = StateDependency
		child.removeRequire(tid)
		t.tasks[cid] = child
		updated = append(updated, child.clone())
		updated = append(updated, t.propagateFailure(cid)...)
	}
	return updated
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
