package artron

import (
	"fmt"
	"time"
)

// DependencyError is raised when a worker is asked to run a task whose
// require list is still non-empty — a dispatcher/graph contract
// violation, never expected to surface if the Manager is correct.
type DependencyError struct {
	Tid     string
	Require []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("task %s can't run, requires %v", e.Tid, e.Require)
}

// Task is the value object the scheduler moves through its lifecycle. A
// Task is identified by its Tid, which must be unique within a run.
//
// Task is deliberately a plain value: the shared task table copies Tasks
// in and out rather than handing out long-lived pointers across the
// table's mutex boundary (see Table).
type Task struct {
	Tid     string         `json:"tid"`
	Inputs  map[string]any `json:"inputs"`
	Func    string         `json:"func"`
	Require []string       `json:"require"`
	State   State          `json:"state"`
	Results any            `json:"results"`

	DateCreated string `json:"date_created"`
	DateStart   string `json:"date_start,omitempty"`
	DateEnd     string `json:"date_end,omitempty"`

	TimeDuration    float64 `json:"time_duration"`
	TimeDurationStr string  `json:"time_duration_str"`
}

// NewTask builds a Task in StateInit. A nil or empty require is
// normalized to an empty, non-nil slice (spec's Open Question on
// non-list require values at construction time).
func NewTask(tid string, inputs map[string]any, fn string, require []string) Task {
	req := make([]string, 0, len(require))
	req = append(req, require...)
	if inputs == nil {
		inputs = map[string]any{}
	}
	return Task{
		Tid:             tid,
		Inputs:          inputs,
		Func:            fn,
		Require:         req,
		State:           StateInit,
		DateCreated:     strdate(time.Now()),
		TimeDurationStr: "00:00:00",
	}
}

// IsRunnable reports whether the task is eligible to move to StateReady:
// still in StateInit with nothing left in Require.
func (t Task) IsRunnable() bool {
	return t.State == StateInit && len(t.Require) == 0
}

// IsFinished reports whether the task is no longer eligible for
// dispatch. RUNNING counts as finished here by design, so a progress
// reporter counts in-flight work the moment a worker picks it up.
func (t Task) IsFinished() bool {
	return t.State != StateInit && t.State != StateReady
}

// removeRequire removes one occurrence of tid from Require, if present.
func (t *Task) removeRequire(tid string) {
	for i, r := range t.Require {
		if r == tid {
			t.Require = append(t.Require[:i], t.Require[i+1:]...)
			return
		}
	}
}

// clone returns a deep-enough copy of t so that a caller can mutate the
// returned value's Require slice without aliasing the original's backing
// array.
func (t Task) clone() Task {
	c := t
	c.Require = append([]string(nil), t.Require...)
	return c
}
