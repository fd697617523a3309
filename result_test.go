package artron

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSummaryAllSuccessIsExitZero(t *testing.T) {
	a := NewTask("a", nil, "f", nil)
	a.State = StateSuccess
	b := NewTask("b", nil, "f", nil)
	b.State = StateSuccess

	s := buildSummary("start", "end", "00:00:01", []Task{a, b})
	assert.Equal(t, 0, s.ExitCode)
	assert.Equal(t, 2, s.Results.Success)
	assert.Equal(t, 0, s.Results.Failures)
}

func TestBuildSummaryAnyFailureIsExitOne(t *testing.T) {
	a := NewTask("a", nil, "f", nil)
	a.State = StateSuccess
	b := NewTask("b", nil, "f", nil)
	b.State = StateError
	c := NewTask("c", nil, "f", nil)
	c.State = StateDependency
	d := NewTask("d", nil, "f", nil)
	d.State = StateRunning
	e := NewTask("e", nil, "f", nil)
	e.State = StateReady
	x := NewTask("x", nil, "f", nil)

	s := buildSummary("start", "end", "00:00:01", []Task{a, b, c, d, e, x})
	assert.Equal(t, 1, s.ExitCode)
	assert.Equal(t, 1, s.Results.Success)
	assert.Equal(t, 1, s.Results.Failures)
	assert.Equal(t, 1, s.Results.Deps)
	assert.Equal(t, 1, s.Results.Aborted)
	assert.Equal(t, 1, s.Results.Ready)
	assert.Equal(t, 1, s.Results.Nrun)
}

func TestBuildSummaryEmptyRunIsExitZero(t *testing.T) {
	s := buildSummary("start", "end", "00:00:00", nil)
	assert.Equal(t, 0, s.ExitCode)
}

func TestBuildSummaryPreservesTaskOrder(t *testing.T) {
	a := NewTask("a", nil, "f", nil)
	b := NewTask("b", nil, "f", nil)
	s := buildSummary("start", "end", "00:00:00", []Task{b, a})
	assert.Equal(t, []string{"b", "a"}, []string{s.Tasks[0].Tid, s.Tasks[1].Tid})
}
