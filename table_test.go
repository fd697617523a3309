package artron

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddGetSnapshot(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "f", nil))
	tbl.Add(NewTask("b", nil, "f", []string{"a"}))

	assert.Equal(t, 2, tbl.Len())

	a, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", a.Tid)

	_, ok = tbl.Get("missing")
	assert.False(t, ok)

	snap := tbl.Snapshot()
	assert.Len(t, snap, 2)
}

func TestTableSnapshotIsIndependentCopy(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "f", []string{"x"}))

	snap := tbl.Snapshot()
	task := snap["a"]
	task.Require[0] = "mutated"

	fresh, _ := tbl.Get("a")
	assert.Equal(t, "x", fresh.Require[0])
}

func TestTableMarkReadyOnlyOnce(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "f", nil))

	assert.True(t, tbl.MarkReady("a"))
	assert.False(t, tbl.MarkReady("a"), "already READY, not runnable again")

	_, ok := tbl.Get("missing")
	assert.False(t, ok)
	assert.False(t, tbl.MarkReady("missing"))
}

func TestTableMarkReadyRefusesNonEmptyRequire(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "f", []string{"b"}))
	assert.False(t, tbl.MarkReady("a"))
}

func TestTableBeginRunTransitionsToRunning(t *testing.T) {
	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "f", nil))

	before, ok := tbl.BeginRun("a")
	require.True(t, ok)
	assert.Equal(t, StateInit, before.State)

	after, _ := tbl.Get("a")
	assert.Equal(t, StateRunning, after.State)
}

func TestTableFinishSuccessRemovesFromDependents(t *testing.T) {
	tbl := NewTable(nil)
	a := NewTask("a", nil, "f", nil)
	b := NewTask("b", nil, "f", []string{"a"})
	tbl.Add(a)
	tbl.Add(b)

	a.State = StateSuccess
	updated := tbl.Finish(a)

	require.Len(t, updated, 1)
	assert.Equal(t, "b", updated[0].Tid)
	assert.Empty(t, updated[0].Require)

	b2, _ := tbl.Get("b")
	assert.True(t, b2.IsRunnable())
}

func TestTableFinishFailurePoisonsTransitiveDependents(t *testing.T) {
	tbl := NewTable(nil)
	a := NewTask("a", nil, "f", nil)
	b := NewTask("b", nil, "f", []string{"a"})
	c := NewTask("c", nil, "f", []string{"b"})
	tbl.Add(a)
	tbl.Add(b)
	tbl.Add(c)

	a.State = StateError
	updated := tbl.Finish(a)

	byTid := map[string]Task{}
	for _, task := range updated {
		byTid[task.Tid] = task
	}
	require.Contains(t, byTid, "b")
	require.Contains(t, byTid, "c")
	assert.Equal(t, StateDependency, byTid["b"].State)
	assert.Equal(t, StateDependency, byTid["c"].State)

	b2, _ := tbl.Get("b")
	assert.Equal(t, StateDependency, b2.State)
	c2, _ := tbl.Get("c")
	assert.Equal(t, StateDependency, c2.State)
}

func TestTableFinishNonTerminalDoesNotPropagate(t *testing.T) {
	tbl := NewTable(nil)
	a := NewTask("a", nil, "f", nil)
	tbl.Add(a)

	a.State = StateRunning
	updated := tbl.Finish(a)
	assert.Nil(t, updated)
}
