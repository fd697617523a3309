package artron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerProcessSuccessOnFirstAttempt(t *testing.T) {
	registry := NewRegistry()
	registry.Register("build", func(ctx context.Context, args map[string]any) (any, error) {
		assert.Equal(t, 1, args["retry"])
		return "ok", nil
	})

	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "build", nil))

	q := NewQueue(1)
	w := newWorker("w0", registry, q, tbl, DefaultRetryPolicy(), nil)
	w.process(context.Background(), "a")

	task, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, StateSuccess, task.State)
	assert.Equal(t, "ok", task.Results)
	assert.NotEmpty(t, task.DateStart)
	assert.NotEmpty(t, task.DateEnd)
}

func TestWorkerProcessSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	registry := NewRegistry()
	registry.Register("flaky", func(ctx context.Context, args map[string]any) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("not yet")
		}
		return "done", nil
	})

	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "flaky", nil))

	w := newWorker("w0", registry, NewQueue(1), tbl, RetryPolicy{MaxAttempts: 5}, nil)
	w.process(context.Background(), "a")

	task, _ := tbl.Get("a")
	assert.Equal(t, StateSuccess, task.State)
	assert.Equal(t, 3, attempts)
}

func TestWorkerProcessExhaustsRetries(t *testing.T) {
	registry := NewRegistry()
	registry.Register("alwaysfails", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "alwaysfails", nil))

	w := newWorker("w0", registry, NewQueue(1), tbl, RetryPolicy{MaxAttempts: 3}, nil)
	w.process(context.Background(), "a")

	task, _ := tbl.Get("a")
	assert.Equal(t, StateError, task.State)
	assert.Equal(t, "boom", task.Results)
}

func TestWorkerProcessDependencyContractViolation(t *testing.T) {
	registry := NewRegistry()
	called := false
	registry.Register("f", func(ctx context.Context, args map[string]any) (any, error) {
		called = true
		return nil, nil
	})

	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "f", []string{"still-pending"}))

	w := newWorker("w0", registry, NewQueue(1), tbl, DefaultRetryPolicy(), nil)
	w.process(context.Background(), "a")

	task, _ := tbl.Get("a")
	assert.Equal(t, StateWrong, task.State)
	assert.False(t, called, "the operation must never run when require is non-empty")
}

func TestWorkerProcessPropagatesFailureToDependents(t *testing.T) {
	registry := NewRegistry()
	registry.Register("alwaysfails", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	tbl := NewTable(nil)
	tbl.Add(NewTask("a", nil, "alwaysfails", nil))
	tbl.Add(NewTask("b", nil, "noop", []string{"a"}))

	w := newWorker("w0", registry, NewQueue(1), tbl, RetryPolicy{MaxAttempts: 1}, nil)
	w.process(context.Background(), "a")

	b, _ := tbl.Get("b")
	assert.Equal(t, StateDependency, b.State)
}

func TestWorkerProcessUnknownTaskIsNoop(t *testing.T) {
	tbl := NewTable(nil)
	w := newWorker("w0", NewRegistry(), NewQueue(1), tbl, DefaultRetryPolicy(), nil)
	assert.NotPanics(t, func() {
		w.process(context.Background(), "ghost")
	})
}
