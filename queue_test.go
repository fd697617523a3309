package artron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePutGetDone(t *testing.T) {
	q := NewQueue(1)
	q.Put("a")

	tid, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, "a", tid)
	q.Done()

	joined := make(chan struct{})
	go func() {
		q.Join()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after matching Done")
	}
}

func TestQueueJoinWaitsForAllPuts(t *testing.T) {
	q := NewQueue(2)
	q.Put("a")
	q.Put("b")

	joined := make(chan struct{})
	go func() {
		q.Join()
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join returned before both items were acknowledged")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = q.Get()
	q.Done()
	_, _ = q.Get()
	q.Done()

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after all Done calls")
	}
}

func TestQueueGetCtxUnblocksOnCancel(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		_, ok := q.GetCtx(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("GetCtx did not unblock on context cancellation")
	}
}

func TestQueueGetCtxDeliversItem(t *testing.T) {
	q := NewQueue(1)
	q.Put("x")
	tid, ok := q.GetCtx(context.Background())
	require.True(t, ok)
	assert.Equal(t, "x", tid)
}
