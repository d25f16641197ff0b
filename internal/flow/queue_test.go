package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()

	for _, token := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(job{flow: QueryTokenValue{Token: token}}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.flow.(QueryTokenValue).Token)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestJobQueue_SignalCoalesces(t *testing.T) {
	q := newJobQueue()

	q.Enqueue(job{flow: QueryTokenValue{Token: "A"}})
	q.Enqueue(job{flow: QueryTokenValue{Token: "B"}})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
}

func TestJobQueue_Close(t *testing.T) {
	q := newJobQueue()
	assert.False(t, q.Closed())

	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(job{flow: QueryTokenValue{Token: "A"}}))

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed queue should wake waiters")
	}
}

func TestJobQueue_Drain(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{flow: QueryTokenValue{Token: "A"}})
	q.Enqueue(job{flow: QueryTokenValue{Token: "B"}})

	pending := q.Drain()
	assert.Len(t, pending, 2)
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Closed())
}

func TestJobQueue_ConcurrentEnqueue(t *testing.T) {
	q := newJobQueue()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(job{flow: QueryTokenValue{Token: "x"}})
		}()
	}
	wg.Wait()

	assert.Equal(t, n, q.Len())
}

func TestFuture_Get(t *testing.T) {
	f := newFuture()

	go f.complete(Result{FlowID: "flow-1", Value: 7000}, nil)

	got, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "flow-1", got.FlowID)

	v, ok := got.Int()
	require.True(t, ok)
	assert.Equal(t, 7000, v)
}

func TestFuture_GetContextDone(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
