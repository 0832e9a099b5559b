package ringer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueTryOperations(t *testing.T) {
	q, err := NewQueue[string](2)
	require.NoError(t, err)

	ok, err := q.TryPush("a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = q.TryPush("b")
	assert.True(t, ok)

	ok, err = q.TryPush("c")
	require.NoError(t, err)
	assert.False(t, ok, "queue without growth must not exceed its size")
	assert.Equal(t, 2, q.Len())

	item, ok, err := q.TryPop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", item)
}

func TestQueueRejectsSmallSize(t *testing.T) {
	_, err := NewQueue[int](1)
	assert.True(t, eris.Is(err, ErrSize))
}

func TestQueueGrowth(t *testing.T) {
	q, err := NewQueue[int](2, WithGrowth())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Push(ctx, i))
	}
	assert.Equal(t, 10, q.Len())

	for i := 0; i < 10; i++ {
		item, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, item)
	}
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q, err := NewQueue[int](2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := make(chan int, 1)
	go func() {
		item, err := q.Pop(ctx)
		if err == nil {
			result <- item
		}
		close(result)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(ctx, 42))

	assert.Equal(t, 42, <-result)
}

func TestQueuePushWaitsForPop(t *testing.T) {
	q, err := NewQueue[int](2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, q.Push(ctx, 1))
	require.NoError(t, q.Push(ctx, 2))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, 3)
	}()

	select {
	case <-pushed:
		t.Fatal("push returned although the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	item, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, item)
	require.NoError(t, <-pushed)

	item, _ = q.Pop(ctx)
	assert.Equal(t, 2, item)
	item, _ = q.Pop(ctx)
	assert.Equal(t, 3, item)
}

func TestQueueContextCancel(t *testing.T) {
	q, err := NewQueue[int](2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseDrains(t *testing.T) {
	q, err := NewQueue[int](4)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, q.Push(ctx, 1))
	require.NoError(t, q.Push(ctx, 2))
	q.Close()
	q.Close()

	assert.True(t, eris.Is(q.Push(ctx, 3), ErrClosed))
	_, err = q.TryPush(3)
	assert.True(t, eris.Is(err, ErrClosed))

	item, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, item)
	item, ok, err := q.TryPop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, item)

	_, err = q.Pop(ctx)
	assert.True(t, eris.Is(err, ErrClosed))
	_, _, err = q.TryPop()
	assert.True(t, eris.Is(err, ErrClosed))
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q, err := NewQueue[int](2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Pop(ctx)
			errs <- err
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.True(t, eris.Is(err, ErrClosed), "unexpected error %v", err)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q, err := NewQueue[int](3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	producers := 4
	perProducer := 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Push(ctx, base+i); err != nil {
					return
				}
			}
		}(p * perProducer)
	}

	seen := make(map[int]bool)
	for len(seen) < producers*perProducer {
		item, err := q.Pop(ctx)
		require.NoError(t, err)
		require.False(t, seen[item], "item %d popped twice", item)
		seen[item] = true
	}

	wg.Wait()
	assert.Equal(t, 0, q.Len())
}
