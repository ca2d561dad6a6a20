package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_FIFO(t *testing.T) {
	q := NewInMemoryQueue[string]()

	require.NoError(t, q.Push("a"))
	require.NoError(t, q.Push("b"))
	assert.Equal(t, 2, q.Size())

	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", item)

	item, err = q.TryPop()
	require.NoError(t, err)
	assert.Equal(t, "b", item)

	_, err = q.TryPop()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue[int]()
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Push(2), ErrQueueClosed)

	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, item)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestInMemoryQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewInMemoryQueue[int]()

	got := make(chan int, 1)
	go func() {
		item, err := q.Pop(context.Background())
		if err == nil {
			got <- item
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(7))

	select {
	case item := <-got:
		assert.Equal(t, 7, item)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestInMemoryQueue_PopContextCancelled(t *testing.T) {
	q := NewInMemoryQueue[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryQueue_ConcurrentConsumers(t *testing.T) {
	q := NewInMemoryQueue[int]()
	const n = 100

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Pop(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[item]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(i))
	}
	require.NoError(t, q.Close())
	wg.Wait()

	assert.Len(t, seen, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, seen[i])
	}
}

func TestDrain(t *testing.T) {
	q := NewInMemoryQueue[string]()
	for _, s := range []string{"x", "y"} {
		require.NoError(t, q.Push(s))
	}
	assert.Equal(t, []string{"x", "y"}, Drain[string](q))
	assert.Equal(t, 0, q.Size())
}
