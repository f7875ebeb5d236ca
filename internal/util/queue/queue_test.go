package queue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/util/queue"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := queue.New()
	var got []int
	for i := 0; i < 1000; i++ {
		require.True(t, q.Post(func() { got = append(got, i) }))
	}
	q.Halt()
	q.Wait()

	require.Len(t, got, 1000)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestQueueRejectsAfterHalt(t *testing.T) {
	q := queue.New()
	q.Halt()
	q.Halt()
	require.False(t, q.Post(func() {}))
	q.Wait()
}

func TestQueueHaltFromInside(t *testing.T) {
	q := queue.New()
	var wg sync.WaitGroup
	wg.Add(1)
	q.Post(func() {
		q.Halt()
		wg.Done()
	})
	wg.Wait()
	q.Wait()
}

func TestQueueConcurrentPosters(t *testing.T) {
	q := queue.New()
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	q.Halt()
	q.Wait()
	require.Equal(t, 800, count)
}
