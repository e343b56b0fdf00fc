package netreactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newRunningLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop, err := NewEventLoop()
	require.NoError(t, err)

	go func() {
		_ = loop.Loop()
	}()

	t.Cleanup(func() {
		loop.Quit()
		select {
		case <-loop.Done():
		case <-time.After(time.Second):
			t.Fatal("loop did not terminate")
		}
		_ = loop.Close()
	})

	return loop
}

func TestEventLoopQueueInLoopRunsFromForeignGoroutine(t *testing.T) {
	loop := newRunningLoop(t)

	done := make(chan struct{})
	var ran atomic.Bool
	loop.QueueInLoop(func() {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued task never ran")
	}
	require.True(t, ran.Load())
}

func TestEventLoopRunInLoopExecutesSynchronouslyOnLoopThread(t *testing.T) {
	loop := newRunningLoop(t)

	var order []int
	var mu sync.Mutex
	done := make(chan struct{})

	loop.QueueInLoop(func() {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()

		loop.RunInLoop(func() {
			mu.Lock()
			order = append(order, 2)
			mu.Unlock()
		})

		mu.Lock()
		order = append(order, 3)
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestEventLoopManyConcurrentPosts(t *testing.T) {
	loop := newRunningLoop(t)

	const n = 500
	var wg sync.WaitGroup
	var counter atomic.Int64
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			loop.QueueInLoop(func() {
				counter.Add(1)
			})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return counter.Load() == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventLoopDoubleRunRejected(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer func() {
		loop.Quit()
		<-loop.Done()
		_ = loop.Close()
	}()

	go func() { _ = loop.Loop() }()
	require.Eventually(t, func() bool {
		return loopState(loop.state.Load()) == loopRunning
	}, time.Second, time.Millisecond)

	err = loop.Loop()
	require.ErrorIs(t, err, ErrLoopAlreadyRunning)
}
