package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := start(t)

	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		require.True(t, l.Post(func() {
			got = append(got, i)
			wg.Done()
		}))
	}
	wg.Wait()

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPostFromCallback(t *testing.T) {
	l, _ := start(t)

	done := make(chan string, 2)
	l.Post(func() {
		l.Post(func() { done <- "second" })
		done <- "first"
	})
	assert.Equal(t, "first", <-done)
	assert.Equal(t, "second", <-done)
}

func TestDo(t *testing.T) {
	l, _ := start(t)

	n := 0
	require.NoError(t, l.Do(context.Background(), func() { n = 42 }))
	assert.Equal(t, 42, n)
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	l, _ := start(t)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestAfterFunc(t *testing.T) {
	l, _ := start(t)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	stop := l.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	assert.True(t, stop())
}

func TestPostAfterStop(t *testing.T) {
	l, cancel := start(t)
	cancel()
	<-l.Done()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
}
