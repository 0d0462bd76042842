package eventloop

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, interval time.Duration) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(interval, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestDoRunsTasksInOrder(t *testing.T) {
	l, _ := startLoop(t, 10*time.Millisecond)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Post(func() { order = append(order, i) }))
	}

	var got []int
	require.NoError(t, l.Do(context.Background(), func() { got = append(got, order...) }))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestTasksNeverOverlap(t *testing.T) {
	l, _ := startLoop(t, time.Millisecond)

	var running, overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = l.Do(context.Background(), func() {
					if atomic.AddInt32(&running, 1) > 1 {
						atomic.AddInt32(&overlaps, 1)
					}
					atomic.AddInt32(&running, -1)
				})
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, atomic.LoadInt32(&overlaps))
}

func TestRequestFrameFiresOnce(t *testing.T) {
	l, _ := startLoop(t, 5*time.Millisecond)

	fired := make(chan time.Time, 4)
	require.NoError(t, l.Do(context.Background(), func() {
		l.RequestFrame(func(now time.Time) { fired <- now })
	}))

	select {
	case now := <-fired:
		assert.False(t, now.IsZero())
	case <-time.After(time.Second):
		t.Fatal("frame did not fire")
	}

	select {
	case <-fired:
		t.Fatal("frame fired twice without a new request")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestFrameCanRescheduleItself(t *testing.T) {
	l, _ := startLoop(t, time.Millisecond)

	var count int32
	done := make(chan struct{})
	var frame func(time.Time)
	frame = func(time.Time) {
		if atomic.AddInt32(&count, 1) == 3 {
			close(done)
			return
		}
		l.RequestFrame(frame)
	}
	require.NoError(t, l.Do(context.Background(), func() { l.RequestFrame(frame) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("frames did not chain")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
}

func TestCancelFrame(t *testing.T) {
	l, _ := startLoop(t, 20*time.Millisecond)

	fired := make(chan struct{}, 1)
	require.NoError(t, l.Do(context.Background(), func() {
		l.RequestFrame(func(time.Time) { fired <- struct{}{} })
		l.CancelFrame()
		l.CancelFrame()
	}))

	select {
	case <-fired:
		t.Fatal("cancelled frame fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestPanicDoesNotKillLoop(t *testing.T) {
	l, _ := startLoop(t, time.Millisecond)

	require.NoError(t, l.Post(func() { panic("bad task") }))

	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestStoppedLoop(t *testing.T) {
	l, cancel := startLoop(t, time.Millisecond)
	require.NoError(t, l.Do(context.Background(), func() {}))

	cancel()
	<-l.done

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
}

func TestDoHonoursContext(t *testing.T) {
	l, _ := startLoop(t, time.Millisecond)

	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)
}
