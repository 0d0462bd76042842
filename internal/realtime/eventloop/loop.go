// Package eventloop runs callbacks one at a time on a single goroutine,
// giving the realtime layer the run-to-completion semantics of a browser
// event loop: a frame never observes a half-applied batch.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

// ErrStopped is returned when posting to a loop that is not running
var ErrStopped = errors.New("event loop stopped")

const queueSize = 64

// Loop serialises tasks and frame callbacks. RequestFrame and CancelFrame
// must only be called from tasks running on the loop.
type Loop struct {
	interval time.Duration
	tasks    chan func()
	done     chan struct{}
	logger   *slog.Logger

	// owned by the loop goroutine
	frame  func(now time.Time)
	timer  *time.Timer
	timerC <-chan time.Time
}

// New creates a loop that fires requested frames after interval
func New(interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Loop{
		interval: interval,
		tasks:    make(chan func(), queueSize),
		done:     make(chan struct{}),
		logger:   logging.OrDefault(logger),
	}
}

// Run processes tasks and frames until ctx is cancelled. It must be called
// exactly once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.CancelFrame()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.run("task", fn)
		case now := <-l.timerC:
			frame := l.frame
			l.frame = nil
			l.timerC = nil
			if frame != nil {
				l.run("frame", func() { frame(now) })
			}
		}
	}
}

func (l *Loop) run(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError(l.logger, "event loop callback panicked", fmt.Errorf("%v", r),
				slog.String("kind", kind))
		}
	}()
	fn()
}

// Done is closed once Run has returned
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn to run on the loop. It blocks while the queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Do runs fn on the loop and waits for it to return
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// RequestFrame schedules fn for the next frame, replacing any pending one.
// The timer is only armed while a frame is requested.
func (l *Loop) RequestFrame(fn func(now time.Time)) {
	l.frame = fn
	if l.timer == nil {
		l.timer = time.NewTimer(l.interval)
	} else {
		l.timer.Reset(l.interval)
	}
	l.timerC = l.timer.C
}

// CancelFrame drops the pending frame, if any
func (l *Loop) CancelFrame() {
	l.frame = nil
	l.timerC = nil
	if l.timer != nil {
		l.timer.Stop()
	}
}
