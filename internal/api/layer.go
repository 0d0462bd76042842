package api

import (
	"context"
	"time"

	"github.com/mini-rodalies-3d/overlay/internal/metrics"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/eventloop"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/markers"
)

// Layer is the realtime state the HTTP handlers read and steer
type Layer interface {
	Vehicles(ctx context.Context) ([]markers.Vehicle, error)
	Intervals(ctx context.Context) ([]metrics.IntervalSummary, error)
	OpenDetail(ctx context.Context, id string) error
	CloseDetail(ctx context.Context) error
}

// LoopLayer runs every call on the event loop that owns the manager. A call
// that gives up on its context returns only the error.
type LoopLayer struct {
	loop    *eventloop.Loop
	manager *markers.Manager
	now     func() time.Time
}

func NewLoopLayer(loop *eventloop.Loop, manager *markers.Manager) *LoopLayer {
	return &LoopLayer{loop: loop, manager: manager, now: time.Now}
}

func (l *LoopLayer) Vehicles(ctx context.Context) ([]markers.Vehicle, error) {
	var out []markers.Vehicle
	if err := l.loop.Do(ctx, func() {
		out = l.manager.Vehicles(l.now())
	}); err != nil {
		// the task may still run after a timeout, so out is never read here
		return nil, err
	}
	return out, nil
}

func (l *LoopLayer) Intervals(ctx context.Context) ([]metrics.IntervalSummary, error) {
	var out []metrics.IntervalSummary
	if err := l.loop.Do(ctx, func() {
		out = l.manager.Intervals()
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *LoopLayer) OpenDetail(ctx context.Context, id string) error {
	var openErr error
	if err := l.loop.Do(ctx, func() {
		openErr = l.manager.OpenDetail(id, l.now())
	}); err != nil {
		return err
	}
	return openErr
}

func (l *LoopLayer) CloseDetail(ctx context.Context) error {
	return l.loop.Do(ctx, l.manager.CloseDetail)
}
