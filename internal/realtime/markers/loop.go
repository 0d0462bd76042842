package markers

import "time"

// frameLoop keeps at most one frame requested from the clock
type frameLoop struct {
	clock   FrameClock
	frame   func(now time.Time)
	pending bool
}

func (l *frameLoop) Start() {
	if l.pending {
		return
	}
	l.pending = true
	l.clock.RequestFrame(l.Tick)
}

func (l *frameLoop) Stop() {
	if !l.pending {
		return
	}
	l.pending = false
	l.clock.CancelFrame()
}

// Tick runs one frame. The frame decides whether to request the next one.
func (l *frameLoop) Tick(now time.Time) {
	l.pending = false
	l.frame(now)
}
