package markers

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

// DetailTracker keeps a popup glued to one vehicle
type DetailTracker struct {
	adapter MapAdapter
	logger  *slog.Logger
	id      string
}

func newDetailTracker(adapter MapAdapter, logger *slog.Logger) *DetailTracker {
	return &DetailTracker{adapter: adapter, logger: logger}
}

// Tracked returns the followed id, if any
func (t *DetailTracker) Tracked() (string, bool) {
	return t.id, t.id != ""
}

// open replaces any current popup with one for id at its displayed position
func (t *DetailTracker) open(id string, at orb.Point) {
	if t.id == id {
		return
	}
	t.Close()
	if err := t.adapter.CreatePopup(id, at); err != nil {
		logging.LogError(t.logger, "create popup failed", err, slog.String("id", id))
		return
	}
	t.id = id
}

// Close removes the popup. Safe to call with nothing open.
func (t *DetailTracker) Close() {
	if t.id == "" {
		return
	}
	id := t.id
	t.id = ""
	if err := t.adapter.RemovePopup(id); err != nil {
		logging.LogError(t.logger, "remove popup failed", err, slog.String("id", id))
	}
}

// forget closes the popup if it belongs to a removed vehicle
func (t *DetailTracker) forget(id string) {
	if t.id == id {
		t.Close()
	}
}

// follow moves the popup to the coordinate its marker got this frame. The
// popup closes when its vehicle has no marker in positions.
func (t *DetailTracker) follow(positions map[string]orb.Point) {
	if t.id == "" {
		return
	}
	at, ok := positions[t.id]
	if !ok {
		t.Close()
		return
	}
	if err := t.adapter.UpdatePopup(t.id, at); err != nil {
		logging.LogError(t.logger, "update popup failed", err, slog.String("id", t.id))
	}
}
