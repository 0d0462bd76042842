package markers

import (
	"time"

	"github.com/paulmach/orb"
)

// MarkerMeta is the static description of a marker, sent once on creation
type MarkerMeta struct {
	Scope     string `json:"scope,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Label     string `json:"label,omitempty"`
	Occupancy string `json:"occupancy,omitempty"`
}

// MapAdapter is implemented by whatever renders the map. Markers and popups
// are keyed by vehicle id.
type MapAdapter interface {
	CreateMarker(id string, at orb.Point, meta MarkerMeta) error
	UpdateMarker(id string, at orb.Point) error
	RemoveMarker(id string) error

	CreatePopup(id string, at orb.Point) error
	UpdatePopup(id string, at orb.Point) error
	RemovePopup(id string) error
}

// Flusher is implemented by adapters that buffer updates. Flush is called
// once at the end of every frame.
type Flusher interface {
	Flush() error
}

// FrameClock schedules a single callback for the next frame. Requesting a
// frame while one is pending replaces it; cancelling with nothing pending is
// a no-op.
type FrameClock interface {
	RequestFrame(fn func(now time.Time))
	CancelFrame()
}

// Scheduler drives the animation loop
type Scheduler interface {
	Start()
	Stop()
	Tick(now time.Time)
}
