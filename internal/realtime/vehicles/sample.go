package vehicles

import (
	"time"

	"github.com/paulmach/orb"
)

// DefaultWindow is the expected spacing between batches and the duration
// over which a position change is animated.
const DefaultWindow = 15 * time.Second

// Sample is the latest known state of one tracked vehicle
type Sample struct {
	ID      string
	Scope   string
	Current orb.Point

	// Previous is the coordinate displayed when the current batch arrived.
	// Nil for vehicles first seen in the current batch.
	Previous  *orb.Point
	UpdatedAt time.Time

	// Opaque telemetry, passed through untouched
	Kind          string
	Label         string
	Occupancy     string
	Flags         []string
	Bearing       *float64
	FeedTimestamp time.Time
}

// Batch is one refresh of a feed. It replaces every vehicle of its scope.
type Batch struct {
	Scope   string
	Samples []Sample
}

// State is the animation phase of a tracked vehicle
type State int

const (
	StateRemoved State = iota
	StateNew
	StateInterpolating
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInterpolating:
		return "interpolating"
	case StateSettled:
		return "settled"
	default:
		return "removed"
	}
}
