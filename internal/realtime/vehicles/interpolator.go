package vehicles

import (
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/geo"
	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

// Diff describes what an ingested batch changed
type Diff struct {
	Scope   string
	Added   []string // first seen in this batch, in batch order
	Kept    []string // present before and after, in batch order
	Removed []string // sorted
	Dropped int      // malformed, duplicate or foreign-scope samples
}

// Interpolator turns sparse batches into a continuously moving position per
// vehicle. It owns no clock: every call takes the current time.
type Interpolator struct {
	store  *Store
	window time.Duration
	logger *slog.Logger
}

// NewInterpolator wraps a store. A non-positive window falls back to
// DefaultWindow.
func NewInterpolator(store *Store, window time.Duration, logger *slog.Logger) *Interpolator {
	if store == nil {
		store = NewStore()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Interpolator{store: store, window: window, logger: logging.OrDefault(logger)}
}

func (ip *Interpolator) Store() *Store         { return ip.store }
func (ip *Interpolator) Window() time.Duration { return ip.window }

// IngestBatch replaces every vehicle of the batch's scope. Vehicles that
// were already tracked start animating from the position they are displayed
// at right now, so a batch arriving mid-animation never causes a jump.
// Vehicles of the scope missing from the batch are deleted before returning.
//
// Samples are dropped when the id is empty, when the id is repeated in the
// batch or owned by another scope, and when the coordinate is not a usable
// WGS84 point: NaN, infinite, out of range, or exactly (0, 0). Feeds report
// (0, 0) for vehicles without a GPS fix, so it is treated as missing.
func (ip *Interpolator) IngestBatch(batch Batch, now time.Time) Diff {
	diff := Diff{Scope: batch.Scope}
	next := make(map[string]Sample, len(batch.Samples))

	for _, in := range batch.Samples {
		if reason := ip.reject(in, batch.Scope, next); reason != "" {
			diff.Dropped++
			ip.logger.Warn("sample dropped",
				slog.String("id", in.ID),
				slog.String("scope", batch.Scope),
				slog.String("reason", reason))
			continue
		}

		sample := in
		sample.Scope = batch.Scope
		sample.UpdatedAt = now
		sample.Previous = nil
		if prev, ok := ip.store.Get(in.ID); ok {
			displayed := ip.displayed(prev, now)
			sample.Previous = &displayed
			diff.Kept = append(diff.Kept, in.ID)
		} else {
			diff.Added = append(diff.Added, in.ID)
		}
		next[in.ID] = sample
	}

	diff.Removed = ip.store.replaceScope(batch.Scope, next)

	ip.logger.Debug("batch ingested",
		slog.String("scope", batch.Scope),
		slog.Int("added", len(diff.Added)),
		slog.Int("kept", len(diff.Kept)),
		slog.Int("removed", len(diff.Removed)),
		slog.Int("dropped", diff.Dropped))
	return diff
}

func (ip *Interpolator) reject(in Sample, scope string, seen map[string]Sample) string {
	if in.ID == "" {
		return "missing id"
	}
	if !geo.ValidCoordinate(in.Current) {
		return "invalid coordinate"
	}
	if _, dup := seen[in.ID]; dup {
		return "duplicate id"
	}
	if existing, ok := ip.store.Get(in.ID); ok && existing.Scope != scope {
		return "id owned by scope " + existing.Scope
	}
	return ""
}

// Tick returns the displayed coordinate of every tracked vehicle at now.
// It only reads the store, so repeated calls with the same now agree.
func (ip *Interpolator) Tick(now time.Time) map[string]orb.Point {
	out := make(map[string]orb.Point, ip.store.Len())
	ip.store.each(func(s Sample) {
		out[s.ID] = ip.displayed(s, now)
	})
	return out
}

// Position is Tick for a single vehicle
func (ip *Interpolator) Position(id string, now time.Time) (orb.Point, bool) {
	s, ok := ip.store.Get(id)
	if !ok {
		return orb.Point{}, false
	}
	return ip.displayed(s, now), true
}

// Progress is the clamped fraction of the window elapsed since the sample
// arrived.
func (ip *Interpolator) Progress(s Sample, now time.Time) float64 {
	return geo.Clamp(float64(now.Sub(s.UpdatedAt))/float64(ip.window), 0, 1)
}

// State reports the animation phase of one vehicle
func (ip *Interpolator) State(id string, now time.Time) State {
	s, ok := ip.store.Get(id)
	switch {
	case !ok:
		return StateRemoved
	case s.Previous == nil:
		return StateNew
	case ip.Progress(s, now) >= 1:
		return StateSettled
	default:
		return StateInterpolating
	}
}

func (ip *Interpolator) displayed(s Sample, now time.Time) orb.Point {
	if s.Previous == nil {
		return s.Current
	}
	return geo.Lerp(*s.Previous, s.Current, ip.Progress(s, now))
}
