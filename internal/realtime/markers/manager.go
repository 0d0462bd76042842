package markers

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/metrics"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

// ErrNotTracked is returned when a detail popup is requested for an unknown id
var ErrNotTracked = errors.New("vehicle not tracked")

// Vehicle is a tracked vehicle as displayed at some instant
type Vehicle struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Label     string    `json:"label,omitempty"`
	Occupancy string    `json:"occupancy,omitempty"`
	Flags     []string  `json:"flags,omitempty"`
	Position  orb.Point `json:"position"`
	Reported  orb.Point `json:"reported"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager owns one marker per tracked vehicle and the animation loop that
// moves them. It is not safe for concurrent use: batches, frames and
// queries must all run on the same goroutine.
type Manager struct {
	ip        *vehicles.Interpolator
	adapter   MapAdapter
	loop      *frameLoop
	tracker   *DetailTracker
	intervals *metrics.BatchIntervals
	logger    *slog.Logger

	handles map[string]struct{}
}

var _ Scheduler = (*Manager)(nil)

func NewManager(ip *vehicles.Interpolator, adapter MapAdapter, clock FrameClock, logger *slog.Logger) *Manager {
	logger = logging.OrDefault(logger)
	m := &Manager{
		ip:        ip,
		adapter:   adapter,
		tracker:   newDetailTracker(adapter, logger),
		intervals: metrics.NewBatchIntervals(),
		logger:    logger,
		handles:   make(map[string]struct{}),
	}
	m.loop = &frameLoop{clock: clock, frame: m.frame}
	return m
}

// IngestBatch applies a batch and reconciles markers with it: removed
// vehicles lose their marker (and popup) before this returns, new vehicles
// get exactly one marker. The loop is started if anything is tracked.
func (m *Manager) IngestBatch(batch vehicles.Batch, now time.Time) vehicles.Diff {
	diff := m.ip.IngestBatch(batch, now)
	m.intervals.Observe(batch.Scope, now)

	for _, id := range diff.Removed {
		m.tracker.forget(id)
		m.removeMarker(id)
	}

	for _, ids := range [][]string{diff.Added, diff.Kept} {
		for _, id := range ids {
			if _, ok := m.handles[id]; ok {
				continue
			}
			m.createMarker(id, now)
		}
	}

	if m.ip.Store().Len() > 0 {
		m.loop.Start()
	} else {
		m.loop.Stop()
	}
	return diff
}

func (m *Manager) createMarker(id string, now time.Time) {
	s, ok := m.ip.Store().Get(id)
	if !ok {
		return
	}
	at, _ := m.ip.Position(id, now)
	meta := MarkerMeta{Scope: s.Scope, Kind: s.Kind, Label: s.Label, Occupancy: s.Occupancy}
	if err := m.adapter.CreateMarker(id, at, meta); err != nil {
		logging.LogError(m.logger, "create marker failed", err, slog.String("id", id))
		return
	}
	m.handles[id] = struct{}{}
}

func (m *Manager) removeMarker(id string) {
	if _, ok := m.handles[id]; !ok {
		return
	}
	delete(m.handles, id)
	if err := m.adapter.RemoveMarker(id); err != nil {
		logging.LogError(m.logger, "remove marker failed", err, slog.String("id", id))
	}
}

// Start requests a frame if anything is tracked and none is pending
func (m *Manager) Start() {
	if m.ip.Store().Len() > 0 {
		m.loop.Start()
	}
}

// Tick runs one frame immediately, outside the frame clock
func (m *Manager) Tick(now time.Time) {
	m.frame(now)
}

func (m *Manager) frame(now time.Time) {
	positions := m.ip.Tick(now)

	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shown := make(map[string]orb.Point, len(ids))
	for _, id := range ids {
		if _, ok := m.handles[id]; !ok {
			continue
		}
		shown[id] = positions[id]
		if err := m.adapter.UpdateMarker(id, positions[id]); err != nil {
			logging.LogError(m.logger, "update marker failed", err, slog.String("id", id))
		}
	}
	m.tracker.follow(shown)

	if f, ok := m.adapter.(Flusher); ok {
		if err := f.Flush(); err != nil {
			logging.LogError(m.logger, "flush frame failed", err)
		}
	}

	if len(positions) > 0 {
		m.loop.Start()
	}
}

// Stop tears the layer down: the pending frame is cancelled, every marker
// and the popup are removed and the store is emptied. Calling it again does
// nothing.
func (m *Manager) Stop() {
	m.loop.Stop()
	m.tracker.Close()

	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m.removeMarker(id)
	}

	m.ip.Store().Clear()
}

// Running reports whether a frame is pending
func (m *Manager) Running() bool {
	return m.loop.pending
}

// HasMarker reports whether a marker exists for id
func (m *Manager) HasMarker(id string) bool {
	_, ok := m.handles[id]
	return ok
}

// OpenDetail attaches the popup to a tracked vehicle, replacing any other.
// A vehicle whose marker could not be created has nothing to attach to.
func (m *Manager) OpenDetail(id string, now time.Time) error {
	if _, ok := m.handles[id]; !ok {
		return ErrNotTracked
	}
	at, ok := m.ip.Position(id, now)
	if !ok {
		return ErrNotTracked
	}
	m.tracker.open(id, at)
	return nil
}

// CloseDetail removes the popup, if any
func (m *Manager) CloseDetail() {
	m.tracker.Close()
}

func (m *Manager) Tracker() *DetailTracker {
	return m.tracker
}

// Vehicles returns every tracked vehicle at its displayed position, sorted by id
func (m *Manager) Vehicles(now time.Time) []Vehicle {
	store := m.ip.Store()
	ids := store.IDs()
	out := make([]Vehicle, 0, len(ids))
	for _, id := range ids {
		s, _ := store.Get(id)
		at, _ := m.ip.Position(id, now)
		out = append(out, Vehicle{
			ID:        id,
			Scope:     s.Scope,
			Kind:      s.Kind,
			Label:     s.Label,
			Occupancy: s.Occupancy,
			Flags:     s.Flags,
			Position:  at,
			Reported:  s.Current,
			State:     m.ip.State(id, now).String(),
			UpdatedAt: s.UpdatedAt,
		})
	}
	return out
}

// Intervals summarises how often each scope has been refreshed
func (m *Manager) Intervals() []metrics.IntervalSummary {
	return m.intervals.Summaries()
}
